package openrtb_ext

import (
	"encoding/json"
)

// ExtImpPrebid defines the contract for bidrequest.imp[i].ext.prebid
type ExtImpPrebid struct {
	// StoredRequest specifies which stored impression to use, if any.
	StoredRequest *ExtStoredRequest `json:"storedrequest,omitempty"`

	// IsRewardedInventory is a signal intended for video impressions. Must be 0 or 1.
	IsRewardedInventory *int8 `json:"is_rewarded_inventory,omitempty"`

	// Bidder is the preferred approach for providing parameters to be interpreted by the bidder's adapter.
	Bidder map[string]json.RawMessage `json:"bidder,omitempty"`

	Passthrough json.RawMessage `json:"passthrough,omitempty"`

	Unknown map[string]json.RawMessage `json:"-"`
}

func (eip *ExtImpPrebid) UnmarshalJSON(data []byte) error {
	type extImpPrebid ExtImpPrebid
	var plain extImpPrebid
	unknown, err := unmarshalExtObject(data, &plain)
	if err != nil {
		return err
	}
	*eip = ExtImpPrebid(plain)
	eip.Unknown = unknown
	return nil
}

func (eip ExtImpPrebid) MarshalJSON() ([]byte, error) {
	type extImpPrebid ExtImpPrebid
	return marshalExtObject(extImpPrebid(eip), eip.Unknown)
}

// Top level imp.ext keys which are never bidder parameter blocks.
const (
	FirstPartyDataExtKey        = "data"
	FirstPartyDataContextExtKey = "context"
	SKAdNExtKey                 = "skadn"
	GPIDKey                     = "gpid"
	TIDKey                      = "tid"
	AEKey                       = "ae"
	allExtKey                   = "all"
	generalExtKey               = "general"
)

var reservedImpExtKeys = map[string]struct{}{
	PrebidExtKey:                {},
	FirstPartyDataExtKey:        {},
	FirstPartyDataContextExtKey: {},
	SKAdNExtKey:                 {},
	GPIDKey:                     {},
	TIDKey:                      {},
	AEKey:                       {},
	allExtKey:                   {},
	generalExtKey:               {},
}

// IsReservedImpExtKey reports whether key is one of the imp.ext keys which must stay at the top level.
func IsReservedImpExtKey(key string) bool {
	_, reserved := reservedImpExtKeys[key]
	return reserved
}
