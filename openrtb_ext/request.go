package openrtb_ext

import (
	"encoding/json"
)

// PrebidExtKey represents the prebid extension key used in requests
const PrebidExtKey = "prebid"

// ExtRequest defines the contract for bidrequest.ext
type ExtRequest struct {
	Prebid ExtRequestPrebid `json:"prebid"`
}

// ExtRequestPrebid defines the contract for bidrequest.ext.prebid. Keys which are not modeled here are
// kept in Unknown and written back untouched.
type ExtRequestPrebid struct {
	AMP           *ExtRequestPrebidAMP     `json:"amp,omitempty"`
	BidderParams  json.RawMessage          `json:"bidderparams,omitempty"`
	Cache         *ExtRequestPrebidCache   `json:"cache,omitempty"`
	Channel       *ExtRequestPrebidChannel `json:"channel,omitempty"`
	Debug         bool                     `json:"debug,omitempty"`
	Integration   string                   `json:"integration,omitempty"`
	Passthrough   json.RawMessage          `json:"passthrough,omitempty"`
	StoredRequest *ExtStoredRequest        `json:"storedrequest,omitempty"`
	Targeting     *ExtRequestTargeting     `json:"targeting,omitempty"`

	Unknown map[string]json.RawMessage `json:"-"`
}

func (erp *ExtRequestPrebid) UnmarshalJSON(data []byte) error {
	type extRequestPrebid ExtRequestPrebid
	var plain extRequestPrebid
	unknown, err := unmarshalExtObject(data, &plain)
	if err != nil {
		return err
	}
	*erp = ExtRequestPrebid(plain)
	erp.Unknown = unknown
	return nil
}

func (erp ExtRequestPrebid) MarshalJSON() ([]byte, error) {
	type extRequestPrebid ExtRequestPrebid
	return marshalExtObject(extRequestPrebid(erp), erp.Unknown)
}

// ExtRequestPrebidAMP defines the contract for bidrequest.ext.prebid.amp
type ExtRequestPrebidAMP struct {
	// Data echoes the query parameters of the AMP request.
	Data map[string]string `json:"data,omitempty"`
}

// ExtRequestPrebidChannel defines the contract for bidrequest.ext.prebid.channel
type ExtRequestPrebidChannel struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Channel names set by default.
const (
	ChannelApp  = "app"
	ChannelWeb  = "web"
	ChannelAMP  = "amp"
	ChannelDOOH = "dooh"
)

// ExtRequestPrebidCache defines the contract for bidrequest.ext.prebid.cache
type ExtRequestPrebidCache struct {
	Bids        *ExtRequestPrebidCacheBids `json:"bids,omitempty"`
	VastXML     *ExtRequestPrebidCacheVAST `json:"vastxml,omitempty"`
	WinningOnly *bool                      `json:"winningonly,omitempty"`
}

// IsEmpty reports whether the cache object asks for nothing to be cached.
func (c *ExtRequestPrebidCache) IsEmpty() bool {
	return c == nil || (c.Bids == nil && c.VastXML == nil && c.WinningOnly == nil)
}

// ExtRequestPrebidCacheBids defines the contract for bidrequest.ext.prebid.cache.bids
type ExtRequestPrebidCacheBids struct {
	ReturnCreative *bool `json:"returnCreative,omitempty"`
}

// ExtRequestPrebidCacheVAST defines the contract for bidrequest.ext.prebid.cache.vastxml
type ExtRequestPrebidCacheVAST struct {
	ReturnCreative *bool `json:"returnCreative,omitempty"`
}

// ExtRequestTargeting defines the contract for bidrequest.ext.prebid.targeting
type ExtRequestTargeting struct {
	PriceGranularity          *PriceGranularity          `json:"pricegranularity,omitempty"`
	MediaTypePriceGranularity *MediaTypePriceGranularity `json:"mediatypepricegranularity,omitempty"`
	IncludeWinners            *bool                      `json:"includewinners,omitempty"`
	IncludeBidderKeys         *bool                      `json:"includebidderkeys,omitempty"`
	IncludeBrandCategory      *ExtIncludeBrandCategory   `json:"includebrandcategory,omitempty"`
	DurationRangeSec          []int                      `json:"durationrangesec,omitempty"`
	Prefix                    string                     `json:"prefix,omitempty"`
	TruncateAttrChars         *int                       `json:"truncateattrchars,omitempty"`
}

// MediaTypePriceGranularity specify price granularity configuration at the bid type level
type MediaTypePriceGranularity struct {
	Banner *PriceGranularity `json:"banner,omitempty"`
	Video  *PriceGranularity `json:"video,omitempty"`
	Native *PriceGranularity `json:"native,omitempty"`
}

// ExtIncludeBrandCategory defines the contract for bidrequest.ext.prebid.targeting.includebrandcategory
type ExtIncludeBrandCategory struct {
	PrimaryAdServer     int    `json:"primaryadserver"`
	Publisher           string `json:"publisher"`
	WithCategory        bool   `json:"withcategory"`
	TranslateCategories *bool  `json:"translatecategories,omitempty"`
}

// ExtStoredRequest defines the contract for bidrequest.ext.prebid.storedrequest and
// bidrequest.imp[i].ext.prebid.storedrequest
type ExtStoredRequest struct {
	ID string `json:"id"`
}
