package openrtb_ext

import (
	"encoding/json"
	"strings"
)

// ExtPublisher defines the contract for bidrequest.site|app|dooh.publisher.ext
type ExtPublisher struct {
	Prebid *ExtPublisherPrebid `json:"prebid,omitempty"`
}

// ExtPublisherPrebid defines the contract for publisher.ext.prebid
type ExtPublisherPrebid struct {
	// ParentAccount would define the legal entity (publisher owner or network) that has the direct relationship with the PBS
	// host. As such, the definition depends on the PBS hosting entity.
	ParentAccount *string `json:"parentAccount,omitempty"`
}

// ParentAccountFromPublisherExt returns the trimmed parentAccount of a publisher ext, or an empty string when the
// ext is absent, malformed or has no parent account.
func ParentAccountFromPublisherExt(ext json.RawMessage) string {
	if len(ext) == 0 {
		return ""
	}
	var pubExt ExtPublisher
	if err := json.Unmarshal(ext, &pubExt); err != nil {
		return ""
	}
	if pubExt.Prebid == nil || pubExt.Prebid.ParentAccount == nil {
		return ""
	}
	return strings.TrimSpace(*pubExt.Prebid.ParentAccount)
}
