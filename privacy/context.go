package privacy

import (
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/privacy/ccpa"
	"github.com/prebid/prebid-request-core/privacy/gdpr"
	"github.com/prebid/prebid-request-core/privacy/lmt"
)

// Context is the privacy outcome of a request: the regime signals and consent strings which survived
// validation, plus the geo location used to infer GDPR scope when one was looked up.
type Context struct {
	GDPRSignal   gdpr.Signal
	Consent      string
	AddtlConsent string
	CCPA         string
	COPPA        int8
	GPC          bool
	GPP          string
	GPPSID       []int8
	LMT          lmt.Policy
	Geo          *geolocation.GeoInfo
	IPAddress    string
}

// GDPREnforced reports whether GDPR applies once an undetermined signal falls back to the host default.
func (c Context) GDPREnforced(defaultValue string) bool {
	return gdpr.SignalNormalize(c.GDPRSignal, defaultValue) == gdpr.SignalYes
}

// CCPAOptOut reports whether the US Privacy string opts the user out of sale.
func (c Context) CCPAOptOut() bool {
	return ccpa.Policy{Consent: c.CCPA}.OptOutSale()
}

// COPPAEnforced reports whether the request is subject to COPPA.
func (c Context) COPPAEnforced() bool {
	return c.COPPA == 1
}
