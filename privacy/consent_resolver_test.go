package privacy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy/gdpr"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

const (
	tcf2Consent = "CPuKGCPPuKGCPNEAAAENCZCAAAAAAAAAAAAAAAAAAAAA"
	tcf1Consent = "COzTVhaOzTVhaGvAAAENAiCIAP_AAH_AAAAAAEEUACCKAAA"
	gppConsent  = "DBACNY~CPuKGCPPuKGCPNEAAAENCZCAAAAAAAAAAAAAAAAAAAAA~1YNN"
)

type fakeGeo struct {
	info *geolocation.GeoInfo
	err  error
	ips  []string
}

func (g *fakeGeo) Lookup(_ context.Context, ip string) (*geolocation.GeoInfo, error) {
	g.ips = append(g.ips, ip)
	return g.info, g.err
}

func newResolver(geo geolocation.GeoLocation) *ConsentResolver {
	return NewConsentResolver(config.GDPR{
		DefaultValue:    "1",
		EEACountriesMap: map[string]struct{}{"FRA": {}, "DEU": {}, "FR": {}, "DE": {}},
	}, geo)
}

func warningCodes(errs []error) []int {
	var codes []int
	for _, err := range errs {
		codes = append(codes, errortypes.ReadCode(err))
	}
	return codes
}

func TestResolveConsentType(t *testing.T) {
	testCases := []struct {
		description     string
		params          ConsentParams
		expectedConsent string
		expectedCCPA    string
		expectedGPP     string
		expectedCodes   []int
	}{
		{
			description:     "consent_type 2 applies the legacy value to GDPR",
			params:          ConsentParams{ConsentType: ConsentTCF2, LegacyConsent: tcf2Consent},
			expectedConsent: tcf2Consent,
		},
		{
			description:     "consent_type 1 applies the legacy value to GDPR",
			params:          ConsentParams{ConsentType: ConsentTCF1, LegacyConsent: tcf1Consent},
			expectedConsent: tcf1Consent,
		},
		{
			description:     "tcfc wins over the legacy value",
			params:          ConsentParams{ConsentType: ConsentTCF2, LegacyConsent: tcf2Consent, TCF: tcf1Consent},
			expectedConsent: tcf1Consent,
		},
		{
			description:     "tcfc wins whatever the consent_type",
			params:          ConsentParams{ConsentType: ConsentUSP, LegacyConsent: "1YNN", TCF: tcf2Consent},
			expectedConsent: tcf2Consent,
			expectedCCPA:    "1YNN",
		},
		{
			description:  "consent_type 3 applies the legacy value to CCPA",
			params:       ConsentParams{ConsentType: ConsentUSP, LegacyConsent: "1YNN"},
			expectedCCPA: "1YNN",
		},
		{
			description:  "usp wins over the legacy value",
			params:       ConsentParams{ConsentType: ConsentUSP, LegacyConsent: "1YNN", USP: "1NYN"},
			expectedCCPA: "1NYN",
		},
		{
			description:     "consent_type 4 applies the legacy value to GPP",
			params:          ConsentParams{ConsentType: ConsentGPP, LegacyConsent: gppConsent},
			expectedGPP:     gppConsent,
			expectedConsent: "",
		},
		{
			description:   "invalid consent_type ignores the legacy value",
			params:        ConsentParams{ConsentType: "9", LegacyConsent: tcf2Consent},
			expectedCodes: []int{errortypes.InvalidConsentTypeWarningCode},
		},
		{
			description:     "invalid consent_type keeps tcfc",
			params:          ConsentParams{ConsentType: "abc", LegacyConsent: "1YNN", TCF: tcf2Consent},
			expectedConsent: tcf2Consent,
			expectedCodes:   []int{errortypes.InvalidConsentTypeWarningCode},
		},
		{
			description:     "no consent_type detects TCF",
			params:          ConsentParams{LegacyConsent: tcf2Consent},
			expectedConsent: tcf2Consent,
		},
		{
			description:  "no consent_type detects US Privacy",
			params:       ConsentParams{LegacyConsent: "1YNN"},
			expectedCCPA: "1YNN",
		},
		{
			description:   "no consent_type with an unknown format",
			params:        ConsentParams{LegacyConsent: "invalid"},
			expectedCodes: []int{errortypes.InvalidPrivacyConsentWarningCode},
		},
		{
			description:   "malformed tcfc is dropped",
			params:        ConsentParams{TCF: "malformed"},
			expectedCodes: []int{errortypes.InvalidPrivacyConsentWarningCode},
		},
		{
			description:   "malformed usp is dropped",
			params:        ConsentParams{USP: "2YNN"},
			expectedCodes: []int{errortypes.InvalidPrivacyConsentWarningCode},
		},
		{
			description:   "malformed gppc is dropped",
			params:        ConsentParams{GPP: "malformed"},
			expectedCodes: []int{errortypes.InvalidPrivacyConsentWarningCode},
		},
	}

	for _, test := range testCases {
		req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

		c, errs := newResolver(nil).Resolve(context.Background(), req, test.params)

		assert.Equal(t, test.expectedConsent, c.Consent, test.description)
		assert.Equal(t, test.expectedCCPA, c.CCPA, test.description)
		assert.Equal(t, test.expectedGPP, c.GPP, test.description)
		assert.Equal(t, test.expectedCodes, warningCodes(errs), test.description)
		assert.False(t, errortypes.ContainsFatalError(errs), test.description)

		if test.expectedConsent != "" {
			assert.Equal(t, test.expectedConsent, req.User.Consent, test.description)
		}
		if test.expectedCCPA != "" {
			assert.Equal(t, test.expectedCCPA, req.Regs.USPrivacy, test.description)
		}
	}
}

func TestResolveLegacyWarningMessage(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

	_, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{LegacyConsent: "invalid"})

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "Amp request parameter consent_string or gdpr_consent have invalid format: invalid")
}

func TestResolveGDPRSignal(t *testing.T) {
	testCases := []struct {
		description    string
		params         ConsentParams
		regs           *openrtb2.Regs
		geo            *fakeGeo
		expectedSignal gdpr.Signal
		expectedCodes  []int
	}{
		{
			description:    "gdpr_applies true",
			params:         ConsentParams{GDPRApplies: "true"},
			expectedSignal: gdpr.SignalYes,
		},
		{
			description:    "gdpr_applies 0 overrides the body",
			params:         ConsentParams{GDPRApplies: "0"},
			regs:           &openrtb2.Regs{GDPR: ptrutil.ToPtr[int8](1)},
			expectedSignal: gdpr.SignalNo,
		},
		{
			description:    "unrecognized gdpr_applies falls back to the body",
			params:         ConsentParams{GDPRApplies: "maybe"},
			regs:           &openrtb2.Regs{GDPR: ptrutil.ToPtr[int8](1)},
			expectedSignal: gdpr.SignalYes,
		},
		{
			description:    "legacy regs.ext.gdpr",
			regs:           &openrtb2.Regs{Ext: json.RawMessage(`{"gdpr":0}`)},
			expectedSignal: gdpr.SignalNo,
		},
		{
			description:    "gpp_sid lists TCF EU",
			params:         ConsentParams{GPPSID: "2"},
			expectedSignal: gdpr.SignalYes,
		},
		{
			description:    "undetermined without geo",
			expectedSignal: gdpr.SignalAmbiguous,
		},
		{
			description:    "geo in EEA",
			geo:            &fakeGeo{info: &geolocation.GeoInfo{Country: "fr"}},
			expectedSignal: gdpr.SignalYes,
		},
		{
			description:    "geo outside EEA",
			geo:            &fakeGeo{info: &geolocation.GeoInfo{Country: "US"}},
			expectedSignal: gdpr.SignalNo,
		},
		{
			description:    "geo failure",
			geo:            &fakeGeo{err: errors.New("lookup failed")},
			expectedSignal: gdpr.SignalAmbiguous,
			expectedCodes:  []int{errortypes.GeoLookupWarningCode},
		},
	}

	for _, test := range testCases {
		req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{
			Regs:   test.regs,
			Device: &openrtb2.Device{IP: "1.2.3.4"},
		}}

		var geo geolocation.GeoLocation
		if test.geo != nil {
			geo = test.geo
		}

		c, errs := newResolver(geo).Resolve(context.Background(), req, test.params)

		assert.Equal(t, test.expectedSignal, c.GDPRSignal, test.description)
		assert.Equal(t, test.expectedCodes, warningCodes(errs), test.description)
		if test.geo != nil {
			assert.Equal(t, []string{"1.2.3.4"}, test.geo.ips, test.description)
		}
	}
}

func TestResolveGeoNotConsultedWhenExplicit(t *testing.T) {
	geo := &fakeGeo{info: &geolocation.GeoInfo{Country: "FR"}}
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{Device: &openrtb2.Device{IP: "1.2.3.4"}}}

	c, _ := newResolver(geo).Resolve(context.Background(), req, ConsentParams{GDPRApplies: "false"})

	assert.Equal(t, gdpr.SignalNo, c.GDPRSignal)
	assert.Empty(t, geo.ips)
	assert.Nil(t, c.Geo)
}

func TestResolveNormalizesLegacyLocations(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{
		Regs: &openrtb2.Regs{Ext: json.RawMessage(`{"gdpr":1,"us_privacy":"1YNN","other":true}`)},
		User: &openrtb2.User{ID: "u", Ext: json.RawMessage(`{"consent":"` + tcf2Consent + `"}`)},
	}}

	c, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{})
	require.Empty(t, errs)
	require.NoError(t, req.RebuildRequest())

	assert.Equal(t, gdpr.SignalYes, c.GDPRSignal)
	assert.Equal(t, tcf2Consent, c.Consent)
	assert.Equal(t, "1YNN", c.CCPA)

	assert.Equal(t, ptrutil.ToPtr[int8](1), req.Regs.GDPR)
	assert.Equal(t, "1YNN", req.Regs.USPrivacy)
	assert.JSONEq(t, `{"other":true}`, string(req.Regs.Ext))
	assert.Equal(t, tcf2Consent, req.User.Consent)
	assert.Nil(t, req.User.Ext)
}

func TestResolveGPPSections(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

	c, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{GPP: gppConsent, GPPSID: "2,6"})
	require.Empty(t, errs)

	assert.Equal(t, gdpr.SignalYes, c.GDPRSignal)
	assert.Equal(t, tcf2Consent, c.Consent)
	assert.Equal(t, "1YNN", c.CCPA)
	assert.Equal(t, []int8{2, 6}, c.GPPSID)
	assert.Equal(t, gppConsent, req.Regs.GPP)
	assert.Equal(t, []int8{2, 6}, req.Regs.GPPSID)
}

func TestResolveMalformedGPPSID(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

	c, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{GPPSID: "2,x"})

	assert.Nil(t, c.GPPSID)
	assert.Equal(t, []int{errortypes.InvalidParamWarningCode}, warningCodes(errs))
}

func TestResolveCOPPAAndGPC(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

	c, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{COPPA: "1", GPC: "1", AddtlConsent: "1~7.12"})
	require.Empty(t, errs)
	require.NoError(t, req.RebuildRequest())

	assert.True(t, c.COPPAEnforced())
	assert.True(t, c.GPC)
	assert.Equal(t, int8(1), req.Regs.COPPA)
	assert.JSONEq(t, `{"gpc":"1"}`, string(req.Regs.Ext))
	assert.JSONEq(t, `{"ConsentedProvidersSettings":{"consented_providers":"1~7.12"}}`, string(req.User.Ext))

	_, errs = newResolver(nil).Resolve(context.Background(), &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}, ConsentParams{COPPA: "yes"})
	assert.Equal(t, []int{errortypes.InvalidParamWarningCode}, warningCodes(errs))
}

func TestResolveMalformedRegsExt(t *testing.T) {
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{
		Regs: &openrtb2.Regs{Ext: json.RawMessage(`{"gdpr":"yes"}`)},
	}}

	_, errs := newResolver(nil).Resolve(context.Background(), req, ConsentParams{})

	require.Len(t, errs, 1)
	assert.IsType(t, &errortypes.BadInput{}, errs[0])
	assert.EqualError(t, errs[0], "request.regs.ext.gdpr must be either 0 or 1")
}

func TestResolveIdempotent(t *testing.T) {
	params := ConsentParams{ConsentType: ConsentTCF2, LegacyConsent: tcf2Consent, USP: "1YNN", GDPRApplies: "1", GPC: "1"}
	req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}

	first, errs := newResolver(nil).Resolve(context.Background(), req, params)
	require.Empty(t, errs)
	require.NoError(t, req.RebuildRequest())
	snapshot, err := json.Marshal(req.BidRequest)
	require.NoError(t, err)

	rewrapped := &openrtb_ext.RequestWrapper{BidRequest: req.BidRequest}
	second, errs := newResolver(nil).Resolve(context.Background(), rewrapped, params)
	require.Empty(t, errs)
	require.NoError(t, rewrapped.RebuildRequest())
	again, err := json.Marshal(rewrapped.BidRequest)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.JSONEq(t, string(snapshot), string(again))
}

func TestConsentParamsFromQuery(t *testing.T) {
	query := url.Values{
		"consent_type": {"2"},
		"gdpr_consent": {tcf2Consent},
		"gdpr_applies": {"true"},
		"gpp_sid":      {"2"},
	}
	header := http.Header{}
	header.Set("Sec-GPC", "1")

	params := ConsentParamsFromQuery(query, header)

	assert.Equal(t, ConsentParams{
		ConsentType:   "2",
		LegacyConsent: tcf2Consent,
		GDPRApplies:   "true",
		GPPSID:        "2",
		GPC:           "1",
	}, params)
	assert.False(t, params.IsEmpty())

	params = ConsentParamsFromQuery(url.Values{"consent_string": {"a"}, "gdpr_consent": {"b"}, "gpc": {"0"}}, header)
	assert.Equal(t, "a", params.LegacyConsent)
	assert.Equal(t, "0", params.GPC)

	assert.True(t, ConsentParamsFromQuery(url.Values{}, nil).IsEmpty())
}

func TestContextHelpers(t *testing.T) {
	assert.True(t, Context{GDPRSignal: gdpr.SignalAmbiguous}.GDPREnforced("1"))
	assert.False(t, Context{GDPRSignal: gdpr.SignalAmbiguous}.GDPREnforced("0"))
	assert.False(t, Context{GDPRSignal: gdpr.SignalNo}.GDPREnforced("1"))
	assert.True(t, Context{CCPA: "1NYN"}.CCPAOptOut())
	assert.False(t, Context{CCPA: "1NNN"}.CCPAOptOut())
}
