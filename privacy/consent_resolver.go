package privacy

import (
	"context"
	"fmt"
	"strings"

	gppConstants "github.com/prebid/go-gpp/constants"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy/ccpa"
	"github.com/prebid/prebid-request-core/privacy/gdpr"
	"github.com/prebid/prebid-request-core/privacy/gpp"
	"github.com/prebid/prebid-request-core/privacy/lmt"
)

// ConsentResolver derives the privacy context of a request and normalizes its consent signals into the
// OpenRTB 2.6 locations.
type ConsentResolver struct {
	eeaCountries map[string]struct{}
	geo          geolocation.GeoLocation
}

// NewConsentResolver builds a resolver. A nil geo disables GDPR scope inference by country.
func NewConsentResolver(cfg config.GDPR, geo geolocation.GeoLocation) *ConsentResolver {
	return &ConsentResolver{
		eeaCountries: cfg.EEACountriesMap,
		geo:          geo,
	}
}

type consentStrings struct {
	tcf string
	usp string
	gpp string
}

// Resolve reads the privacy signals from params and the request body, drops malformed consent strings with a
// warning and writes the outcome back into req. Only a malformed regs.ext or user.ext is fatal.
func (r *ConsentResolver) Resolve(ctx context.Context, req *openrtb_ext.RequestWrapper, params ConsentParams) (Context, []error) {
	regExt, err := req.GetRegExt()
	if err != nil {
		return Context{}, []error{&errortypes.BadInput{Message: err.Error()}}
	}
	userExt, err := req.GetUserExt()
	if err != nil {
		return Context{}, []error{&errortypes.BadInput{Message: err.Error()}}
	}

	consents, errs := selectConsents(params)
	readBodyConsents(req.BidRequest, regExt, userExt, &consents)

	sids, err := gpp.ParseSIDs(params.GPPSID)
	if err != nil {
		errs = append(errs, &errortypes.Warning{Message: err.Error(), WarningCode: errortypes.InvalidParamWarningCode})
		sids = nil
	}
	if params.GPPSID == "" && req.Regs != nil {
		sids = req.Regs.GPPSID
	}

	errs = append(errs, validateConsents(&consents, sids)...)

	c := Context{
		Consent:   consents.tcf,
		CCPA:      consents.usp,
		GPP:       consents.gpp,
		GPPSID:    sids,
		IPAddress: clientIP(req.BidRequest),
	}

	c.GDPRSignal = gdpr.SignalParseApplies(params.GDPRApplies)
	if c.GDPRSignal == gdpr.SignalAmbiguous && req.Regs != nil {
		c.GDPRSignal = gdpr.SignalFromInt8(req.Regs.GDPR)
	}
	if c.GDPRSignal == gdpr.SignalAmbiguous {
		c.GDPRSignal = gdpr.SignalFromInt8(regExt.GetGDPR())
	}
	if c.GDPRSignal == gdpr.SignalAmbiguous && gpp.IsSIDInList(sids, gppConstants.SectionTCFEU2) {
		c.GDPRSignal = gdpr.SignalYes
	}
	if c.GDPRSignal == gdpr.SignalAmbiguous {
		if warning := r.inferFromGeo(ctx, &c); warning != nil {
			errs = append(errs, warning)
		}
	}

	c.COPPA, err = resolveCOPPA(params.COPPA, req.BidRequest)
	if err != nil {
		errs = append(errs, err)
	}

	c.GPC = params.GPC == "1"
	if !c.GPC {
		if gpc := regExt.GetGPC(); gpc != nil && *gpc == "1" {
			c.GPC = true
		}
	}

	c.AddtlConsent = params.AddtlConsent
	if c.AddtlConsent == "" {
		if cps := userExt.GetConsentedProvidersSettings(); cps != nil {
			c.AddtlConsent = cps.ConsentedProviders
		}
	}

	c.LMT = lmt.ReadFromRequest(req.BidRequest)

	if err := write(req, regExt, userExt, c); err != nil {
		return c, append(errs, err)
	}
	return c, errs
}

// selectConsents applies consent_type to the legacy consent_string/gdpr_consent parameter. A regime specific
// parameter always wins over the legacy one.
func selectConsents(params ConsentParams) (consentStrings, []error) {
	consents := consentStrings{
		tcf: params.TCF,
		usp: params.USP,
		gpp: params.GPP,
	}

	legacy := params.LegacyConsent
	if legacy == "" {
		return consents, nil
	}

	switch params.ConsentType {
	case ConsentTCF1, ConsentTCF2:
		if consents.tcf == "" {
			consents.tcf = legacy
		}
	case ConsentUSP:
		if consents.usp == "" {
			consents.usp = legacy
		}
	case ConsentGPP:
		if consents.gpp == "" {
			consents.gpp = legacy
		}
	case "":
		if gdpr.IsValidConsent(legacy) {
			if consents.tcf == "" {
				consents.tcf = legacy
			}
		} else if ccpa.IsValidConsent(legacy) {
			if consents.usp == "" {
				consents.usp = legacy
			}
		} else {
			return consents, []error{&errortypes.Warning{
				Message:     fmt.Sprintf("Amp request parameter consent_string or gdpr_consent have invalid format: %s", legacy),
				WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
			}}
		}
	default:
		return consents, []error{&errortypes.Warning{
			Message:     fmt.Sprintf("Invalid consent_type: %s. consent_string and gdpr_consent are ignored.", params.ConsentType),
			WarningCode: errortypes.InvalidConsentTypeWarningCode,
		}}
	}

	return consents, nil
}

// readBodyConsents fills the strings the parameters left empty from the 2.6 fields, then the legacy ext copies.
func readBodyConsents(req *openrtb2.BidRequest, regExt *openrtb_ext.RegExt, userExt *openrtb_ext.UserExt, consents *consentStrings) {
	if consents.tcf == "" {
		if req.User != nil && req.User.Consent != "" {
			consents.tcf = req.User.Consent
		} else if consent := userExt.GetConsent(); consent != nil {
			consents.tcf = *consent
		}
	}

	if consents.usp == "" {
		if req.Regs != nil && req.Regs.USPrivacy != "" {
			consents.usp = req.Regs.USPrivacy
		} else {
			consents.usp = regExt.GetUSPrivacy()
		}
	}

	if consents.gpp == "" && req.Regs != nil {
		consents.gpp = req.Regs.GPP
	}
}

// validateConsents drops malformed strings. A valid GPP string listing the TCF EU or US Privacy sections in
// sids provides them when no standalone string was sent.
func validateConsents(consents *consentStrings, sids []int8) []error {
	var errs []error

	if consents.gpp != "" {
		container, err := gpp.Parse(consents.gpp)
		if err != nil {
			errs = append(errs, &errortypes.Warning{
				Message:     fmt.Sprintf("GPP consent string is invalid and will be ignored: %v", err),
				WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
			})
			consents.gpp = ""
		} else {
			if consents.tcf == "" && gpp.IsSIDInList(sids, gppConstants.SectionTCFEU2) {
				consents.tcf = gpp.SectionValue(container, gppConstants.SectionTCFEU2)
			}
			if consents.usp == "" && gpp.IsSIDInList(sids, gppConstants.SectionUSPV1) {
				consents.usp = gpp.SectionValue(container, gppConstants.SectionUSPV1)
			}
		}
	}

	if consents.tcf != "" && !gdpr.IsValidConsent(consents.tcf) {
		errs = append(errs, &errortypes.Warning{
			Message:     fmt.Sprintf("Consent string '%s' is not a valid TCF consent string and will be ignored.", consents.tcf),
			WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
		})
		consents.tcf = ""
	}

	if err := (ccpa.Policy{Consent: consents.usp}).Validate(); err != nil {
		errs = append(errs, &errortypes.Warning{
			Message:     err.Error(),
			WarningCode: errortypes.InvalidPrivacyConsentWarningCode,
		})
		consents.usp = ""
	}

	return errs
}

// inferFromGeo sets the GDPR signal from the country of the client ip.
func (r *ConsentResolver) inferFromGeo(ctx context.Context, c *Context) error {
	if r.geo == nil || c.IPAddress == "" {
		return nil
	}

	geo, err := r.geo.Lookup(ctx, c.IPAddress)
	if err != nil || geo == nil {
		return &errortypes.Warning{
			Message:     fmt.Sprintf("Geo lookup of %s failed, gdpr scope is undetermined: %v", c.IPAddress, err),
			WarningCode: errortypes.GeoLookupWarningCode,
		}
	}

	c.Geo = geo
	if _, inEEA := r.eeaCountries[strings.ToUpper(geo.Country)]; inEEA {
		c.GDPRSignal = gdpr.SignalYes
	} else {
		c.GDPRSignal = gdpr.SignalNo
	}
	return nil
}

func resolveCOPPA(raw string, req *openrtb2.BidRequest) (int8, error) {
	switch raw {
	case "1":
		return 1, nil
	case "0":
		return 0, nil
	case "":
		if req.Regs != nil {
			return req.Regs.COPPA, nil
		}
		return 0, nil
	}

	var coppa int8
	if req.Regs != nil {
		coppa = req.Regs.COPPA
	}
	return coppa, &errortypes.Warning{
		Message:     fmt.Sprintf("coppa must be 0 or 1, %q is ignored", raw),
		WarningCode: errortypes.InvalidParamWarningCode,
	}
}

func clientIP(req *openrtb2.BidRequest) string {
	if req.Device == nil {
		return ""
	}
	if req.Device.IP != "" {
		return req.Device.IP
	}
	return req.Device.IPv6
}

// write stores the resolved signals in the 2.6 fields and removes the legacy ext copies.
func write(req *openrtb_ext.RequestWrapper, regExt *openrtb_ext.RegExt, userExt *openrtb_ext.UserExt, c Context) error {
	if err := (gdpr.ConsentWriter{Consent: c.Consent, GDPR: c.GDPRSignal.Int8()}).Write(req.BidRequest); err != nil {
		return err
	}
	if err := (ccpa.ConsentWriter{Consent: c.CCPA}).Write(req.BidRequest); err != nil {
		return err
	}

	if c.GPP != "" || len(c.GPPSID) > 0 || c.COPPA != 0 {
		if req.Regs == nil {
			req.Regs = &openrtb2.Regs{}
		}
	}
	if req.Regs != nil {
		req.Regs.GPP = c.GPP
		req.Regs.GPPSID = c.GPPSID
		req.Regs.COPPA = c.COPPA
	}

	if regExt.GetGDPR() != nil {
		regExt.SetGDPR(nil)
	}
	if regExt.GetUSPrivacy() != "" {
		regExt.SetUSPrivacy("")
	}
	if c.GPC {
		if gpc := regExt.GetGPC(); gpc == nil || *gpc != "1" {
			gpc := "1"
			regExt.SetGPC(&gpc)
		}
	}

	if userExt.GetConsent() != nil {
		userExt.SetConsent(nil)
	}
	if c.AddtlConsent != "" {
		if cps := userExt.GetConsentedProvidersSettings(); cps == nil || cps.ConsentedProviders != c.AddtlConsent {
			userExt.SetConsentedProvidersSettings(&openrtb_ext.ExtUserConsentedProvidersSettings{ConsentedProviders: c.AddtlConsent})
		}
	}

	return nil
}
