package privacy

import (
	"net/http"
	"net/url"
)

// Values of the consent_type parameter.
const (
	ConsentTCF1 = "1"
	ConsentTCF2 = "2"
	ConsentUSP  = "3"
	ConsentGPP  = "4"
)

// ConsentParams are the raw privacy inputs of the query string based endpoints.
type ConsentParams struct {
	ConsentType   string
	LegacyConsent string
	TCF           string
	USP           string
	GPP           string
	GPPSID        string
	GDPRApplies   string
	AddtlConsent  string
	COPPA         string
	GPC           string
}

// ConsentParamsFromQuery reads the privacy parameters of an AMP or GET request. The Sec-GPC header is
// honored when the gpc parameter is absent.
func ConsentParamsFromQuery(query url.Values, header http.Header) ConsentParams {
	params := ConsentParams{
		ConsentType:   query.Get("consent_type"),
		LegacyConsent: query.Get("consent_string"),
		TCF:           query.Get("tcfc"),
		USP:           query.Get("usp"),
		GPP:           query.Get("gppc"),
		GPPSID:        query.Get("gpp_sid"),
		GDPRApplies:   query.Get("gdpr_applies"),
		AddtlConsent:  query.Get("addtl_consent"),
		COPPA:         query.Get("coppa"),
		GPC:           query.Get("gpc"),
	}

	if params.LegacyConsent == "" {
		params.LegacyConsent = query.Get("gdpr_consent")
	}

	if params.GPC == "" && header != nil {
		params.GPC = header.Get("Sec-GPC")
	}

	return params
}

// IsEmpty is true when no privacy parameter was supplied.
func (p ConsentParams) IsEmpty() bool {
	return p == ConsentParams{}
}
