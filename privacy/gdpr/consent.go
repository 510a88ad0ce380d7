package gdpr

import (
	"fmt"

	"github.com/prebid/go-gdpr/api"
	"github.com/prebid/go-gdpr/vendorconsent"
)

// ErrorMalformedConsent is returned for consent strings which are not valid TCF strings.
type ErrorMalformedConsent struct {
	Consent string
	Cause   error
}

func (e *ErrorMalformedConsent) Error() string {
	return fmt.Sprintf("malformed consent string %s: %v", e.Consent, e.Cause)
}

// ValidateConsent returns the TCF encoding version of consent, or an *ErrorMalformedConsent when it is not
// a well formed TCF v1 or v2 string.
func ValidateConsent(consent string) (uint8, error) {
	parsedConsent, err := vendorconsent.ParseString(consent)
	if err != nil {
		return 0, &ErrorMalformedConsent{
			Consent: consent,
			Cause:   err,
		}
	}

	if err := validateVersions(parsedConsent); err != nil {
		return 0, &ErrorMalformedConsent{
			Consent: consent,
			Cause:   err,
		}
	}

	return parsedConsent.Version(), nil
}

// IsValidConsent reports whether consent is a well formed TCF string.
func IsValidConsent(consent string) bool {
	_, err := ValidateConsent(consent)
	return err == nil
}

// validateVersions ensures that certain version fields in the consent string contain valid values.
// An error is returned if at least one of them is invalid
func validateVersions(pc api.VendorConsents) (err error) {
	version := pc.Version()
	if version != 1 && version != 2 {
		return fmt.Errorf("invalid encoding format version: %d", version)
	}
	policyVersion := pc.TCFPolicyVersion()
	if policyVersion > 4 {
		return fmt.Errorf("invalid TCF policy version: %d", policyVersion)
	}
	return
}
