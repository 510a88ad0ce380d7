package ccpa

import (
	"errors"
	"fmt"
)

const (
	ccpaVersion1      = '1'
	ccpaNo            = 'N'
	ccpaYes           = 'Y'
	ccpaNotApplicable = '-'
)

const (
	indexVersion                = 0
	indexExplicitNotice         = 1
	indexOptOutSale             = 2
	indexLSPACoveredTransaction = 3
)

// Policy represents the US Privacy (CCPA) signal of a request.
type Policy struct {
	Consent string
}

// Validate returns an error if the consent is present and malformed.
func (p Policy) Validate() error {
	if err := ValidateConsent(p.Consent); err != nil {
		return fmt.Errorf("request.regs.us_privacy %s", err.Error())
	}
	return nil
}

// OptOutSale reports whether the consent is valid and explicitly opts out of sale.
func (p Policy) OptOutSale() bool {
	return p.Consent != "" && ValidateConsent(p.Consent) == nil && p.Consent[indexOptOutSale] == ccpaYes
}

// IsValidConsent reports whether consent is a well formed US Privacy string.
func IsValidConsent(consent string) bool {
	return consent != "" && ValidateConsent(consent) == nil
}

// ValidateConsent returns an error if the CCPA consent string does not adhere to the IAB spec. An empty
// consent is valid.
func ValidateConsent(consent string) error {
	if consent == "" {
		return nil
	}

	if len(consent) != 4 {
		return errors.New("must contain 4 characters")
	}

	if consent[indexVersion] != ccpaVersion1 {
		return errors.New("must specify version 1")
	}

	if !validFlag(consent[indexExplicitNotice]) {
		return errors.New("must specify 'N', 'Y', or '-' for the explicit notice")
	}

	if !validFlag(consent[indexOptOutSale]) {
		return errors.New("must specify 'N', 'Y', or '-' for the opt-out sale")
	}

	if !validFlag(consent[indexLSPACoveredTransaction]) {
		return errors.New("must specify 'N', 'Y', or '-' for the limited service provider agreement")
	}

	return nil
}

func validFlag(c byte) bool {
	return c == ccpaNo || c == ccpaYes || c == ccpaNotApplicable
}
