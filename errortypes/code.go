package errortypes

// Defines numeric codes for well-known errors.
const (
	UnknownErrorCode = 999
	TimeoutErrorCode = iota
	BadInputErrorCode
	BlacklistedAppErrorCode
	BlacklistedAcctErrorCode
	BadServerResponseErrorCode
	AccountDisabledErrorCode
	AcctRequiredErrorCode
	MalformedAcctErrorCode
)

// Defines numeric codes for well-known warnings.
const (
	UnknownWarningCode               = 10999
	InvalidPrivacyConsentWarningCode = iota + 10000
	InvalidConsentTypeWarningCode
	ImpressionsTruncatedWarningCode
	AccountFallbackWarningCode
	GeoLookupWarningCode
	InvalidParamWarningCode
	StoredRequestFallbackWarningCode
)

// Coder provides an error or warning code with severity.
type Coder interface {
	Code() int
	Severity() Severity
}

// ReadCode returns the error or warning code, or UnknownErrorCode if unavailable.
func ReadCode(err error) int {
	if e, ok := err.(Coder); ok {
		return e.Code()
	}
	return UnknownErrorCode
}

// IsUnauthorized reports whether the error rejects the request because of who sent it
// rather than what was sent.
func IsUnauthorized(err error) bool {
	switch ReadCode(err) {
	case BlacklistedAppErrorCode, BlacklistedAcctErrorCode, AccountDisabledErrorCode, AcctRequiredErrorCode:
		return true
	}
	return false
}
