package errortypes

// Timeout should be used to flag that a pipeline stage could not finish before the
// request's timeout budget expired.
//
// Timeouts will not be written to the app log, since it's not an actionable item for the hosts.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad input.
// It should _not_ be used if the error is a server-side issue (e.g. failed to fetch a stored request).
//
// BadInputs will not be written to the app log, since it's not an actionable item for the hosts.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// BlacklistedApp should be used when a request App.ID matches an entry in the blacklisted_apps
// configuration list.
//
// These errors will be written to http.ResponseWriter before canceling execution
type BlacklistedApp struct {
	Message string
}

func (err *BlacklistedApp) Error() string {
	return err.Message
}

func (err *BlacklistedApp) Code() int {
	return BlacklistedAppErrorCode
}

func (err *BlacklistedApp) Severity() Severity {
	return SeverityFatal
}

// BlacklistedAcct should be used when a request account ID matches an entry in the blacklisted_accts
// configuration list.
//
// These errors will be written to http.ResponseWriter before canceling execution
type BlacklistedAcct struct {
	Message string
}

func (err *BlacklistedAcct) Error() string {
	return err.Message
}

func (err *BlacklistedAcct) Code() int {
	return BlacklistedAcctErrorCode
}

func (err *BlacklistedAcct) Severity() Severity {
	return SeverityFatal
}

// AcctRequired should be used when account_required is enabled and the request does not
// come with a valid account ID.
//
// These errors will be written to http.ResponseWriter before canceling execution
type AcctRequired struct {
	Message string
}

func (err *AcctRequired) Error() string {
	return err.Message
}

func (err *AcctRequired) Code() int {
	return AcctRequiredErrorCode
}

func (err *AcctRequired) Severity() Severity {
	return SeverityFatal
}

// AccountDisabled should be used when the account configuration marks the account as inactive.
// Inactive accounts are rejected regardless of account_required.
type AccountDisabled struct {
	Message string
}

func (err *AccountDisabled) Error() string {
	return err.Message
}

func (err *AccountDisabled) Code() int {
	return AccountDisabledErrorCode
}

func (err *AccountDisabled) Severity() Severity {
	return SeverityFatal
}

// MalformedAcct should be used when the retrieved account config cannot be unmarshaled
// or does not satisfy the account schema.
//
// These errors will be written to http.ResponseWriter before canceling execution
type MalformedAcct struct {
	Message string
}

func (err *MalformedAcct) Error() string {
	return err.Message
}

func (err *MalformedAcct) Code() int {
	return MalformedAcctErrorCode
}

func (err *MalformedAcct) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse should be used when returning errors which are caused by bad/unexpected behavior
// of a remote collaborator (stored request backend, account backend).
//
// For example:
//
//   - The stored request service responded with a 500
//   - The stored data was malformed JSON.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}
