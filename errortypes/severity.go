package errortypes

// Severity tells whether an error ends request processing or is only reported back.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityFatal
	// SeverityWarning marks ignored or repaired input. Throughout the codebase these are of type Warning.
	SeverityWarning
)

// IsWarning returns true if an error is labeled with a Severity of SeverityWarning.
func IsWarning(err error) bool {
	s, ok := err.(Coder)
	return ok && s.Severity() == SeverityWarning
}

// ContainsFatalError reports whether any error is not a warning. Errors without a Coder are fatal.
func ContainsFatalError(errs []error) bool {
	for _, err := range errs {
		if !IsWarning(err) {
			return true
		}
	}
	return false
}

// Split separates the errors which end processing from the warnings, keeping the order of each.
func Split(errs []error) (fatal []error, warnings []error) {
	for _, err := range errs {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			fatal = append(fatal, err)
		}
	}
	return fatal, warnings
}
