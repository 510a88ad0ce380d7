package openrtb_ext

// ExtUserConsentedProvidersSettings defines the contract for user.ext.ConsentedProvidersSettings, which carries
// the Google additional consent string.
type ExtUserConsentedProvidersSettings struct {
	ConsentedProviders string `json:"consented_providers,omitempty"`
}
