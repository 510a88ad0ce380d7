package gdpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConsent(t *testing.T) {
	tests := []struct {
		description string
		consent     string
		wantVersion uint8
		wantError   bool
	}{
		{
			description: "TCF2 consent",
			consent:     "CPuKGCPPuKGCPNEAAAENCZCAAAAAAAAAAAAAAAAAAAAA",
			wantVersion: 2,
		},
		{
			description: "TCF1 consent",
			consent:     "COzTVhaOzTVhaGvAAAENAiCIAP_AAH_AAAAAAEEUACCKAAA",
			wantVersion: 1,
		},
		{
			description: "empty",
			consent:     "",
			wantError:   true,
		},
		{
			description: "not base64",
			consent:     "<>invalid",
			wantError:   true,
		},
		{
			description: "CCPA string",
			consent:     "1YNN",
			wantError:   true,
		},
	}

	for _, test := range tests {
		version, err := ValidateConsent(test.consent)

		if test.wantError {
			assert.IsType(t, &ErrorMalformedConsent{}, err, test.description)
			assert.False(t, IsValidConsent(test.consent), test.description)
		} else {
			assert.NoError(t, err, test.description)
			assert.Equal(t, test.wantVersion, version, test.description)
			assert.True(t, IsValidConsent(test.consent), test.description)
		}
	}
}
