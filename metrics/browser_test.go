package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrowserFromUserAgent(t *testing.T) {
	testCases := []struct {
		description string
		ua          string
		expected    Browser
	}{
		{
			description: "empty",
			ua:          "",
			expected:    BrowserOther,
		},
		{
			description: "safari",
			ua:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
			expected:    BrowserSafari,
		},
		{
			description: "chrome",
			ua:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			expected:    BrowserOther,
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, BrowserFromUserAgent(test.ua), test.description)
	}
}

func TestTCFVersionToValue(t *testing.T) {
	assert.Equal(t, TCFVersionV1, TCFVersionToValue(1))
	assert.Equal(t, TCFVersionV2, TCFVersionToValue(2))
	assert.Equal(t, TCFVersionErr, TCFVersionToValue(0))
}
