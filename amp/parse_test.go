package amp

import (
	"net/url"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	var expectedTimeout uint64 = 42

	testCases := []struct {
		description    string
		query          string
		expectedParams Params
		expectedError  string
	}{
		{
			description:   "missing tag_id",
			query:         "account=1",
			expectedError: "AMP requests require an AMP tag_id",
		},
		{
			description:    "tag_id only",
			query:          "tag_id=anyTagID",
			expectedParams: Params{StoredRequestID: "anyTagID"},
		},
		{
			description: "all fields",
			query: "tag_id=anyTagID&account=anyAccount&curl=anyCurl&debug=1&__amp_source_origin=anyOrigin" +
				"&slot=anySlot&timeout=42&w=1&h=2&ow=3&oh=4&ms=10x11,12x13&targeting=%7B%22k%22%3A%22v%22%7D",
			expectedParams: Params{
				Account:      "anyAccount",
				CanonicalURL: "anyCurl",
				Debug:        true,
				Origin:       "anyOrigin",
				Size: Size{
					Width:          1,
					Height:         2,
					OverrideWidth:  3,
					OverrideHeight: 4,
					Multisize:      []openrtb2.Format{{W: 10, H: 11}, {W: 12, H: 13}},
				},
				Slot:            "anySlot",
				StoredRequestID: "anyTagID",
				Targeting:       `{"k":"v"}`,
				Timeout:         &expectedTimeout,
			},
		},
		{
			description:    "pubid wins over account",
			query:          "tag_id=anyTagID&account=anyAccount&pubid=anyPub",
			expectedParams: Params{Account: "anyPub", StoredRequestID: "anyTagID"},
		},
		{
			description:    "unsubstituted account macro is ignored",
			query:          "tag_id=anyTagID&account=ACCOUNT_ID",
			expectedParams: Params{StoredRequestID: "anyTagID"},
		},
		{
			description:    "malformed timeout is ignored",
			query:          "tag_id=anyTagID&timeout=soon",
			expectedParams: Params{StoredRequestID: "anyTagID"},
		},
		{
			description:    "debug other than 1 is off",
			query:          "tag_id=anyTagID&debug=true",
			expectedParams: Params{StoredRequestID: "anyTagID"},
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			query, err := url.ParseQuery(test.query)
			require.NoError(t, err)

			params, err := ParseParams(query)

			if test.expectedError != "" {
				assert.EqualError(t, err, test.expectedError)
				assert.Empty(t, params)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, test.expectedParams, params)
			}
		})
	}
}

func TestParseTimeout(t *testing.T) {
	var fifty uint64 = 50
	var seventy uint64 = 70

	testCases := []struct {
		description   string
		query         url.Values
		expected      *uint64
		expectedError bool
	}{
		{description: "absent", query: url.Values{}},
		{description: "timeout", query: url.Values{"timeout": {"50"}}, expected: &fifty},
		{description: "tmax", query: url.Values{"tmax": {"70"}}, expected: &seventy},
		{description: "timeout wins over tmax", query: url.Values{"timeout": {"50"}, "tmax": {"70"}}, expected: &fifty},
		{description: "negative", query: url.Values{"timeout": {"-1"}}, expectedError: true},
		{description: "not a number", query: url.Values{"tmax": {"abc"}}, expectedError: true},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			timeout, err := ParseTimeout(test.query)
			if test.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.expected, timeout)
		})
	}
}

func TestParseMultisize(t *testing.T) {
	testCases := []struct {
		description string
		multisize   string
		expected    []openrtb2.Format
	}{
		{description: "empty", multisize: "", expected: nil},
		{description: "one", multisize: "300x250", expected: []openrtb2.Format{{W: 300, H: 250}}},
		{description: "many", multisize: "300x250,728x90", expected: []openrtb2.Format{{W: 300, H: 250}, {W: 728, H: 90}}},
		{description: "one dimension zero", multisize: "0x250", expected: []openrtb2.Format{{W: 0, H: 250}}},
		{description: "both dimensions zero", multisize: "0x0", expected: nil},
		{description: "malformed pair", multisize: "300x250,728", expected: nil},
		{description: "malformed number", multisize: "axb", expected: nil},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, ParseMultisize(test.multisize))
		})
	}
}

func TestSizeApply(t *testing.T) {
	storedFormats := func() []openrtb2.Format {
		return []openrtb2.Format{{W: 300, H: 250}, {W: 320, H: 50}}
	}

	testCases := []struct {
		description string
		size        Size
		expected    []openrtb2.Format
	}{
		{
			description: "no overrides keeps stored formats",
			expected:    storedFormats(),
		},
		{
			description: "override pair wins over everything",
			size:        Size{OverrideWidth: 1, OverrideHeight: 2, Width: 3, Height: 4, Multisize: []openrtb2.Format{{W: 5, H: 6}}},
			expected:    []openrtb2.Format{{W: 1, H: 2}},
		},
		{
			description: "width and height pair wins over multisize",
			size:        Size{Width: 3, Height: 4, Multisize: []openrtb2.Format{{W: 5, H: 6}}},
			expected:    []openrtb2.Format{{W: 3, H: 4}},
		},
		{
			description: "override width combines with height",
			size:        Size{OverrideWidth: 1, Height: 4},
			expected:    []openrtb2.Format{{W: 1, H: 4}},
		},
		{
			description: "multisize wins over stored formats",
			size:        Size{Multisize: []openrtb2.Format{{W: 5, H: 6}}},
			expected:    []openrtb2.Format{{W: 5, H: 6}},
		},
		{
			description: "width only applies to every stored format",
			size:        Size{Width: 7},
			expected:    []openrtb2.Format{{W: 7, H: 250}, {W: 7, H: 50}},
		},
		{
			description: "override height only applies to every stored format",
			size:        Size{Height: 1, OverrideHeight: 8},
			expected:    []openrtb2.Format{{W: 300, H: 8}, {W: 320, H: 8}},
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			banner := &openrtb2.Banner{Format: storedFormats()}
			test.size.Apply(banner)
			assert.Equal(t, test.expected, banner.Format)
		})
	}
}
