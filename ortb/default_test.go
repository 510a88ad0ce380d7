package ortb

import (
	"encoding/json"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

const defaultTargetingJSON = `"targeting":{"pricegranularity":{"precision":2,"ranges":[{"min":0,"max":20,"increment":0.1}]},"includewinners":true,"includebidderkeys":true}`

func TestSetDefaults(t *testing.T) {
	testCases := []struct {
		name            string
		givenRequest    openrtb2.BidRequest
		givenOptions    DefaultOptions
		expectedRequest openrtb2.BidRequest
		expectedErr     string
	}{
		{
			name:            "empty",
			givenRequest:    openrtb2.BidRequest{},
			expectedRequest: openrtb2.BidRequest{AT: 1},
		},
		{
			name:            "malformed request.ext",
			givenRequest:    openrtb2.BidRequest{Ext: json.RawMessage(`malformed`)},
			expectedRequest: openrtb2.BidRequest{Ext: json.RawMessage(`malformed`)},
			expectedErr:     "invalid character 'm' looking for beginning of value",
		},
		{
			name:            "targeting",
			givenRequest:    openrtb2.BidRequest{Ext: json.RawMessage(`{"prebid":{"targeting":{}}}`)},
			expectedRequest: openrtb2.BidRequest{AT: 1, Ext: json.RawMessage(`{"prebid":{` + defaultTargetingJSON + `}}`)},
		},
		{
			name:         "amp",
			givenRequest: openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}},
			givenOptions: DefaultOptions{AMP: true, Currency: "USD"},
			expectedRequest: openrtb2.BidRequest{
				AT:   1,
				Cur:  []string{"USD"},
				Site: &openrtb2.Site{ID: "s"},
				Ext:  json.RawMessage(`{"prebid":{"cache":{"bids":{},"vastxml":{}},"channel":{"name":"amp"},` + defaultTargetingJSON + `}}`),
			},
		},
		{
			name:         "amp with host winningonly",
			givenRequest: openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}},
			givenOptions: DefaultOptions{AMP: true, WinningOnly: true},
			expectedRequest: openrtb2.BidRequest{
				AT:   1,
				Site: &openrtb2.Site{ID: "s"},
				Ext:  json.RawMessage(`{"prebid":{"cache":{"bids":{},"vastxml":{},"winningonly":true},"channel":{"name":"amp"},"targeting":{"pricegranularity":{"precision":2,"ranges":[{"min":0,"max":20,"increment":0.1}]},"includewinners":true,"includebidderkeys":false}}}`),
			},
		},
		{
			name:         "request winningonly beats host",
			givenRequest: openrtb2.BidRequest{Ext: json.RawMessage(`{"prebid":{"cache":{"winningonly":false},"targeting":{}}}`)},
			givenOptions: DefaultOptions{WinningOnly: true},
			expectedRequest: openrtb2.BidRequest{
				AT:  1,
				Ext: json.RawMessage(`{"prebid":{"cache":{"winningonly":false},` + defaultTargetingJSON + `}}`),
			},
		},
		{
			name:         "request winningonly drops bidder keys",
			givenRequest: openrtb2.BidRequest{Ext: json.RawMessage(`{"prebid":{"cache":{"winningonly":true},"targeting":{}}}`)},
			expectedRequest: openrtb2.BidRequest{
				AT:  1,
				Ext: json.RawMessage(`{"prebid":{"cache":{"winningonly":true},"targeting":{"pricegranularity":{"precision":2,"ranges":[{"min":0,"max":20,"increment":0.1}]},"includewinners":true,"includebidderkeys":false}}}`),
			},
		},
		{
			name:         "web channel",
			givenRequest: openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}},
			expectedRequest: openrtb2.BidRequest{
				AT:   1,
				Site: &openrtb2.Site{ID: "s"},
				Ext:  json.RawMessage(`{"prebid":{"channel":{"name":"web"}}}`),
			},
		},
		{
			name:         "app beats site",
			givenRequest: openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}, App: &openrtb2.App{ID: "a"}, Ext: json.RawMessage(`{"other":1}`)},
			expectedRequest: openrtb2.BidRequest{
				AT:   1,
				Site: &openrtb2.Site{ID: "s"},
				App:  &openrtb2.App{ID: "a"},
				Ext:  json.RawMessage(`{"other":1,"prebid":{"channel":{"name":"app"}}}`),
			},
		},
		{
			name:         "dooh channel",
			givenRequest: openrtb2.BidRequest{DOOH: &openrtb2.DOOH{ID: "d"}, Ext: json.RawMessage(`{"prebid":{"debug":true}}`)},
			expectedRequest: openrtb2.BidRequest{
				AT:   1,
				DOOH: &openrtb2.DOOH{ID: "d"},
				Ext:  json.RawMessage(`{"prebid":{"debug":true,"channel":{"name":"dooh"}}}`),
			},
		},
		{
			name:            "explicit empty channel",
			givenRequest:    openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}, Ext: json.RawMessage(`{"prebid":{"channel":{"name":""}}}`)},
			expectedRequest: openrtb2.BidRequest{Site: &openrtb2.Site{ID: "s"}, Ext: json.RawMessage(`{"prebid":{"channel":{"name":""}}}`)},
			expectedErr:     "ext.prebid.channel.name can't be empty",
		},
		{
			name: "secure",
			givenRequest: openrtb2.BidRequest{
				AT:  2,
				Cur: []string{"EUR"},
				Imp: []openrtb2.Imp{{ID: "1"}, {ID: "2", Secure: ptrutil.ToPtr[int8](0)}},
			},
			givenOptions: DefaultOptions{Secure: true, Currency: "USD"},
			expectedRequest: openrtb2.BidRequest{
				AT:  2,
				Cur: []string{"EUR"},
				Imp: []openrtb2.Imp{{ID: "1", Secure: ptrutil.ToPtr[int8](1)}, {ID: "2", Secure: ptrutil.ToPtr[int8](0)}},
			},
		},
		{
			name:            "insecure transport leaves secure unset",
			givenRequest:    openrtb2.BidRequest{Imp: []openrtb2.Imp{{ID: "1"}}},
			expectedRequest: openrtb2.BidRequest{AT: 1, Imp: []openrtb2.Imp{{ID: "1"}}},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			wrapper := &openrtb_ext.RequestWrapper{BidRequest: &test.givenRequest}

			err := SetDefaults(wrapper, test.givenOptions)

			require.NoError(t, wrapper.RebuildRequest(), "Rebuild Request")

			if len(test.expectedErr) > 0 {
				assert.EqualError(t, err, test.expectedErr, "Error")
				assert.Equal(t, &test.expectedRequest, wrapper.BidRequest, "Request")
				return
			}
			require.NoError(t, err)

			// assert request as json to ignore order in ext fields
			expectedRequestJSON, err := json.Marshal(test.expectedRequest)
			require.NoError(t, err, "Marshal Expected Request")

			actualRequestJSON, err := json.Marshal(wrapper.BidRequest)
			require.NoError(t, err, "Marshal Actual Request")

			assert.JSONEq(t, string(expectedRequestJSON), string(actualRequestJSON), "Request")
		})
	}
}

func TestSetDefaultsChannelErrorIsBadInput(t *testing.T) {
	wrapper := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{Ext: json.RawMessage(`{"prebid":{"channel":{"name":""}}}`)}}
	err := SetDefaults(wrapper, DefaultOptions{})
	assert.IsType(t, &errortypes.BadInput{}, err)
}

func TestSetDefaultsIdempotent(t *testing.T) {
	request := &openrtb2.BidRequest{
		Site: &openrtb2.Site{ID: "s"},
		Imp:  []openrtb2.Imp{{ID: "1"}},
		Ext:  json.RawMessage(`{"prebid":{"targeting":{"mediatypepricegranularity":{"banner":{"ranges":[{"min":1,"max":5,"increment":0.5}]}}}}}`),
	}
	opts := DefaultOptions{AMP: true, Secure: true, WinningOnly: true, Currency: "USD"}

	first := &openrtb_ext.RequestWrapper{BidRequest: request}
	require.NoError(t, SetDefaults(first, opts))
	require.NoError(t, first.RebuildRequest())
	firstJSON, err := json.Marshal(first.BidRequest)
	require.NoError(t, err)

	second := &openrtb_ext.RequestWrapper{BidRequest: first.BidRequest}
	require.NoError(t, SetDefaults(second, opts))
	require.NoError(t, second.RebuildRequest())
	secondJSON, err := json.Marshal(second.BidRequest)
	require.NoError(t, err)

	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestSetDefaultsTargeting(t *testing.T) {
	defaultGranularity := openrtb_ext.PriceGranularity{
		Precision: ptrutil.ToPtr(DefaultPriceGranularityPrecision),
		Ranges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 20, Increment: 0.1}},
	}

	testCases := []struct {
		name              string
		givenTargeting    *openrtb_ext.ExtRequestTargeting
		givenWinningOnly  bool
		expectedTargeting *openrtb_ext.ExtRequestTargeting
	}{
		{
			name:              "nil",
			givenTargeting:    nil,
			expectedTargeting: nil,
		},
		{
			name:           "empty", // all defaults set
			givenTargeting: &openrtb_ext.ExtRequestTargeting{},
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity:  &defaultGranularity,
				IncludeWinners:    ptrutil.ToPtr(DefaultTargetingIncludeWinners),
				IncludeBidderKeys: ptrutil.ToPtr(DefaultTargetingIncludeBidderKeys),
			},
		},
		{
			name:             "empty winning only",
			givenTargeting:   &openrtb_ext.ExtRequestTargeting{},
			givenWinningOnly: true,
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity:  &defaultGranularity,
				IncludeWinners:    ptrutil.ToPtr(DefaultTargetingIncludeWinners),
				IncludeBidderKeys: ptrutil.ToPtr(false),
			},
		},
		{
			name: "empty ranges",
			givenTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity:  &openrtb_ext.PriceGranularity{Precision: ptrutil.ToPtr(4)},
				IncludeWinners:    ptrutil.ToPtr(false),
				IncludeBidderKeys: ptrutil.ToPtr(false),
			},
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity:  &defaultGranularity,
				IncludeWinners:    ptrutil.ToPtr(false),
				IncludeBidderKeys: ptrutil.ToPtr(false),
			},
		},
		{
			name: "populated partial", // precision and includewinners defaults set
			givenTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity: &openrtb_ext.PriceGranularity{
					Ranges: []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
				},
				IncludeBidderKeys: ptrutil.ToPtr(false),
			},
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity: &openrtb_ext.PriceGranularity{
					Precision: ptrutil.ToPtr(DefaultPriceGranularityPrecision),
					Ranges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
				},
				IncludeWinners:    ptrutil.ToPtr(DefaultTargetingIncludeWinners),
				IncludeBidderKeys: ptrutil.ToPtr(false),
			},
		},
		{
			name: "media type granularity kept and normalized",
			givenTargeting: &openrtb_ext.ExtRequestTargeting{
				MediaTypePriceGranularity: &openrtb_ext.MediaTypePriceGranularity{
					Video: &openrtb_ext.PriceGranularity{
						Ranges: []openrtb_ext.GranularityRange{{Min: 5, Max: 10, Increment: 1}},
					},
				},
			},
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity: &defaultGranularity,
				MediaTypePriceGranularity: &openrtb_ext.MediaTypePriceGranularity{
					Video: &openrtb_ext.PriceGranularity{
						Precision: ptrutil.ToPtr(DefaultPriceGranularityPrecision),
						Ranges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
					},
				},
				IncludeWinners:    ptrutil.ToPtr(DefaultTargetingIncludeWinners),
				IncludeBidderKeys: ptrutil.ToPtr(DefaultTargetingIncludeBidderKeys),
			},
		},
		{
			name: "populated full", // no defaults set
			givenTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity: &openrtb_ext.PriceGranularity{
					Precision: ptrutil.ToPtr(4),
					Ranges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
				},
				IncludeWinners:    ptrutil.ToPtr(false),
				IncludeBidderKeys: ptrutil.ToPtr(true),
			},
			givenWinningOnly: true,
			expectedTargeting: &openrtb_ext.ExtRequestTargeting{
				PriceGranularity: &openrtb_ext.PriceGranularity{
					Precision: ptrutil.ToPtr(4),
					Ranges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
				},
				IncludeWinners:    ptrutil.ToPtr(false),
				IncludeBidderKeys: ptrutil.ToPtr(true),
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			setDefaultsTargeting(test.givenTargeting, test.givenWinningOnly)
			assert.Equal(t, test.expectedTargeting, test.givenTargeting)
		})
	}
}

func TestSetDefaultsPriceGranularityRange(t *testing.T) {
	testCases := []struct {
		name           string
		givenRanges    []openrtb_ext.GranularityRange
		expectedRanges []openrtb_ext.GranularityRange
	}{
		{
			name:           "nil",
			givenRanges:    nil,
			expectedRanges: nil,
		},
		{
			name:           "one - fixed",
			givenRanges:    []openrtb_ext.GranularityRange{{Min: 5, Max: 10, Increment: 1}},
			expectedRanges: []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}},
		},
		{
			name:           "many - ok",
			givenRanges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}, {Min: 10, Max: 20, Increment: 1}},
			expectedRanges: []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}, {Min: 10, Max: 20, Increment: 1}},
		},
		{
			name:           "many - fixed",
			givenRanges:    []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}, {Min: 15, Max: 20, Increment: 1}},
			expectedRanges: []openrtb_ext.GranularityRange{{Min: 0, Max: 10, Increment: 1}, {Min: 10, Max: 20, Increment: 1}},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			setDefaultsPriceGranularityRange(test.givenRanges)
			assert.Equal(t, test.expectedRanges, test.givenRanges)
		})
	}
}
