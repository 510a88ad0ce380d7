package ortb

import (
	"encoding/json"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

func TestValidateRequest(t *testing.T) {
	validBanner := &openrtb2.Banner{W: ptrutil.ToPtr[int64](300), H: ptrutil.ToPtr[int64](250)}

	testCases := []struct {
		description string
		request     *openrtb2.BidRequest
		expectedErr string
	}{
		{
			description: "valid",
			request: &openrtb2.BidRequest{
				Site: &openrtb2.Site{},
				Imp:  []openrtb2.Imp{{ID: "1", Banner: validBanner}, {ID: "2", Video: &openrtb2.Video{MIMEs: []string{"video/mp4"}}}},
			},
		},
		{
			description: "native passes through",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Native: &openrtb2.Native{Request: "{}"}}},
			},
		},
		{
			description: "no imps",
			request:     &openrtb2.BidRequest{Site: &openrtb2.Site{}},
			expectedErr: "request.imp must contain at least one element.",
		},
		{
			description: "site and app",
			request: &openrtb2.BidRequest{
				Site: &openrtb2.Site{},
				App:  &openrtb2.App{},
				Imp:  []openrtb2.Imp{{ID: "1", Banner: validBanner}},
			},
			expectedErr: "request must not contain more than one of \"site\", \"app\" or \"dooh\"",
		},
		{
			description: "duplicate imp ids",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Banner: validBanner}, {ID: "1", Banner: validBanner}},
			},
			expectedErr: "request.imp[0].id and request.imp[1].id are both \"1\". Imp IDs must be unique.",
		},
		{
			description: "blank imp id",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{Banner: validBanner}},
			},
			expectedErr: "request.imp[0] missing required field: \"id\"",
		},
		{
			description: "no media type",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1"}},
			},
			expectedErr: "request.imp[0] must contain exactly one of \"banner\", \"video\", \"audio\", or \"native\"",
		},
		{
			description: "two media types",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Banner: validBanner, Video: &openrtb2.Video{MIMEs: []string{"video/mp4"}}}},
			},
			expectedErr: "request.imp[0] must contain exactly one of \"banner\", \"video\", \"audio\", or \"native\"",
		},
		{
			description: "banner without sizes",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Banner: &openrtb2.Banner{}}},
			},
			expectedErr: "request.imp[0].banner has no sizes. Define \"w\" and \"h\", or include \"format\" elements.",
		},
		{
			description: "video without mimes",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Video: &openrtb2.Video{}}},
			},
			expectedErr: "request.imp[0].video.mimes must contain at least one supported MIME type",
		},
		{
			description: "malformed imp ext",
			request: &openrtb2.BidRequest{
				Imp: []openrtb2.Imp{{ID: "1", Banner: validBanner, Ext: json.RawMessage(`[]`)}},
			},
			expectedErr: "request.imp[0].ext is invalid: json: cannot unmarshal array into Go value of type map[string]json.RawMessage",
		},
	}

	for _, test := range testCases {
		errs := ValidateRequest(&openrtb_ext.RequestWrapper{BidRequest: test.request})
		if test.expectedErr == "" {
			assert.Empty(t, errs, test.description)
			continue
		}
		if assert.Len(t, errs, 1, test.description) {
			assert.EqualError(t, errs[0], test.expectedErr, test.description)
			assert.IsType(t, &errortypes.BadInput{}, errs[0], test.description)
		}
	}
}
