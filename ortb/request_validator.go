package ortb

import (
	"errors"
	"fmt"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
)

// ValidateRequest checks the invariants of a fully resolved request. Every returned error is a
// *errortypes.BadInput.
func ValidateRequest(r *openrtb_ext.RequestWrapper) []error {
	if r == nil || r.BidRequest == nil {
		return []error{&errortypes.BadInput{Message: "request is empty"}}
	}

	if err := validateChannel(r.BidRequest); err != nil {
		return []error{badInput(err)}
	}

	imps := r.GetImp()
	if len(imps) == 0 {
		return []error{&errortypes.BadInput{Message: "request.imp must contain at least one element."}}
	}

	seen := make(map[string]int, len(imps))
	for index, imp := range imps {
		if prior, duplicate := seen[imp.ID]; duplicate {
			return []error{&errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d].id and request.imp[%d].id are both %q. Imp IDs must be unique.", prior, index, imp.ID)}}
		}
		seen[imp.ID] = index

		if err := ValidateImp(imp, index); err != nil {
			return []error{badInput(err)}
		}
	}

	return nil
}

// ValidateImp checks a single impression.
func ValidateImp(imp *openrtb_ext.ImpWrapper, index int) error {
	if imp.ID == "" {
		return fmt.Errorf("request.imp[%d] missing required field: \"id\"", index)
	}

	if countMediaTypes(imp.Imp) != 1 {
		return fmt.Errorf("request.imp[%d] must contain exactly one of \"banner\", \"video\", \"audio\", or \"native\"", index)
	}

	if err := validateBanner(imp.Banner, index, imp.Instl == 1); err != nil {
		return err
	}

	if err := validateVideo(imp.Video, index); err != nil {
		return err
	}

	if err := validateAudio(imp.Audio, index); err != nil {
		return err
	}

	if _, err := imp.GetImpExt(); err != nil {
		return fmt.Errorf("request.imp[%d].ext is invalid: %v", index, err)
	}

	return nil
}

func validateChannel(req *openrtb2.BidRequest) error {
	count := 0
	for _, present := range []bool{req.Site != nil, req.App != nil, req.DOOH != nil} {
		if present {
			count++
		}
	}
	if count > 1 {
		return errors.New("request must not contain more than one of \"site\", \"app\" or \"dooh\"")
	}
	return nil
}

func countMediaTypes(imp *openrtb2.Imp) int {
	count := 0
	if imp.Banner != nil {
		count++
	}
	if imp.Video != nil {
		count++
	}
	if imp.Audio != nil {
		count++
	}
	if imp.Native != nil {
		count++
	}
	return count
}

func badInput(err error) error {
	return &errortypes.BadInput{Message: err.Error()}
}
