package ccpa

import (
	"github.com/prebid/openrtb/v20/openrtb2"
)

// ConsentWriter writes the US Privacy string into regs.us_privacy.
type ConsentWriter struct {
	Consent string
}

// Write mutates an OpenRTB bid request with the CCPA consent string. An empty consent clears the field.
func (c ConsentWriter) Write(req *openrtb2.BidRequest) error {
	if req == nil {
		return nil
	}

	if c.Consent == "" {
		if req.Regs != nil {
			req.Regs.USPrivacy = ""
		}
		return nil
	}

	if req.Regs == nil {
		req.Regs = &openrtb2.Regs{}
	}
	req.Regs.USPrivacy = c.Consent
	return nil
}
