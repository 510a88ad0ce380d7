package lmt

import (
	"github.com/prebid/openrtb/v20/openrtb2"
)

// Policy is the Limit Ad Tracking signal of a resolved request.
type Policy struct {
	Signal         int
	SignalProvided bool
}

// ReadFromRequest reads device.lmt. Run it after ModifyForIOS so the derived iOS value is seen.
func ReadFromRequest(req *openrtb2.BidRequest) Policy {
	if req == nil || req.Device == nil || req.Device.Lmt == nil {
		return Policy{}
	}
	return Policy{Signal: int(*req.Device.Lmt), SignalProvided: true}
}

// ShouldEnforce reports whether the device opted out of tracking.
func (p Policy) ShouldEnforce() bool {
	return p.SignalProvided && p.Signal == int(lmtOn)
}
