package lmt

import (
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/util/iosutil"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

const (
	lmtOff int8 = 0
	lmtOn  int8 = 1
)

type modifier func(device *openrtb2.Device, atts *openrtb_ext.IOSAppTrackingStatus)

var modifiers = map[iosutil.VersionClassification]modifier{
	iosutil.Version140:          modifyForIOS14X,
	iosutil.Version141:          modifyForIOS14X,
	iosutil.Version142OrGreater: modifyForIOS142OrGreater,
}

// ModifyForIOS derives device.lmt for iOS app traffic from the OS version, the app tracking status and the
// advertising id. An lmt value already present on the request is kept. It reports whether lmt was set.
func ModifyForIOS(req *openrtb_ext.RequestWrapper) bool {
	if req == nil || !isRequestForIOS(req.BidRequest) || req.Device.Lmt != nil {
		return false
	}

	modify, ok := modifiers[iosutil.DetectVersionClassification(req.Device.OSV)]
	if !ok {
		return false
	}

	modify(req.Device, readATTS(req))
	return req.Device.Lmt != nil
}

func isRequestForIOS(req *openrtb2.BidRequest) bool {
	return req != nil && req.App != nil && req.Device != nil && strings.EqualFold(req.Device.OS, "ios")
}

// readATTS treats a malformed or out of range atts value as unknown.
func readATTS(req *openrtb_ext.RequestWrapper) *openrtb_ext.IOSAppTrackingStatus {
	deviceExt, err := req.GetDeviceExt()
	if err != nil {
		atts, err := openrtb_ext.ParseDeviceExtATTS(req.Device.Ext)
		if err != nil {
			return nil
		}
		return atts
	}
	return deviceExt.GetATTS()
}

func modifyForIOS14X(device *openrtb2.Device, atts *openrtb_ext.IOSAppTrackingStatus) {
	if atts == nil {
		if isZeroIFA(device.IFA) {
			device.Lmt = ptrutil.ToPtr(lmtOn)
		} else {
			device.Lmt = ptrutil.ToPtr(lmtOff)
		}
		return
	}

	// Only an authorized status backed by a real advertising id lifts the limit.
	if *atts == openrtb_ext.IOSAppTrackingStatusAuthorized && !isZeroIFA(device.IFA) {
		device.Lmt = ptrutil.ToPtr(lmtOff)
	} else {
		device.Lmt = ptrutil.ToPtr(lmtOn)
	}
}

func modifyForIOS142OrGreater(device *openrtb2.Device, atts *openrtb_ext.IOSAppTrackingStatus) {
	if atts == nil {
		device.Lmt = ptrutil.ToPtr(lmtOn)
		return
	}

	switch *atts {
	case openrtb_ext.IOSAppTrackingStatusAuthorized, openrtb_ext.IOSAppTrackingStatusNotDetermined:
		device.Lmt = ptrutil.ToPtr(lmtOff)
	case openrtb_ext.IOSAppTrackingStatusRestricted, openrtb_ext.IOSAppTrackingStatusDenied:
		device.Lmt = ptrutil.ToPtr(lmtOn)
	}
}

// isZeroIFA is true for an empty advertising id or one made only of zeros and dashes.
func isZeroIFA(ifa string) bool {
	return strings.Trim(ifa, "0-") == ""
}
