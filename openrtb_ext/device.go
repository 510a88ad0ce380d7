package openrtb_ext

import (
	"errors"

	"github.com/buger/jsonparser"
)

// IOSAppTrackingStatus describes the values for iOS app tracking authorization status.
type IOSAppTrackingStatus int

// Values of the IOSAppTrackingStatus enumeration, as sent in device.ext.atts.
const (
	IOSAppTrackingStatusRestricted    IOSAppTrackingStatus = 0
	IOSAppTrackingStatusAuthorized    IOSAppTrackingStatus = 1
	IOSAppTrackingStatusNotDetermined IOSAppTrackingStatus = 2
	IOSAppTrackingStatusDenied        IOSAppTrackingStatus = 3
)

// IsKnownIOSAppTrackingStatus returns true if a valid status is provided.
func IsKnownIOSAppTrackingStatus(v int64) bool {
	switch IOSAppTrackingStatus(v) {
	case IOSAppTrackingStatusRestricted,
		IOSAppTrackingStatusAuthorized,
		IOSAppTrackingStatusNotDetermined,
		IOSAppTrackingStatusDenied:
		return true
	}
	return false
}

// ParseDeviceExtATTS parses the ATTS value from the request.device.ext OpenRTB field.
// A nil status means the value is absent.
func ParseDeviceExtATTS(deviceExt []byte) (*IOSAppTrackingStatus, error) {
	v, err := jsonparser.GetInt(deviceExt, "atts")

	// node not found error
	if err == jsonparser.KeyPathNotFoundError {
		return nil, nil
	}

	// unexpected value type
	if err != nil {
		return nil, errors.New("field must be an integer")
	}

	// invalid value
	if !IsKnownIOSAppTrackingStatus(v) {
		return nil, errors.New("invalid status")
	}

	status := IOSAppTrackingStatus(v)
	return &status, nil
}
