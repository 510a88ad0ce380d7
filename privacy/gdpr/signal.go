package gdpr

import (
	"strconv"
	"strings"

	"github.com/prebid/prebid-request-core/errortypes"
)

type Signal int

const (
	SignalAmbiguous Signal = -1
	SignalNo        Signal = 0
	SignalYes       Signal = 1
)

var gdprSignalError = &errortypes.BadInput{Message: "GDPR signal should be integer 0 or 1"}

// SignalParse returns a parsed GDPR signal or a parse error.
func SignalParse(rawSignal string) (Signal, error) {
	if rawSignal == "" {
		return SignalAmbiguous, nil
	}

	i, err := strconv.Atoi(rawSignal)

	if err != nil || (i != 0 && i != 1) {
		return SignalAmbiguous, gdprSignalError
	}

	return Signal(i), nil
}

// SignalParseApplies parses a gdpr_applies query value, which also accepts true and false. Any other
// value leaves the signal ambiguous.
func SignalParseApplies(raw string) Signal {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true":
		return SignalYes
	case "0", "false":
		return SignalNo
	}
	return SignalAmbiguous
}

// SignalFromInt8 converts an OpenRTB regs.gdpr value.
func SignalFromInt8(gdpr *int8) Signal {
	if gdpr == nil {
		return SignalAmbiguous
	}
	switch *gdpr {
	case 0:
		return SignalNo
	case 1:
		return SignalYes
	}
	return SignalAmbiguous
}

// Int8 returns the OpenRTB regs.gdpr value of the signal, or nil when ambiguous.
func (s Signal) Int8() *int8 {
	if s == SignalAmbiguous {
		return nil
	}
	v := int8(s)
	return &v
}

// SignalNormalize normalizes a GDPR signal to ensure it's always either SignalYes or SignalNo.
func SignalNormalize(signal Signal, gdprDefaultValue string) Signal {
	if signal != SignalAmbiguous {
		return signal
	}

	if gdprDefaultValue == "0" {
		return SignalNo
	}

	return SignalYes
}
