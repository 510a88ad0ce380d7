package gdpr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

func TestSignalParse(t *testing.T) {
	tests := []struct {
		description string
		rawSignal   string
		wantSignal  Signal
		wantError   bool
	}{
		{
			description: "valid raw signal is 0",
			rawSignal:   "0",
			wantSignal:  SignalNo,
		},
		{
			description: "Valid signal - raw signal is 1",
			rawSignal:   "1",
			wantSignal:  SignalYes,
		},
		{
			description: "Valid signal - raw signal is empty",
			rawSignal:   "",
			wantSignal:  SignalAmbiguous,
		},
		{
			description: "Invalid signal - raw signal is -1",
			rawSignal:   "-1",
			wantSignal:  SignalAmbiguous,
			wantError:   true,
		},
		{
			description: "Invalid signal - raw signal is abc",
			rawSignal:   "abc",
			wantSignal:  SignalAmbiguous,
			wantError:   true,
		},
	}

	for _, test := range tests {
		signal, err := SignalParse(test.rawSignal)

		assert.Equal(t, test.wantSignal, signal, test.description)

		if test.wantError {
			assert.IsType(t, &errortypes.BadInput{}, err, test.description)
		} else {
			assert.NoError(t, err, test.description)
		}
	}
}

func TestSignalParseApplies(t *testing.T) {
	tests := []struct {
		raw  string
		want Signal
	}{
		{raw: "1", want: SignalYes},
		{raw: "true", want: SignalYes},
		{raw: "TRUE", want: SignalYes},
		{raw: "0", want: SignalNo},
		{raw: "false", want: SignalNo},
		{raw: "", want: SignalAmbiguous},
		{raw: "yes", want: SignalAmbiguous},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, SignalParseApplies(test.raw), test.raw)
	}
}

func TestSignalFromInt8(t *testing.T) {
	assert.Equal(t, SignalAmbiguous, SignalFromInt8(nil))
	assert.Equal(t, SignalNo, SignalFromInt8(ptrutil.ToPtr[int8](0)))
	assert.Equal(t, SignalYes, SignalFromInt8(ptrutil.ToPtr[int8](1)))
	assert.Equal(t, SignalAmbiguous, SignalFromInt8(ptrutil.ToPtr[int8](5)))

	assert.Nil(t, SignalAmbiguous.Int8())
	assert.Equal(t, ptrutil.ToPtr[int8](1), SignalYes.Int8())
	assert.Equal(t, ptrutil.ToPtr[int8](0), SignalNo.Int8())
}

func TestSignalNormalize(t *testing.T) {
	tests := []struct {
		description  string
		defaultValue string
		giveSignal   Signal
		wantSignal   Signal
	}{
		{
			description:  "Don't normalize - Signal No and gdprDefaultValue 1",
			defaultValue: "1",
			giveSignal:   SignalNo,
			wantSignal:   SignalNo,
		},
		{
			description:  "Don't normalize - Signal Yes and gdprDefaultValue 0",
			defaultValue: "0",
			giveSignal:   SignalYes,
			wantSignal:   SignalYes,
		},
		{
			description:  "Normalize - Signal Ambiguous and gdprDefaultValue 1",
			defaultValue: "1",
			giveSignal:   SignalAmbiguous,
			wantSignal:   SignalYes,
		},
		{
			description:  "Normalize - Signal Ambiguous and gdprDefaultValue 0",
			defaultValue: "0",
			giveSignal:   SignalAmbiguous,
			wantSignal:   SignalNo,
		},
	}

	for _, test := range tests {
		normalizedSignal := SignalNormalize(test.giveSignal, test.defaultValue)
		assert.Equal(t, test.wantSignal, normalizedSignal, test.description)
	}
}
