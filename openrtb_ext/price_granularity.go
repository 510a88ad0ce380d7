package openrtb_ext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const MaxDecimalFigures int = 15

// PriceGranularity defines the allowed values for bidrequest.ext.prebid.targeting.pricegranularity
// or bidrequest.ext.prebid.targeting.mediatypepricegranularity.banner|video|native
type PriceGranularity struct {
	Precision *int               `json:"precision,omitempty"`
	Ranges    []GranularityRange `json:"ranges,omitempty"`
}

// GranularityRange struct defines a range of prices used by PriceGranularity
type GranularityRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Increment float64 `json:"increment"`
}

// UnmarshalJSON accepts the object form and the legacy preset names (low, med, medium, high, auto, dense).
func (pg *PriceGranularity) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		preset, ok := NewPriceGranularityFromLegacyID(name)
		if !ok {
			return fmt.Errorf("Price granularity error: invalid granularity name %q", name)
		}
		*pg = preset
		return nil
	}

	type priceGranularity PriceGranularity
	var plain priceGranularity
	if err := json.Unmarshal(b, &plain); err != nil {
		return err
	}
	*pg = PriceGranularity(plain)
	return nil
}

// Validate checks precision bounds and that ranges are ordered with positive increments.
func (pg *PriceGranularity) Validate() error {
	if pg.Precision != nil {
		if *pg.Precision < 0 {
			return errors.New("Price granularity error: precision must be non-negative")
		}
		if *pg.Precision > MaxDecimalFigures {
			return fmt.Errorf("Price granularity error: precision of more than %d significant figures is not supported", MaxDecimalFigures)
		}
	}

	var prevMax float64 = 0
	for _, gr := range pg.Ranges {
		if gr.Max <= prevMax {
			return errors.New("Price granularity error: range list must be ordered with increasing \"max\"")
		}
		if gr.Increment <= 0.0 {
			return errors.New("Price granularity error: increment must be a nonzero positive number")
		}
		prevMax = gr.Max
	}
	return nil
}

// NewPriceGranularityDefault returns the default "medium" price granularity.
func NewPriceGranularityDefault() PriceGranularity {
	pg, _ := NewPriceGranularityFromLegacyID("medium")
	return pg
}

// NewPriceGranularityFromLegacyID converts a legacy string into the new PriceGranularity structure.
func NewPriceGranularityFromLegacyID(v string) (PriceGranularity, bool) {
	precision2 := 2

	switch v {
	case "low":
		return PriceGranularity{
			Precision: &precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       5,
				Increment: 0.5}},
		}, true

	case "medium", "med":
		return PriceGranularity{
			Precision: &precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       20,
				Increment: 0.1}},
		}, true

	case "high":
		return PriceGranularity{
			Precision: &precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       20,
				Increment: 0.01}},
		}, true

	case "auto":
		return PriceGranularity{
			Precision: &precision2,
			Ranges: []GranularityRange{
				{
					Min:       0,
					Max:       5,
					Increment: 0.05,
				},
				{
					Min:       5,
					Max:       10,
					Increment: 0.1,
				},
				{
					Min:       10,
					Max:       20,
					Increment: 0.5,
				},
			},
		}, true

	case "dense":
		return PriceGranularity{
			Precision: &precision2,
			Ranges: []GranularityRange{
				{
					Min:       0,
					Max:       3,
					Increment: 0.01,
				},
				{
					Min:       3,
					Max:       8,
					Increment: 0.05,
				},
				{
					Min:       8,
					Max:       20,
					Increment: 0.5,
				},
			},
		}, true
	}

	return PriceGranularity{}, false
}
