// Package api defines the shared contracts between the capture engine,
// the delivery/pricing engines, and their callers.
package api

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gsindri/kaupa-skil-sub003/pkg/units"
)

// Source identifies where a price observation came from.
type Source string

const (
	SourceDOM     Source = "dom"
	SourceNetwork Source = "network"
)

// VATFlag records whether a captured price includes value-added tax.
type VATFlag string

const (
	VATIncl    VATFlag = "incl"
	VATExcl    VATFlag = "excl"
	VATUnknown VATFlag = "unknown"
)

// RawPriceObservation is a single capture attempt's unprocessed output.
// It is ephemeral and never persisted directly.
type RawPriceObservation struct {
	PriceText    string `json:"price_text"`
	CurrencyText string `json:"currency_text,omitempty"`
	PackText     string `json:"pack_text,omitempty"`
}

// NormalizedPriceObservation is the canonical form of a captured price.
//
// PriceDisplay may be NaN when the raw text carried no parseable number;
// callers must check with math.IsNaN before using it. PricePerUnit is set
// only when a positive pack size was parsed.
type NormalizedPriceObservation struct {
	URL          string     `json:"url"`
	Source       Source     `json:"source"`
	PriceDisplay float64    `json:"price_display"`
	Currency     string     `json:"currency,omitempty"`
	Pack         string     `json:"pack,omitempty"`
	Unit         units.Unit `json:"unit,omitempty"`
	PackSize     float64    `json:"pack_size,omitempty"`
	PricePerUnit *float64   `json:"price_per_unit,omitempty"`
	VATFlag      VATFlag    `json:"vat_flag"`
	CapturedAt   time.Time  `json:"ts"`
}

// MarshalJSON renders NaN prices as null so an unusable observation still
// serializes ("price unavailable" contract for downstream views).
func (o NormalizedPriceObservation) MarshalJSON() ([]byte, error) {
	type plain NormalizedPriceObservation
	aux := struct {
		plain
		PriceDisplay *float64 `json:"price_display"`
	}{plain: plain(o)}
	if !math.IsNaN(o.PriceDisplay) {
		aux.PriceDisplay = &o.PriceDisplay
	}
	if o.PricePerUnit != nil && math.IsNaN(*o.PricePerUnit) {
		aux.PricePerUnit = nil
	}
	return json.Marshal(aux)
}

// UnmarshalJSON maps a null price_display back to NaN.
func (o *NormalizedPriceObservation) UnmarshalJSON(data []byte) error {
	type plain NormalizedPriceObservation
	aux := struct {
		*plain
		PriceDisplay *float64 `json:"price_display"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PriceDisplay == nil {
		o.PriceDisplay = math.NaN()
	} else {
		o.PriceDisplay = *aux.PriceDisplay
	}
	return nil
}
