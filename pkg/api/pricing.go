package api

import (
	"encoding/json"
	"time"
)

// DeliveryRule is a supplier's delivery pricing configuration. It is owned
// by supplier onboarding and read-only from the engines' perspective.
//
// Zone is carried but never used in lookup: rule resolution is per supplier
// only, one active rule assumed. Multi-zone selection is an unfinished
// feature of the source data model, kept visible rather than papered over.
type DeliveryRule struct {
	SupplierID           string          `json:"supplier_id"`
	Zone                 string          `json:"zone,omitempty"`
	FreeThresholdExVAT   *float64        `json:"free_threshold_ex_vat"`
	FlatFee              float64         `json:"flat_fee"`
	FuelSurchargePct     float64         `json:"fuel_surcharge_pct"`
	PalletDepositPerUnit float64         `json:"pallet_deposit_per_unit"`
	CutoffTime           string          `json:"cutoff_time,omitempty"` // "HH:MM"
	DeliveryDays         []int           `json:"delivery_days,omitempty"` // 1=Mon .. 7=Sun
	TiersJSON            json.RawMessage `json:"tiers_json,omitempty"`
	IsActive             bool            `json:"is_active"`
}

// FeeTier is one entry of a rule's tiers_json: the fee charged once the
// order subtotal reaches MinSubtotal. Tiers are matched highest-first.
type FeeTier struct {
	MinSubtotal float64 `json:"min_subtotal"`
	Fee         float64 `json:"fee"`
}

// Offer is a supplier's price for a product within a validity window.
// An offer is active when valid_from <= now < valid_to, or valid_to is null.
type Offer struct {
	ProductID        string     `json:"product_id"`
	SupplierID       string     `json:"supplier_id"`
	UnitPricePerPack float64    `json:"unit_price_per_pack"`
	ValidFrom        time.Time  `json:"valid_from"`
	ValidTo          *time.Time `json:"valid_to,omitempty"`
}

// OrderLine is one line of an order with its price snapshot from
// order-creation time.
type OrderLine struct {
	ID               string  `json:"id"`
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name"`
	SupplierID       string  `json:"supplier_id"`
	UnitPricePerPack float64 `json:"unit_price_per_pack"`
	Quantity         float64 `json:"quantity"`
}

// Order is an order header with nested lines.
type Order struct {
	ID                    string      `json:"id"`
	Lines                 []OrderLine `json:"lines"`
	PricesLastValidatedAt *time.Time  `json:"prices_last_validated_at,omitempty"`
}

// DriftDirection indicates which way a price moved.
type DriftDirection string

const (
	DriftIncrease DriftDirection = "increase"
	DriftDecrease DriftDirection = "decrease"
)

// PriceDrift reports one order line whose current offer price moved away
// from its snapshot. DriftPercent is the absolute percentage; the sign is
// carried by Direction.
type PriceDrift struct {
	LineID       string         `json:"line_id"`
	ProductName  string         `json:"product_name"`
	OldPrice     float64        `json:"old_price"`
	NewPrice     float64        `json:"new_price"`
	DriftPercent float64        `json:"drift_percent"`
	Quantity     float64        `json:"quantity"`
	Direction    DriftDirection `json:"direction"`
}

// PricedLine pairs a line's snapshot price with the currently active offer
// price (snapshot repeated when no active offer exists).
type PricedLine struct {
	LineID        string  `json:"line_id"`
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	SnapshotPrice float64 `json:"snapshot_price"`
	CurrentPrice  float64 `json:"current_price"`
	Quantity      float64 `json:"quantity"`
}

// LivePricingResult is one reconciliation pass over an order. Totals sum
// price x quantity across all lines, drifted or not. IsStale signals the
// caller to trigger a fresh pass; the reconciler never refreshes itself.
type LivePricingResult struct {
	Items         []PricedLine `json:"items"`
	Drifts        []PriceDrift `json:"drifts"`
	TotalOld      float64      `json:"total_old"`
	TotalNew      float64      `json:"total_new"`
	LastValidated *time.Time   `json:"last_validated"`
	IsStale       bool         `json:"is_stale"`
}
