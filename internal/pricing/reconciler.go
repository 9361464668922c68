// Package pricing reconciles order price snapshots against suppliers'
// currently active offers and reports drift.
package pricing

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

const (
	// driftEpsilon is the absolute tolerance below which price movement
	// is treated as floating-point noise, not drift.
	driftEpsilon = 0.01

	// stalenessWindow is how old a validation stamp may be before the
	// result is flagged stale.
	stalenessWindow = 5 * time.Minute
)

// OrderStore loads orders and their suppliers' currently valid offers.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (*api.Order, error)
	// GetActiveOffers returns offers whose validity window contains now:
	// valid_from <= now < valid_to, or valid_to is null.
	GetActiveOffers(ctx context.Context, productIDs []string, now time.Time) ([]api.Offer, error)
}

// Reconciler derives live pricing results. It is a pure read: it never
// mutates the order, so concurrent passes over the same order are
// idempotent and safe.
type Reconciler struct {
	store OrderStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store OrderStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, log: logger, now: time.Now}
}

// WithClock overrides the reconciler's clock. Test hook.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile compares each order line's snapshot price against the
// supplier's currently active offer for the line's product. A line drifts
// only when the absolute difference exceeds the epsilon; DriftPercent is
// reported as an absolute percentage with the sign carried by Direction.
// Totals sum price x quantity over every line regardless of drift.
//
// An empty order id and store failures both short-circuit to an empty
// stale result: reconciliation is advisory and must not break the views
// that call it.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string) *api.LivePricingResult {
	result := &api.LivePricingResult{
		Items:   []api.PricedLine{},
		Drifts:  []api.PriceDrift{},
		IsStale: true,
	}
	if orderID == "" {
		return result
	}

	order, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		r.log.Warn().Err(err).Str("order_id", orderID).
			Msg("order lookup failed, empty pricing result")
		return result
	}
	if order == nil {
		return result
	}

	now := r.now()
	offers := r.activeOffers(ctx, order, now)

	for _, line := range order.Lines {
		current := line.UnitPricePerPack
		if offer, ok := offers[offerKey{line.ProductID, line.SupplierID}]; ok {
			current = offer.UnitPricePerPack
		}

		result.Items = append(result.Items, api.PricedLine{
			LineID:        line.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			SnapshotPrice: line.UnitPricePerPack,
			CurrentPrice:  current,
			Quantity:      line.Quantity,
		})
		result.TotalOld += line.UnitPricePerPack * line.Quantity
		result.TotalNew += current * line.Quantity

		if drift := detectDrift(line, current); drift != nil {
			result.Drifts = append(result.Drifts, *drift)
		}
	}

	result.LastValidated = order.PricesLastValidatedAt
	result.IsStale = order.PricesLastValidatedAt == nil ||
		now.Sub(*order.PricesLastValidatedAt) > stalenessWindow
	return result
}

type offerKey struct {
	productID  string
	supplierID string
}

func (r *Reconciler) activeOffers(ctx context.Context, order *api.Order, now time.Time) map[offerKey]api.Offer {
	seen := make(map[string]bool, len(order.Lines))
	productIDs := make([]string, 0, len(order.Lines))
	for _, line := range order.Lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return nil
	}

	offers, err := r.store.GetActiveOffers(ctx, productIDs, now)
	if err != nil {
		r.log.Warn().Err(err).Str("order_id", order.ID).
			Msg("offer lookup failed, lines keep snapshot prices")
		return nil
	}

	byKey := make(map[offerKey]api.Offer, len(offers))
	for _, offer := range offers {
		key := offerKey{offer.ProductID, offer.SupplierID}
		if _, exists := byKey[key]; !exists {
			byKey[key] = offer
		}
	}
	return byKey
}

func detectDrift(line api.OrderLine, current float64) *api.PriceDrift {
	diff := current - line.UnitPricePerPack
	if math.Abs(diff) <= driftEpsilon {
		return nil
	}

	direction := api.DriftDecrease
	if diff > 0 {
		direction = api.DriftIncrease
	}

	var pct float64
	if line.UnitPricePerPack != 0 {
		pct = math.Abs(diff) / line.UnitPricePerPack * 100
	}

	return &api.PriceDrift{
		LineID:       line.ID,
		ProductName:  line.ProductName,
		OldPrice:     line.UnitPricePerPack,
		NewPrice:     current,
		DriftPercent: pct,
		Quantity:     line.Quantity,
		Direction:    direction,
	}
}
