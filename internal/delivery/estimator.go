// Package delivery computes supplier delivery fees, landed-cost breakdowns,
// and next-delivery-day hints from supplier delivery rules.
package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// RuleStore resolves a supplier's active delivery rule. One rule per
// supplier is assumed; the rule's zone field takes no part in lookup.
// Implementations may fail; the estimator degrades, never propagates.
type RuleStore interface {
	GetRule(ctx context.Context, supplierID string) (*api.DeliveryRule, error)
}

// Estimator answers fee and delivery-day questions for order composition.
// Every lookup failure fails open: a transient store error must never
// block checkout, so fees degrade to 0 and hints to nil, logged only.
type Estimator struct {
	rules RuleStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewEstimator creates an estimator over the given rule store.
func NewEstimator(rules RuleStore, logger zerolog.Logger) *Estimator {
	return &Estimator{rules: rules, log: logger, now: time.Now}
}

// WithClock overrides the estimator's clock. Test hook.
func (e *Estimator) WithClock(now func() time.Time) *Estimator {
	e.now = now
	return e
}

// EstimateFee returns the delivery fee for a supplier at a given ex-VAT
// subtotal. No rule means no fee. Subtotals at or above the free-delivery
// threshold waive the flat fee; a nil threshold means the free tier never
// triggers, which is distinct from a 0 threshold making delivery always
// free.
func (e *Estimator) EstimateFee(ctx context.Context, supplierID string, subtotalExVAT float64) float64 {
	rule, err := e.rules.GetRule(ctx, supplierID)
	if err != nil {
		e.log.Warn().Err(err).Str("supplier_id", supplierID).
			Msg("delivery rule lookup failed, defaulting fee to 0")
		return 0
	}
	if rule == nil {
		return 0
	}
	return feeForRule(rule, subtotalExVAT)
}

func feeForRule(rule *api.DeliveryRule, subtotalExVAT float64) float64 {
	if rule.FreeThresholdExVAT != nil && subtotalExVAT >= *rule.FreeThresholdExVAT {
		return 0
	}
	return rule.FlatFee
}
