package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

type stubRuleStore struct {
	rules map[string]*api.DeliveryRule
	err   error
}

func (s *stubRuleStore) GetRule(_ context.Context, supplierID string) (*api.DeliveryRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules[supplierID], nil
}

func floatPtr(f float64) *float64 { return &f }

func newTestEstimator(store *stubRuleStore) *Estimator {
	return NewEstimator(store, zerolog.Nop())
}

func TestEstimateFee(t *testing.T) {
	ctx := context.Background()
	store := &stubRuleStore{rules: map[string]*api.DeliveryRule{
		"s1": {
			SupplierID:         "s1",
			FreeThresholdExVAT: floatPtr(200),
			FlatFee:            50,
			IsActive:           true,
		},
		"s2": {
			SupplierID: "s2",
			FlatFee:    35, // no free-delivery tier
			IsActive:   true,
		},
	}}
	e := newTestEstimator(store)

	t.Run("below threshold charges flat fee", func(t *testing.T) {
		assert.Equal(t, 50.0, e.EstimateFee(ctx, "s1", 150))
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		assert.Equal(t, 0.0, e.EstimateFee(ctx, "s1", 200))
	})

	t.Run("above threshold is free", func(t *testing.T) {
		assert.Equal(t, 0.0, e.EstimateFee(ctx, "s1", 250))
	})

	t.Run("nil threshold never frees delivery", func(t *testing.T) {
		assert.Equal(t, 35.0, e.EstimateFee(ctx, "s2", 1_000_000))
	})

	t.Run("no rule means no fee", func(t *testing.T) {
		assert.Equal(t, 0.0, e.EstimateFee(ctx, "unknown", 100))
	})

	t.Run("lookup failure fails open to zero", func(t *testing.T) {
		broken := newTestEstimator(&stubRuleStore{err: errors.New("store down")})
		assert.Equal(t, 0.0, broken.EstimateFee(ctx, "s1", 150))
	})
}

func TestDeliveryHint(t *testing.T) {
	ctx := context.Background()
	rule := &api.DeliveryRule{
		SupplierID:   "s1",
		CutoffTime:   "15:00",
		DeliveryDays: []int{2, 4}, // Tue, Thu
		IsActive:     true,
	}
	store := &stubRuleStore{rules: map[string]*api.DeliveryRule{"s1": rule}}

	onDay := func(day time.Time) *Estimator {
		return newTestEstimator(store).WithClock(func() time.Time { return day })
	}

	monday := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	t.Run("next delivery day this week", func(t *testing.T) {
		hint := onDay(monday).DeliveryHint(ctx, "s1")
		assert.NotNil(t, hint)
		assert.Equal(t, "Order by 15:00 for Tue", *hint)
	})

	t.Run("today does not count, strictly after", func(t *testing.T) {
		hint := onDay(tuesday).DeliveryHint(ctx, "s1")
		assert.NotNil(t, hint)
		assert.Equal(t, "Order by 15:00 for Thu", *hint)
	})

	t.Run("wraps to next week", func(t *testing.T) {
		hint := onDay(friday).DeliveryHint(ctx, "s1")
		assert.NotNil(t, hint)
		assert.Equal(t, "Order by 15:00 for Tue", *hint)
	})

	t.Run("sunday maps to ISO weekday 7", func(t *testing.T) {
		sunday := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
		hint := onDay(sunday).DeliveryHint(ctx, "s1")
		assert.NotNil(t, hint)
		assert.Equal(t, "Order by 15:00 for Tue", *hint)
	})

	t.Run("nil when rule missing", func(t *testing.T) {
		assert.Nil(t, newTestEstimator(store).DeliveryHint(ctx, "unknown"))
	})

	t.Run("nil when cutoff or days missing", func(t *testing.T) {
		partial := &stubRuleStore{rules: map[string]*api.DeliveryRule{
			"no-cutoff": {SupplierID: "no-cutoff", DeliveryDays: []int{3}},
			"no-days":   {SupplierID: "no-days", CutoffTime: "12:00"},
		}}
		e := newTestEstimator(partial)
		assert.Nil(t, e.DeliveryHint(ctx, "no-cutoff"))
		assert.Nil(t, e.DeliveryHint(ctx, "no-days"))
	})

	t.Run("nil on lookup failure", func(t *testing.T) {
		broken := newTestEstimator(&stubRuleStore{err: errors.New("store down")})
		assert.Nil(t, broken.DeliveryHint(ctx, "s1"))
	})
}
