package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

type stubOrderStore struct {
	order     *api.Order
	offers    []api.Offer
	orderErr  error
	offersErr error
}

func (s *stubOrderStore) GetOrder(_ context.Context, orderID string) (*api.Order, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	if s.order != nil && s.order.ID == orderID {
		return s.order, nil
	}
	return nil, nil
}

func (s *stubOrderStore) GetActiveOffers(_ context.Context, _ []string, _ time.Time) ([]api.Offer, error) {
	if s.offersErr != nil {
		return nil, s.offersErr
	}
	return s.offers, nil
}

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func newTestReconciler(store *stubOrderStore) *Reconciler {
	return NewReconciler(store, zerolog.Nop()).WithClock(func() time.Time { return testNow })
}

func testOrder(validated *time.Time) *api.Order {
	return &api.Order{
		ID: "o1",
		Lines: []api.OrderLine{
			{ID: "l1", ProductID: "p1", ProductName: "Flour 25kg", SupplierID: "s1", UnitPricePerPack: 1000, Quantity: 3},
			{ID: "l2", ProductID: "p2", ProductName: "Yeast 500g", SupplierID: "s1", UnitPricePerPack: 200, Quantity: 2},
		},
		PricesLastValidatedAt: validated,
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	store := &stubOrderStore{
		order: testOrder(timePtr(testNow.Add(-time.Minute))),
		offers: []api.Offer{
			{ProductID: "p1", SupplierID: "s1", UnitPricePerPack: 1050, ValidFrom: testNow.Add(-time.Hour)},
			{ProductID: "p2", SupplierID: "s1", UnitPricePerPack: 200, ValidFrom: testNow.Add(-time.Hour)},
		},
	}
	result := newTestReconciler(store).Reconcile(context.Background(), "o1")

	require.Len(t, result.Drifts, 1)
	drift := result.Drifts[0]
	assert.Equal(t, "l1", drift.LineID)
	assert.Equal(t, 1000.0, drift.OldPrice)
	assert.Equal(t, 1050.0, drift.NewPrice)
	assert.InDelta(t, 5.0, drift.DriftPercent, 0.001)
	assert.Equal(t, api.DriftIncrease, drift.Direction)
	assert.Equal(t, 3.0, drift.Quantity)

	// Totals include the undrifted line on both sides.
	assert.Equal(t, 3400.0, result.TotalOld) // 3*1000 + 2*200
	assert.Equal(t, 3550.0, result.TotalNew) // 3*1050 + 2*200
	assert.False(t, result.IsStale)
	require.Len(t, result.Items, 2)
}

func TestReconcileEpsilonSuppressesNoise(t *testing.T) {
	store := &stubOrderStore{
		order: testOrder(timePtr(testNow.Add(-time.Minute))),
		offers: []api.Offer{
			{ProductID: "p1", SupplierID: "s1", UnitPricePerPack: 1000.005, ValidFrom: testNow.Add(-time.Hour)},
		},
	}
	result := newTestReconciler(store).Reconcile(context.Background(), "o1")
	assert.Empty(t, result.Drifts)
}

func TestReconcileDecreaseDirection(t *testing.T) {
	store := &stubOrderStore{
		order: testOrder(nil),
		offers: []api.Offer{
			{ProductID: "p2", SupplierID: "s1", UnitPricePerPack: 150, ValidFrom: testNow.Add(-time.Hour)},
		},
	}
	result := newTestReconciler(store).Reconcile(context.Background(), "o1")

	require.Len(t, result.Drifts, 1)
	assert.Equal(t, api.DriftDecrease, result.Drifts[0].Direction)
	assert.InDelta(t, 25.0, result.Drifts[0].DriftPercent, 0.001)
}

func TestReconcileStaleness(t *testing.T) {
	tests := []struct {
		name      string
		validated *time.Time
		wantStale bool
	}{
		{"never validated", nil, true},
		{"validated 2 minutes ago", timePtr(testNow.Add(-2 * time.Minute)), false},
		{"validated 6 minutes ago", timePtr(testNow.Add(-6 * time.Minute)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubOrderStore{order: testOrder(tt.validated)}
			result := newTestReconciler(store).Reconcile(context.Background(), "o1")
			assert.Equal(t, tt.wantStale, result.IsStale)
		})
	}
}

func TestReconcileEmptyOrderID(t *testing.T) {
	result := newTestReconciler(&stubOrderStore{}).Reconcile(context.Background(), "")
	assert.Empty(t, result.Items)
	assert.Empty(t, result.Drifts)
	assert.True(t, result.IsStale)
}

func TestReconcileFailsOpen(t *testing.T) {
	t.Run("order lookup failure", func(t *testing.T) {
		store := &stubOrderStore{orderErr: errors.New("store down")}
		result := newTestReconciler(store).Reconcile(context.Background(), "o1")
		assert.Empty(t, result.Items)
		assert.True(t, result.IsStale)
	})

	t.Run("offer lookup failure keeps snapshot prices", func(t *testing.T) {
		store := &stubOrderStore{
			order:     testOrder(timePtr(testNow.Add(-time.Minute))),
			offersErr: errors.New("store down"),
		}
		result := newTestReconciler(store).Reconcile(context.Background(), "o1")
		assert.Empty(t, result.Drifts)
		require.Len(t, result.Items, 2)
		assert.Equal(t, result.TotalOld, result.TotalNew)
	})
}

func TestReconcileUnknownOrder(t *testing.T) {
	store := &stubOrderStore{order: testOrder(nil)}
	result := newTestReconciler(store).Reconcile(context.Background(), "missing")
	assert.Empty(t, result.Items)
	assert.True(t, result.IsStale)
}
