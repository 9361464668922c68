package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsindri/kaupa-skil-sub003/internal/delivery"
	"github.com/gsindri/kaupa-skil-sub003/internal/pricing"
	pkgapi "github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

type stubRuleStore struct {
	rules map[string]*pkgapi.DeliveryRule
}

func (s *stubRuleStore) GetRule(_ context.Context, supplierID string) (*pkgapi.DeliveryRule, error) {
	return s.rules[supplierID], nil
}

type stubOrderStore struct {
	order  *pkgapi.Order
	offers []pkgapi.Offer
}

func (s *stubOrderStore) GetOrder(_ context.Context, orderID string) (*pkgapi.Order, error) {
	if s.order != nil && s.order.ID == orderID {
		return s.order, nil
	}
	return nil, nil
}

func (s *stubOrderStore) GetActiveOffers(_ context.Context, _ []string, _ time.Time) ([]pkgapi.Offer, error) {
	return s.offers, nil
}

type stubSink struct {
	received int
}

func (s *stubSink) InsertObservations(_ context.Context, obs []pkgapi.NormalizedPriceObservation) (int, error) {
	s.received += len(obs)
	return len(obs), nil
}

func newTestServer(sink ObservationSink) *Server {
	threshold := 200.0
	rules := &stubRuleStore{rules: map[string]*pkgapi.DeliveryRule{
		"s1": {
			SupplierID:         "s1",
			FreeThresholdExVAT: &threshold,
			FlatFee:            50,
			CutoffTime:         "15:00",
			DeliveryDays:       []int{2, 4},
			IsActive:           true,
		},
	}}
	now := time.Now()
	orders := &stubOrderStore{
		order: &pkgapi.Order{
			ID: "o1",
			Lines: []pkgapi.OrderLine{
				{ID: "l1", ProductID: "p1", ProductName: "Flour", SupplierID: "s1", UnitPricePerPack: 1000, Quantity: 2},
			},
			PricesLastValidatedAt: &now,
		},
		offers: []pkgapi.Offer{
			{ProductID: "p1", SupplierID: "s1", UnitPricePerPack: 1050, ValidFrom: now.Add(-time.Hour)},
		},
	}

	logger := zerolog.Nop()
	return NewServer(
		delivery.NewEstimator(rules, logger),
		pricing.NewReconciler(orders, logger),
		sink,
		nil,
		DefaultConfig(),
		logger,
	)
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleFee(t *testing.T) {
	router := newTestServer(nil).Router()

	rec := doRequest(t, router, http.MethodGet, "/api/v1/suppliers/s1/fee?subtotal=150", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Fee float64 `json:"fee"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50.0, resp.Fee)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/suppliers/s1/fee?subtotal=250", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp.Fee)
}

func TestHandleFeeRejectsBadSubtotal(t *testing.T) {
	router := newTestServer(nil).Router()
	rec := doRequest(t, router, http.MethodGet, "/api/v1/suppliers/s1/fee?subtotal=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeliveryHint(t *testing.T) {
	router := newTestServer(nil).Router()
	rec := doRequest(t, router, http.MethodGet, "/api/v1/suppliers/s1/delivery-hint", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Hint *string `json:"hint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Hint)
	assert.True(t, strings.HasPrefix(*resp.Hint, "Order by 15:00 for "))

	// Unknown supplier renders a null hint, not an error.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/suppliers/nope/delivery-hint", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Hint)
}

func TestHandleOrderPricing(t *testing.T) {
	router := newTestServer(nil).Router()
	rec := doRequest(t, router, http.MethodGet, "/api/v1/orders/o1/pricing", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result pkgapi.LivePricingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Drifts, 1)
	assert.Equal(t, pkgapi.DriftIncrease, result.Drifts[0].Direction)
	assert.Equal(t, 2000.0, result.TotalOld)
	assert.Equal(t, 2100.0, result.TotalNew)
	assert.False(t, result.IsStale)
}

func TestHandleNormalize(t *testing.T) {
	router := newTestServer(nil).Router()
	body := `{"url":"https://vendor.example/p/1","price_text":"€12,50 incl. VAT","pack_text":"case of 12"}`
	rec := doRequest(t, router, http.MethodPost, "/api/v1/capture/normalize", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var obs pkgapi.NormalizedPriceObservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
	assert.Equal(t, 12.5, obs.PriceDisplay)
	assert.Equal(t, "EUR", obs.Currency)
	assert.Equal(t, pkgapi.VATIncl, obs.VATFlag)
}

func TestHandleNormalizeUnparseablePriceIsNull(t *testing.T) {
	router := newTestServer(nil).Router()
	body := `{"price_text":"call us"}`
	rec := doRequest(t, router, http.MethodPost, "/api/v1/capture/normalize", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price_display":null`)
}

func TestHandleExtract(t *testing.T) {
	router := newTestServer(nil).Router()
	rec := doRequest(t, router, http.MethodPost, "/api/v1/capture/extract",
		`{"product":{"net_price":10.5},"currency":"EUR"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result *struct {
			Price    float64 `json:"price"`
			Currency string  `json:"currency"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, 10.5, resp.Result.Price)

	// No price-like field is a valid null outcome.
	rec = doRequest(t, router, http.MethodPost, "/api/v1/capture/extract", `{"name":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Result)
}

func TestHandleObservations(t *testing.T) {
	sink := &stubSink{}
	router := newTestServer(sink).Router()

	single := `{"url":"u","source":"dom","price_display":9.5,"vat_flag":"unknown","ts":"2026-08-28T12:00:00Z"}`
	rec := doRequest(t, router, http.MethodPost, "/api/v1/observations", single)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, sink.received)

	batch := `[` + single + `,` + single + `]`
	rec = doRequest(t, router, http.MethodPost, "/api/v1/observations", batch)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, sink.received)
}

func TestHandleObservationsWithoutSink(t *testing.T) {
	router := newTestServer(nil).Router()
	rec := doRequest(t, router, http.MethodPost, "/api/v1/observations", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
