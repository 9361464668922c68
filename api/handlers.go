package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gsindri/kaupa-skil-sub003/internal/capture"
	pkgapi "github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.config.Version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.config.Version})
}

// GET /api/v1/suppliers/{supplierID}/fee?subtotal=150
func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "supplierID")
	subtotal, err := strconv.ParseFloat(r.URL.Query().Get("subtotal"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "subtotal query parameter must be a number")
		return
	}
	fee := s.estimator.EstimateFee(r.Context(), supplierID, subtotal)
	writeJSON(w, http.StatusOK, map[string]any{
		"supplier_id":     supplierID,
		"subtotal_ex_vat": subtotal,
		"fee":             fee,
	})
}

// GET /api/v1/suppliers/{supplierID}/delivery-hint
func (s *Server) handleDeliveryHint(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "supplierID")
	hint := s.estimator.DeliveryHint(r.Context(), supplierID)
	writeJSON(w, http.StatusOK, map[string]any{
		"supplier_id": supplierID,
		"hint":        hint,
	})
}

// GET /api/v1/suppliers/{supplierID}/landed-cost?subtotal=150&pallets=2
func (s *Server) handleLandedCost(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "supplierID")
	subtotal, err := strconv.ParseFloat(r.URL.Query().Get("subtotal"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "subtotal query parameter must be a number")
		return
	}
	pallets := 0
	if p := r.URL.Query().Get("pallets"); p != "" {
		if pallets, err = strconv.Atoi(p); err != nil || pallets < 0 {
			writeError(w, http.StatusBadRequest, "pallets query parameter must be a non-negative integer")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.estimator.LandedCost(r.Context(), supplierID, subtotal, pallets))
}

// GET /api/v1/orders/{orderID}/pricing
func (s *Server) handleOrderPricing(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	writeJSON(w, http.StatusOK, s.reconciler.Reconcile(r.Context(), orderID))
}

type normalizeRequest struct {
	URL string `json:"url"`
	pkgapi.RawPriceObservation
}

// POST /api/v1/capture/normalize
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeJSON(r, s.config.MaxRequestSize, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	obs := capture.Normalize(req.RawPriceObservation, pkgapi.SourceDOM, req.URL)
	writeJSON(w, http.StatusOK, obs)
}

// POST /api/v1/capture/extract. The body is the raw intercepted JSON payload.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	// nil is a valid outcome: no price-like field in the payload.
	writeJSON(w, http.StatusOK, map[string]any{
		"result": capture.ExtractNetworkPrice(body),
	})
}

// POST /api/v1/observations. Accepts one observation or a batch.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		writeError(w, http.StatusServiceUnavailable, "observation sink not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var batch []pkgapi.NormalizedPriceObservation
	if err := json.Unmarshal(body, &batch); err != nil {
		var single pkgapi.NormalizedPriceObservation
		if err := json.Unmarshal(body, &single); err != nil {
			writeError(w, http.StatusBadRequest, "body must be an observation or an array of observations")
			return
		}
		batch = []pkgapi.NormalizedPriceObservation{single}
	}

	written, err := s.sink.InsertObservations(r.Context(), batch)
	if err != nil {
		s.log.Error().Err(err).Msg("observation insert failed")
		writeError(w, http.StatusInternalServerError, "failed to persist observations")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"written": written})
}

func decodeJSON(r *http.Request, maxSize int64, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSize))
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
