// Package api provides the HTTP API server for the pricing core:
// delivery-fee estimation, delivery hints, live order pricing, and the
// capture normalization endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gsindri/kaupa-skil-sub003/internal/delivery"
	"github.com/gsindri/kaupa-skil-sub003/internal/pricing"
	pkgapi "github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// ObservationSink persists normalized observations; the ClickHouse store
// satisfies it. The server runs without one (capture ingestion disabled).
type ObservationSink interface {
	InsertObservations(ctx context.Context, observations []pkgapi.NormalizedPriceObservation) (int, error)
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	Version        string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 60 * time.Second,
		MaxRequestSize: 1 * 1024 * 1024, // 1MB
		Version:        "dev",
	}
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	estimator  *delivery.Estimator
	reconciler *pricing.Reconciler
	sink       ObservationSink
	pinger     func(ctx context.Context) error
	config     *Config
	log        zerolog.Logger
	startTime  time.Time
}

// NewServer creates a new API server. sink may be nil; pinger (readiness
// probe against the backing store) may be nil.
func NewServer(estimator *delivery.Estimator, reconciler *pricing.Reconciler, sink ObservationSink, pinger func(ctx context.Context) error, config *Config, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		estimator:  estimator,
		reconciler: reconciler,
		sink:       sink,
		pinger:     pinger,
		config:     config,
		log:        logger,
		startTime:  time.Now(),
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	// Health endpoints (for ALB/NLB)
	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/version", s.handleVersion)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/suppliers/{supplierID}/fee", s.handleFee)
		r.Get("/suppliers/{supplierID}/delivery-hint", s.handleDeliveryHint)
		r.Get("/suppliers/{supplierID}/landed-cost", s.handleLandedCost)
		r.Get("/orders/{orderID}/pricing", s.handleOrderPricing)
		r.Post("/capture/normalize", s.handleNormalize)
		r.Post("/capture/extract", s.handleExtract)
		r.Post("/observations", s.handleObservations)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Int("port", s.config.Port).Str("version", s.config.Version).
		Msg("Starting kaupa API server")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains on SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		s.log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
