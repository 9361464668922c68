// Package main provides the polling reconciler daemon. The reconciler
// itself is a pure read; this daemon supplies the external re-invocation
// loop: pick stale orders, run a pass, stamp them validated.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/gsindri/kaupa-skil-sub003/db/postgres"
	"github.com/gsindri/kaupa-skil-sub003/internal/pricing"
	"github.com/gsindri/kaupa-skil-sub003/pkg/platform"
)

func main() {
	logger := platform.InitLogger()

	store, err := postgres.NewStore(&postgres.Config{
		Host:     platform.GetEnv("PG_HOST", "localhost"),
		Port:     platform.GetEnvInt("PG_PORT", 5432),
		Database: platform.GetEnv("PG_DATABASE", "kaupa"),
		Username: platform.GetEnv("PG_USER", "postgres"),
		Password: platform.GetEnv("PG_PASSWORD", ""),
		SSLMode:  platform.GetEnv("PG_SSLMODE", "disable"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer store.Close()

	reconciler := pricing.NewReconciler(store, logger)

	schedule := platform.GetEnv("RECONCILE_SCHEDULE", "* * * * *")
	batchSize := platform.GetEnvInt("RECONCILE_BATCH", 100)
	staleness := platform.GetEnvDuration("RECONCILE_STALENESS", 5*time.Minute)

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		runPass(store, reconciler, staleness, batchSize)
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("invalid cron schedule")
	}

	log.Info().Str("schedule", schedule).Int("batch", batchSize).
		Msg("reconciler daemon starting")
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	<-c.Stop().Done()
}

func runPass(store *postgres.Store, reconciler *pricing.Reconciler, staleness time.Duration, batchSize int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-staleness)
	orderIDs, err := store.ListStaleOrders(ctx, cutoff, batchSize)
	if err != nil {
		log.Warn().Err(err).Msg("stale order listing failed, skipping pass")
		return
	}
	if len(orderIDs) == 0 {
		return
	}

	drifted := 0
	for _, orderID := range orderIDs {
		result := reconciler.Reconcile(ctx, orderID)
		if len(result.Drifts) > 0 {
			drifted++
			log.Info().Str("order_id", orderID).
				Int("drifts", len(result.Drifts)).
				Float64("total_old", result.TotalOld).
				Float64("total_new", result.TotalNew).
				Msg("price drift detected")
		}
		if err := store.MarkPricesValidated(ctx, orderID, time.Now()); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("validation stamp failed")
		}
	}
	log.Info().Int("orders", len(orderIDs)).Int("with_drift", drifted).
		Msg("reconciliation pass complete")
}
