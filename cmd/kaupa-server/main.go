// Package main provides the kaupa pricing API server.
package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gsindri/kaupa-skil-sub003/api"
	"github.com/gsindri/kaupa-skil-sub003/db/clickhouse"
	"github.com/gsindri/kaupa-skil-sub003/db/postgres"
	"github.com/gsindri/kaupa-skil-sub003/internal/cache"
	"github.com/gsindri/kaupa-skil-sub003/internal/delivery"
	"github.com/gsindri/kaupa-skil-sub003/internal/pricing"
	"github.com/gsindri/kaupa-skil-sub003/pkg/platform"
)

var version = "0.1.0"

func main() {
	logger := platform.InitLogger()

	pgCfg := &postgres.Config{
		Host:     platform.GetEnv("PG_HOST", "localhost"),
		Port:     platform.GetEnvInt("PG_PORT", 5432),
		Database: platform.GetEnv("PG_DATABASE", "kaupa"),
		Username: platform.GetEnv("PG_USER", "postgres"),
		Password: platform.GetEnv("PG_PASSWORD", ""),
		SSLMode:  platform.GetEnv("PG_SSLMODE", "disable"),
	}
	store, err := postgres.NewStore(pgCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer store.Close()

	var rules delivery.RuleStore = store
	if addr := platform.GetEnv("REDIS_ADDR", ""); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: platform.GetEnv("REDIS_PASSWORD", ""),
		})
		rules = cache.NewRuleCache(client, store,
			platform.GetEnvDuration("RULE_CACHE_TTL", cache.DefaultTTL), logger)
		log.Info().Str("addr", addr).Msg("delivery rule cache enabled")
	}

	// The observation sink is optional: without ClickHouse the capture
	// ingestion endpoint reports unavailable but pricing still serves.
	var sink api.ObservationSink
	if host := platform.GetEnv("CH_HOST", ""); host != "" {
		chStore, err := clickhouse.NewStore(&clickhouse.Config{
			Host:     host,
			Port:     platform.GetEnvInt("CH_PORT", 9000),
			Database: platform.GetEnv("CH_DATABASE", "kaupa"),
			Username: platform.GetEnv("CH_USER", "default"),
			Password: platform.GetEnv("CH_PASSWORD", ""),
			Debug:    platform.GetEnvBool("CH_DEBUG", false),
		})
		if err != nil {
			log.Warn().Err(err).Msg("ClickHouse unavailable, observation sink disabled")
		} else {
			defer chStore.Close()
			sink = chStore
		}
	}

	estimator := delivery.NewEstimator(rules, logger)
	reconciler := pricing.NewReconciler(store, logger)

	cfg := api.DefaultConfig()
	cfg.Port = platform.GetEnvInt("PORT", 8080)
	cfg.Version = version

	server := api.NewServer(estimator, reconciler, sink, store.Ping, cfg, logger)
	if err := server.StartWithGracefulShutdown(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
