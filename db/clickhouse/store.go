// Package clickhouse provides the ClickHouse observation sink.
// Optimized for append-heavy capture ingestion and per-URL history queries.
package clickhouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "kaupa",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// ObservationRow is one persisted price observation.
type ObservationRow struct {
	ID           uuid.UUID        `ch:"id"`
	URL          string           `ch:"url"`
	Source       string           `ch:"source"`
	PriceDisplay decimal.Decimal  `ch:"price_display"`
	Currency     string           `ch:"currency"`
	Pack         string           `ch:"pack"`
	Unit         string           `ch:"unit"`
	PackSize     float64          `ch:"pack_size"`
	PricePerUnit *decimal.Decimal `ch:"price_per_unit"`
	VATFlag      string           `ch:"vat_flag"`
	CapturedAt   time.Time        `ch:"captured_at"`
	CreatedAt    time.Time        `ch:"created_at"`
}

// Store implements the observation sink using ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse observation store.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// =============================================================================
// OBSERVATION OPERATIONS
// =============================================================================

// InsertObservations batch-inserts normalized observations. Observations
// whose price never parsed (NaN) are skipped: they carry no analytical
// value and ClickHouse decimals cannot hold them. Returns the number of
// rows written.
func (s *Store) InsertObservations(ctx context.Context, observations []api.NormalizedPriceObservation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			id, url, source, price_display, currency, pack, unit,
			pack_size, price_per_unit, vat_flag, captured_at, created_at
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare observation batch: %w", err)
	}

	written := 0
	now := time.Now()
	for _, obs := range observations {
		if math.IsNaN(obs.PriceDisplay) {
			continue
		}
		var perUnit *decimal.Decimal
		if obs.PricePerUnit != nil && !math.IsNaN(*obs.PricePerUnit) {
			d := decimal.NewFromFloat(*obs.PricePerUnit)
			perUnit = &d
		}
		err := batch.Append(
			uuid.New(),
			obs.URL,
			string(obs.Source),
			decimal.NewFromFloat(obs.PriceDisplay),
			obs.Currency,
			obs.Pack,
			string(obs.Unit),
			obs.PackSize,
			perUnit,
			string(obs.VATFlag),
			obs.CapturedAt,
			now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append observation: %w", err)
		}
		written++
	}
	if written == 0 {
		return 0, batch.Abort()
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send observation batch: %w", err)
	}
	return written, nil
}

// RecentObservations returns the latest observations for a URL, newest
// first.
func (s *Store) RecentObservations(ctx context.Context, url string, limit int) ([]*ObservationRow, error) {
	query := `
		SELECT id, url, source, price_display, currency, pack, unit,
		       pack_size, price_per_unit, vat_flag, captured_at, created_at
		FROM price_observations
		WHERE url = ?
		ORDER BY captured_at DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(ctx, query, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var result []*ObservationRow
	for rows.Next() {
		var row ObservationRow
		if err := rows.ScanStruct(&row); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		result = append(result, &row)
	}
	return result, rows.Err()
}

// LatestObservation returns the most recent observation for a URL, or
// (nil, nil) when the URL has never been captured.
func (s *Store) LatestObservation(ctx context.Context, url string) (*ObservationRow, error) {
	rows, err := s.RecentObservations(ctx, url, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
