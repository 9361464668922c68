// Package postgres implements the rule/order/offer store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
	kerrors "github.com/gsindri/kaupa-skil-sub003/pkg/errors"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "kaupa",
		Username: "postgres",
		Password: "",
		SSLMode:  "disable",
	}
}

// DSN renders the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode)
}

// Store implements delivery.RuleStore and pricing.OrderStore.
type Store struct {
	db  *sql.DB
	cfg *Config
}

// NewStore opens and pings a PostgreSQL connection.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Store{db: db, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// DELIVERY RULES
// =============================================================================

// GetRule fetches the supplier's active delivery rule. One active rule per
// supplier is assumed; zone never participates in the lookup. Returns
// (nil, nil) when no rule exists.
func (s *Store) GetRule(ctx context.Context, supplierID string) (*api.DeliveryRule, error) {
	query := `
		SELECT supplier_id, zone, free_threshold_ex_vat, flat_fee,
		       fuel_surcharge_pct, pallet_deposit_per_unit,
		       cutoff_time, delivery_days, tiers_json, is_active
		FROM delivery_rules
		WHERE supplier_id = $1 AND is_active
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, supplierID)

	var rule api.DeliveryRule
	var threshold sql.NullFloat64
	var cutoff sql.NullString
	var days pq.Int64Array
	var tiers []byte
	err := row.Scan(
		&rule.SupplierID, &rule.Zone, &threshold, &rule.FlatFee,
		&rule.FuelSurchargePct, &rule.PalletDepositPerUnit,
		&cutoff, &days, &tiers, &rule.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, kerrors.NewLookupError("delivery_rule", supplierID, err)
	}

	if threshold.Valid {
		rule.FreeThresholdExVAT = &threshold.Float64
	}
	rule.CutoffTime = cutoff.String
	rule.DeliveryDays = make([]int, 0, len(days))
	for _, d := range days {
		rule.DeliveryDays = append(rule.DeliveryDays, int(d))
	}
	rule.TiersJSON = tiers
	return &rule, nil
}

// =============================================================================
// ORDERS
// =============================================================================

// GetOrder loads an order header with nested lines and product names.
// Returns (nil, nil) when the order does not exist.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*api.Order, error) {
	headQuery := `
		SELECT id, prices_last_validated_at
		FROM orders
		WHERE id = $1
	`
	var order api.Order
	var validated sql.NullTime
	err := s.db.QueryRowContext(ctx, headQuery, orderID).Scan(&order.ID, &validated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, kerrors.NewLookupError("order", orderID, err)
	}
	if validated.Valid {
		order.PricesLastValidatedAt = &validated.Time
	}

	linesQuery := `
		SELECT ol.id, ol.product_id, p.name, ol.supplier_id,
		       ol.unit_price_per_pack, ol.quantity
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = $1
		ORDER BY ol.created_at
	`
	rows, err := s.db.QueryContext(ctx, linesQuery, orderID)
	if err != nil {
		return nil, kerrors.NewLookupError("order", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line api.OrderLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.ProductName,
			&line.SupplierID, &line.UnitPricePerPack, &line.Quantity); err != nil {
			return nil, kerrors.NewLookupError("order", orderID, err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, kerrors.NewLookupError("order", orderID, err)
	}
	return &order, nil
}

// GetActiveOffers returns offers for the given products whose validity
// window contains now: valid_from <= now < valid_to, or valid_to is null.
func (s *Store) GetActiveOffers(ctx context.Context, productIDs []string, now time.Time) ([]api.Offer, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT product_id, supplier_id, unit_price_per_pack, valid_from, valid_to
		FROM supplier_offers
		WHERE product_id = ANY($1)
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY valid_from DESC
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(productIDs), now)
	if err != nil {
		return nil, kerrors.NewLookupError("offers", fmt.Sprintf("%d products", len(productIDs)), err)
	}
	defer rows.Close()

	var offers []api.Offer
	for rows.Next() {
		var offer api.Offer
		var validTo sql.NullTime
		if err := rows.Scan(&offer.ProductID, &offer.SupplierID,
			&offer.UnitPricePerPack, &offer.ValidFrom, &validTo); err != nil {
			return nil, kerrors.NewLookupError("offers", offer.ProductID, err)
		}
		if validTo.Valid {
			offer.ValidTo = &validTo.Time
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, kerrors.NewLookupError("offers", "", err)
	}
	return offers, nil
}

// ListStaleOrders returns ids of orders whose prices were last validated
// before the cutoff (or never), oldest first.
func (s *Store) ListStaleOrders(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM orders
		WHERE prices_last_validated_at IS NULL
		   OR prices_last_validated_at < $1
		ORDER BY prices_last_validated_at ASC NULLS FIRST
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, kerrors.NewLookupError("orders", "stale", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, kerrors.NewLookupError("orders", "stale", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkPricesValidated stamps an order's prices_last_validated_at.
func (s *Store) MarkPricesValidated(ctx context.Context, orderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET prices_last_validated_at = $2 WHERE id = $1`,
		orderID, at)
	if err != nil {
		return fmt.Errorf("failed to mark order %s validated: %w", orderID, err)
	}
	return nil
}
