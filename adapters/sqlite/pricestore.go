package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/whovisions/costgate/domain/pricing"
	"github.com/whovisions/costgate/ports"
)

// PriceStore implements ports.PriceStore using SQLite.
//
// Append is a single INSERT, so concurrent writers serialize inside SQLite
// without application-level locking, and WAL mode lets Query read a
// consistent snapshot without blocking them.
type PriceStore struct {
	db *DB
}

// NewPriceStore creates a new SQLite price store.
func NewPriceStore(db *DB) *PriceStore {
	return &PriceStore{db: db}
}

// Append durably adds one observation.
func (s *PriceStore) Append(ctx context.Context, obs pricing.Observation) error {
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", pricing.ErrDataIntegrity, err)
	}

	meta, err := json.Marshal(obs.Metadata)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", pricing.ErrDataIntegrity, err)
	}

	var tierStart sql.NullString
	if obs.TierStart != nil {
		tierStart = sql.NullString{String: obs.TierStart.String(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO price_observations (
			id, service, sku_id, sku_description, price_type,
			price_per_unit, unit, tier_start, observed_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.ID, obs.Key.Service, obs.Key.SKUID, obs.Description, obs.Key.PriceType,
		obs.PricePerUnit.String(), obs.Unit, tierStart, obs.Timestamp.UTC(), string(meta),
	)
	if err != nil {
		return fmt.Errorf("%w: append observation: %v", pricing.ErrStorageUnavailable, err)
	}
	return nil
}

// Query returns matching observations in ascending timestamp order.
func (s *PriceStore) Query(ctx context.Context, f pricing.Filter) ([]pricing.Observation, error) {
	var (
		conds []string
		args  []any
	)
	if f.Service != "" {
		conds = append(conds, "service = ?")
		args = append(args, f.Service)
	}
	if f.SKUID != "" {
		conds = append(conds, "sku_id = ?")
		args = append(args, f.SKUID)
	}
	if f.PriceType != "" {
		conds = append(conds, "price_type = ?")
		args = append(args, f.PriceType)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "observed_at >= ?")
		args = append(args, f.Since.UTC())
	}

	query := `
		SELECT id, service, sku_id, sku_description, price_type,
		       price_per_unit, unit, tier_start, observed_at, metadata
		FROM price_observations
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY observed_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query observations: %v", pricing.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var obs []pricing.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read observations: %v", pricing.ErrStorageUnavailable, err)
	}
	return obs, nil
}

// Latest returns the most recent observation for a SKU key.
func (s *PriceStore) Latest(ctx context.Context, key pricing.SKUKey) (pricing.Observation, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service, sku_id, sku_description, price_type,
		       price_per_unit, unit, tier_start, observed_at, metadata
		FROM price_observations
		WHERE service = ? AND sku_id = ? AND price_type = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`, key.Service, key.SKUID, key.PriceType)
	if err != nil {
		return pricing.Observation{}, false, fmt.Errorf("%w: query latest: %v", pricing.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return pricing.Observation{}, false, fmt.Errorf("%w: read latest: %v", pricing.ErrStorageUnavailable, err)
		}
		return pricing.Observation{}, false, nil
	}
	o, err := scanObservation(rows)
	if err != nil {
		return pricing.Observation{}, false, err
	}
	return o, true, nil
}

// Count returns the total number of stored observations.
func (s *PriceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_observations").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count observations: %v", pricing.ErrStorageUnavailable, err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *PriceStore) Close() error {
	return s.db.Close()
}

// scanObservation parses one row. Unparseable persisted content is a
// DataIntegrityError, surfaced rather than silently skipped so callers can
// decide to skip-and-log or abort.
func scanObservation(rows *sql.Rows) (pricing.Observation, error) {
	var (
		o         pricing.Observation
		price     string
		tierStart sql.NullString
		meta      string
		observed  time.Time
	)
	err := rows.Scan(
		&o.ID, &o.Key.Service, &o.Key.SKUID, &o.Description, &o.Key.PriceType,
		&price, &o.Unit, &tierStart, &observed, &meta,
	)
	if err != nil {
		return pricing.Observation{}, fmt.Errorf("%w: scan observation: %v", pricing.ErrDataIntegrity, err)
	}

	o.PricePerUnit, err = decimal.NewFromString(price)
	if err != nil {
		return pricing.Observation{}, fmt.Errorf("%w: observation %s has unparseable price %q", pricing.ErrDataIntegrity, o.ID, price)
	}
	if o.PricePerUnit.IsNegative() {
		return pricing.Observation{}, fmt.Errorf("%w: observation %s has negative price %s", pricing.ErrDataIntegrity, o.ID, price)
	}
	if tierStart.Valid {
		ts, err := decimal.NewFromString(tierStart.String)
		if err != nil {
			return pricing.Observation{}, fmt.Errorf("%w: observation %s has unparseable tier_start %q", pricing.ErrDataIntegrity, o.ID, tierStart.String)
		}
		o.TierStart = &ts
	}
	if err := json.Unmarshal([]byte(meta), &o.Metadata); err != nil {
		return pricing.Observation{}, fmt.Errorf("%w: observation %s has unparseable metadata", pricing.ErrDataIntegrity, o.ID)
	}
	o.Timestamp = observed.UTC()
	return o, nil
}

// Ensure interface compliance.
var _ ports.PriceStore = (*PriceStore)(nil)
