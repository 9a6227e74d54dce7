// Package postgres stores fiscal ledgers in PostgreSQL through the grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/ledger"
	fiscalstore "github.com/xraph/fiscal/store"
)

// compile-time interface check
var _ fiscalstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("fiscal/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fiscal/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Ledger Store ====================

func (s *Store) GetLedger(ctx context.Context, key ledger.Key) (*ledger.Ledger, error) {
	m := new(ledgerModel)
	err := s.pg.NewSelect(m).
		Where("tenant_id = $1", key.TenantID).
		Where("site_id = $2", key.SiteID).
		Where("country = $3", key.Country).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", fiscal.ErrLedgerNotFound, key)
		}
		return nil, fmt.Errorf("fiscal/postgres: get ledger %s: %w", key, err)
	}
	return fromLedgerModel(m)
}

// SaveLedger inserts a ledger with version zero and otherwise updates the row
// only while its stored version still equals l.Version. On success
// l.Version is incremented.
func (s *Store) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	m, err := toLedgerModel(l)
	if err != nil {
		return fmt.Errorf("fiscal/postgres: %w", err)
	}
	m.Version = l.Version + 1
	m.UpdatedAt = now()

	if l.Version == 0 {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = m.UpdatedAt
		}
		res, err := s.pg.NewInsert(m).
			OnConflict("(tenant_id, site_id, country) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("fiscal/postgres: insert ledger %s: %w", l.Key, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s already exists", fiscal.ErrVersionConflict, l.Key)
		}
		l.Version = m.Version
		return nil
	}

	var stored int64
	err = s.pg.NewRaw(`
		UPDATE fiscal_ledgers
		SET business_date = $1, enabled = $2, config = $3, daily_totals = $4,
		    perpetual_totals = $5, journal = $6, version = $7, updated_at = $8
		WHERE tenant_id = $9 AND site_id = $10 AND country = $11 AND version = $12
		RETURNING version
	`, m.BusinessDate, m.Enabled, m.Config, m.DailyTotals,
		m.PerpetualTotals, m.Journal, m.Version, m.UpdatedAt,
		m.TenantID, m.SiteID, m.Country, l.Version).Scan(ctx, &stored)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s is not at version %d", fiscal.ErrVersionConflict, l.Key, l.Version)
		}
		return fmt.Errorf("fiscal/postgres: update ledger %s: %w", l.Key, err)
	}
	l.Version = stored
	return nil
}

func (s *Store) ListLedgers(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Ledger, error) {
	var models []ledgerModel
	q := s.pg.NewSelect(&models)

	n := 0
	if opts.TenantID != "" {
		n++
		q = q.Where(fmt.Sprintf("tenant_id = $%d", n), opts.TenantID)
	}
	if opts.Country != "" {
		n++
		q = q.Where(fmt.Sprintf("country = $%d", n), opts.Country)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("tenant_id ASC, site_id ASC, country ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fiscal/postgres: list ledgers: %w", err)
	}

	result := make([]*ledger.Ledger, len(models))
	for i := range models {
		l, err := fromLedgerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
