// Package sqlite stores fiscal ledgers in SQLite through the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/ledger"
	fiscalstore "github.com/xraph/fiscal/store"
)

// compile-time interface check
var _ fiscalstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("fiscal/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fiscal/sqlite: migration failed: %w", err)
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
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", key.TenantID).
		Where("site_id = ?", key.SiteID).
		Where("country = ?", key.Country).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", fiscal.ErrLedgerNotFound, key)
		}
		return nil, fmt.Errorf("fiscal/sqlite: get ledger %s: %w", key, err)
	}
	return fromLedgerModel(m)
}

// SaveLedger inserts a ledger with version zero and otherwise updates the row
// only while its stored version still equals l.Version. On success
// l.Version is incremented.
func (s *Store) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	m, err := toLedgerModel(l)
	if err != nil {
		return fmt.Errorf("fiscal/sqlite: %w", err)
	}
	m.Version = l.Version + 1
	m.UpdatedAt = now()

	if l.Version == 0 {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = m.UpdatedAt
		}
		res, err := s.sdb.NewInsert(m).
			OnConflict("DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("fiscal/sqlite: insert ledger %s: %w", l.Key, err)
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
	err = s.sdb.NewRaw(`
		UPDATE fiscal_ledgers
		SET business_date = ?, enabled = ?, config = ?, daily_totals = ?,
		    perpetual_totals = ?, journal = ?, version = ?, updated_at = ?
		WHERE tenant_id = ? AND site_id = ? AND country = ? AND version = ?
		RETURNING version
	`, m.BusinessDate, m.Enabled, m.Config, m.DailyTotals,
		m.PerpetualTotals, m.Journal, m.Version, m.UpdatedAt,
		m.TenantID, m.SiteID, m.Country, l.Version).Scan(ctx, &stored)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s is not at version %d", fiscal.ErrVersionConflict, l.Key, l.Version)
		}
		return fmt.Errorf("fiscal/sqlite: update ledger %s: %w", l.Key, err)
	}
	l.Version = stored
	return nil
}

func (s *Store) ListLedgers(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Ledger, error) {
	var models []ledgerModel
	q := s.sdb.NewSelect(&models)

	if opts.TenantID != "" {
		q = q.Where("tenant_id = ?", opts.TenantID)
	}
	if opts.Country != "" {
		q = q.Where("country = ?", opts.Country)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("tenant_id ASC, site_id ASC, country ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fiscal/sqlite: list ledgers: %w", err)
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
