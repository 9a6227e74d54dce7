// Package mongo stores fiscal ledgers in MongoDB through the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/ledger"
	fiscalstore "github.com/xraph/fiscal/store"
)

// Collection name constants.
const (
	colLedgers = "fiscal_ledgers"
)

// compile-time interface check
var _ fiscalstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the fiscal collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("fiscal/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m ledgerModel
	err := s.mdb.NewFind(&m).
		Filter(keyFilter(key)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %s", fiscal.ErrLedgerNotFound, key)
		}
		return nil, fmt.Errorf("fiscal/mongo: get ledger %s: %w", key, err)
	}
	return fromLedgerModel(&m)
}

// SaveLedger inserts a ledger with version zero and otherwise replaces the
// document only while its stored version still equals l.Version.
func (s *Store) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	m, err := toLedgerModel(l)
	if err != nil {
		return fmt.Errorf("fiscal/mongo: %w", err)
	}
	m.Version = l.Version + 1
	m.UpdatedAt = now()

	if l.Version == 0 {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = m.UpdatedAt
		}
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s already exists", fiscal.ErrVersionConflict, l.Key)
			}
			return fmt.Errorf("fiscal/mongo: insert ledger %s: %w", l.Key, err)
		}
		l.Version = m.Version
		return nil
	}

	filter := keyFilter(l.Key)
	filter["version"] = l.Version
	res, err := s.mdb.NewUpdate(m).
		Filter(filter).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiscal/mongo: update ledger %s: %w", l.Key, err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("%w: %s is not at version %d", fiscal.ErrVersionConflict, l.Key, l.Version)
	}
	l.Version = m.Version
	return nil
}

func (s *Store) ListLedgers(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Ledger, error) {
	var models []ledgerModel

	filter := bson.M{}
	if opts.TenantID != "" {
		filter["tenant_id"] = opts.TenantID
	}
	if opts.Country != "" {
		filter["country"] = opts.Country
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "tenant_id", Value: 1}, {Key: "site_id", Value: 1}, {Key: "country", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fiscal/mongo: list ledgers: %w", err)
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

func keyFilter(key ledger.Key) bson.M {
	return bson.M{"tenant_id": key.TenantID, "site_id": key.SiteID, "country": key.Country}
}

func now() time.Time {
	return time.Now().UTC()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the fiscal collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLedgers: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "site_id", Value: 1}, {Key: "country", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "country", Value: 1}, {Key: "tenant_id", Value: 1}}},
			{Keys: bson.D{{Key: "enabled", Value: 1}, {Key: "business_date", Value: 1}}},
		},
	}
}
