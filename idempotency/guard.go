// Package idempotency de-duplicates RecordTransaction calls by transaction
// id.
//
// A client that retries a transaction after a timeout must not produce a
// second journal entry. The Guard remembers the receipt of every successful
// recording for a retention window and returns it for repeated calls with the
// same ledger key and transaction id. Concurrent duplicates inside one
// process are coalesced so only one of them reaches the engine.
//
// Failed receipts and errors are not remembered: a retry after a rejected or
// failed attempt is recorded normally.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
)

// ErrNotFound is returned by Store.Get when nothing is remembered for a key.
var ErrNotFound = errors.New("idempotency: receipt not found")

// DefaultTTL is how long receipts are remembered unless WithTTL is given.
const DefaultTTL = 72 * time.Hour

// Store remembers receipts.
type Store interface {
	Get(ctx context.Context, key string) (*fiscal.Receipt, error)
	Put(ctx context.Context, key string, r *fiscal.Receipt, ttl time.Duration) error
}

// Recorder records transactions. *fiscal.Engine implements it.
type Recorder interface {
	RecordTransaction(ctx context.Context, key ledger.Key, tx *journal.TransactionRecord) (*fiscal.Receipt, error)
}

// Guard wraps a Recorder.
type Guard struct {
	next   Recorder
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// Option configures a Guard.
type Option func(*Guard)

// WithTTL sets the retention window.
func WithTTL(d time.Duration) Option {
	return func(g *Guard) { g.ttl = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a Guard.
func New(next Recorder, store Store, opts ...Option) *Guard {
	g := &Guard{
		next:   next,
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key returns the store key of a transaction.
func Key(key ledger.Key, transactionID string) string {
	return "fiscal:idem:" + key.String() + ":" + transactionID
}

// RecordTransaction returns the remembered receipt for tx if there is one
// and records tx otherwise.
func (g *Guard) RecordTransaction(ctx context.Context, key ledger.Key, tx *journal.TransactionRecord) (*fiscal.Receipt, error) {
	if tx == nil || tx.ID == "" {
		return g.next.RecordTransaction(ctx, key, tx)
	}
	k := Key(key, tx.ID)

	if r, err := g.lookup(ctx, k); r != nil || err != nil {
		return r, err
	}

	v, err, shared := g.group.Do(k, func() (any, error) {
		if r, err := g.lookup(ctx, k); r != nil || err != nil {
			return r, err
		}
		r, err := g.next.RecordTransaction(ctx, key, tx)
		if err != nil || r == nil || !r.Success {
			return r, err
		}
		if err := g.store.Put(context.WithoutCancel(ctx), k, r, g.ttl); err != nil {
			g.logger.Warn("idempotency receipt not stored",
				"key", key.String(),
				"transaction_id", tx.ID,
				"error", err,
			)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	r, _ := v.(*fiscal.Receipt)
	if shared && r != nil {
		g.logger.Debug("duplicate transaction coalesced",
			"key", key.String(),
			"transaction_id", tx.ID,
		)
	}
	return r, nil
}

func (g *Guard) lookup(ctx context.Context, k string) (*fiscal.Receipt, error) {
	r, err := g.store.Get(ctx, k)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("idempotency: lookup %s: %w", k, err)
	}
}
