// Package memory is an in-process store for tests and single-node setups.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps ledgers in a map. Values are cloned on the way in and out so
// callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	ledgers map[ledger.Key]*ledger.Ledger
	closed  bool
}

func New() *Store {
	return &Store{
		ledgers: make(map[ledger.Key]*ledger.Ledger),
	}
}

// Ledger Store implementation
func (s *Store) GetLedger(_ context.Context, key ledger.Key) (*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fiscal.ErrStoreClosed
	}
	if l, ok := s.ledgers[key]; ok {
		return l.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", fiscal.ErrLedgerNotFound, key)
}

func (s *Store) SaveLedger(_ context.Context, l *ledger.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fiscal.ErrStoreClosed
	}

	var stored int64
	if existing, ok := s.ledgers[l.Key]; ok {
		stored = existing.Version
	}
	if stored != l.Version {
		return fmt.Errorf("%w: %s has version %d, got %d", fiscal.ErrVersionConflict, l.Key, stored, l.Version)
	}

	l.Version++
	s.ledgers[l.Key] = l.Clone()
	return nil
}

func (s *Store) ListLedgers(_ context.Context, opts ledger.ListOpts) ([]*ledger.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fiscal.ErrStoreClosed
	}

	var result []*ledger.Ledger
	for k, l := range s.ledgers {
		if opts.TenantID != "" && k.TenantID != opts.TenantID {
			continue
		}
		if opts.Country != "" && k.Country != opts.Country {
			continue
		}
		result = append(result, l.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.String() < result[j].Key.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*ledger.Ledger{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fiscal.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
