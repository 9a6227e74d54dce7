package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/fiscal"
)

// MemoryStore keeps receipts in process memory. Expired receipts are
// dropped lazily on access and by Sweep.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]memoryEntry
	now func() time.Time
}

type memoryEntry struct {
	receipt fiscal.Receipt
	expires time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*fiscal.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, key)
		return nil, ErrNotFound
	}
	r := e.receipt
	return &r, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, r *fiscal.Receipt, ttl time.Duration) error {
	e := memoryEntry{receipt: *r}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = e
	s.mu.Unlock()
	return nil
}

// Sweep removes expired receipts and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.m {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.m, k)
			n++
		}
	}
	return n
}

// Len returns the number of remembered receipts.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
