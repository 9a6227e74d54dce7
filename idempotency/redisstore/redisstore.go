// Package redisstore keeps idempotency receipts in Redis so every instance
// of a service sees the same retention window.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/idempotency"
)

var _ idempotency.Store = (*Store)(nil)

// Store implements idempotency.Store on a Redis client.
type Store struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// New wraps client. Every command is bounded by timeout when it is positive.
func New(client redis.UniversalClient, timeout time.Duration) *Store {
	return &Store{client: client, timeout: timeout}
}

// Open connects to addr and pings it.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return New(client, 500*time.Millisecond), nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Get implements idempotency.Store.
func (s *Store) Get(ctx context.Context, key string) (*fiscal.Receipt, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, idempotency.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	var r fiscal.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("redisstore: decode %s: %w", key, err)
	}
	return &r, nil
}

// Put implements idempotency.Store. An existing receipt is never replaced.
func (s *Store) Put(ctx context.Context, key string, r *fiscal.Receipt, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redisstore: encode %s: %w", key, err)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.SetNX(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }
