// Package store defines the persistence contract of the fiscal engine.
// Backends live in the memory, sqlite, postgres and mongo subpackages.
package store

import (
	"context"

	"github.com/xraph/fiscal/ledger"
)

// Store is the unified storage interface of the engine: ledger persistence
// plus the backend lifecycle.
type Store interface {
	ledger.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
