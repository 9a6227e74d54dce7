package ledger

import "context"

// Store persists one record per ledger key.
//
// Save writes the whole aggregate atomically. l.Version must equal the
// version currently stored (zero for a new ledger); on success the store
// increments l.Version. A mismatch returns fiscal.ErrVersionConflict and
// leaves the stored record untouched.
type Store interface {
	GetLedger(ctx context.Context, key Key) (*Ledger, error)
	SaveLedger(ctx context.Context, l *Ledger) error
	ListLedgers(ctx context.Context, opts ListOpts) ([]*Ledger, error)
}

// ListOpts filters ListLedgers.
type ListOpts struct {
	TenantID string
	Country  string
	Limit    int
	Offset   int
}
