package fiscal

import (
	"sync"

	"github.com/xraph/fiscal/ledger"
)

// keyLocks hands out one mutex per ledger key. Writers for the same key are
// serialized; different keys never contend beyond the map lookup. An entry
// lives only while some caller holds or waits for it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[ledger.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[ledger.Key]*keyLock)}
}

// lock acquires the mutex of key and returns its unlock func.
func (k *keyLocks) lock(key ledger.Key) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size returns the number of keys currently locked or waited on.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
