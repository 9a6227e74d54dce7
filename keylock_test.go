package fiscal

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/fiscal/ledger"
)

func TestKeyLocksReleaseIdleKeys(t *testing.T) {
	k := newKeyLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counter = make(map[ledger.Key]int)
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ledger.Key{TenantID: "acme", SiteID: fmt.Sprintf("pos-%d", i%20), Country: "DE"}
			unlock := k.lock(key)
			defer unlock()

			mu.Lock()
			counter[key]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, counter, 20)
	assert.Zero(t, k.size())
}

func TestKeyLocksSerializeOneKey(t *testing.T) {
	k := newKeyLocks()
	key := ledger.Key{TenantID: "acme", SiteID: "berlin-1", Country: "DE"}

	unlock := k.lock(key)
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		release := k.lock(key)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	default:
	}
	assert.Equal(t, 1, k.size())

	unlock()
	<-acquired
	assert.Zero(t, k.size())
}
