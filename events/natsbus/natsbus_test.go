package natsbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/events/natsbus"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/types"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu      sync.Mutex
	msgs    []message
	fail    error
	flushed int
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, message{subject, data})
	return nil
}

func (c *fakeConn) FlushTimeout(time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed++
	return nil
}

func (c *fakeConn) subjects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.subject
	}
	return out
}

func TestPublishesEngineEvents(t *testing.T) {
	conn := &fakeConn{}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := natsbus.New(conn, natsbus.WithLogger(quiet))

	ctx := context.Background()
	e := fiscal.New(memory.New(),
		fiscal.WithLogger(quiet),
		fiscal.WithKeyProvider(chain.StaticKeys{"k": []byte("secret")}),
		fiscal.WithPlugin(pub),
	)
	require.NoError(t, e.Start(ctx))

	key := fiscal.Key{TenantID: "acme", SiteID: "store.1", Country: "AT"}
	_, err := e.Configure(ctx, key, fiscal.Configuration{Enabled: true, SigningKeyHandle: "k", AutoArchive: true})
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{day, day.AddDate(0, 0, 1)} {
		_, err := e.RecordTransaction(ctx, key, &journal.TransactionRecord{
			ID: at.Format("0102"), Timestamp: at, Type: journal.TypeSale, GrossAmount: types.MustAmount("5.50"),
		})
		require.NoError(t, err)
	}
	require.NoError(t, e.Stop())

	assert.Equal(t, []string{
		"fiscal.ledger.configured.acme.AT.store_1",
		"fiscal.journal.entry_recorded.acme.AT.store_1",
		"fiscal.daily.archive_generated.acme.AT.store_1",
		"fiscal.journal.entry_recorded.acme.AT.store_1",
	}, conn.subjects())
	assert.Equal(t, 1, conn.flushed)

	env, err := natsbus.Decode(conn.msgs[2].data)
	require.NoError(t, err)
	assert.Equal(t, event.TypeDailyArchiveGenerated, env.Type)
	assert.Equal(t, key, env.Key)

	var summary natsbus.ArchiveSummary
	require.NoError(t, json.Unmarshal(env.Payload, &summary))
	assert.Equal(t, "2026-03-02", summary.BusinessDate)
	assert.Equal(t, "5.50", summary.GrandTotal)
	assert.Equal(t, uint64(1), summary.FirstSequenceNumber)
	assert.Equal(t, uint64(1), summary.LastSequenceNumber)

	env, err = natsbus.Decode(conn.msgs[3].data)
	require.NoError(t, err)
	var recorded struct {
		BusinessDate string `json:"business_date"`
		Entry        struct {
			SequenceNumber uint64 `json:"sequence_number"`
			TransactionID  string `json:"transaction_id"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &recorded))
	assert.Equal(t, "2026-03-03", recorded.BusinessDate)
	assert.Equal(t, uint64(2), recorded.Entry.SequenceNumber)
	assert.Equal(t, "0303", recorded.Entry.TransactionID)
}

func TestSubjectPrefix(t *testing.T) {
	pub := natsbus.New(&fakeConn{}, natsbus.WithPrefix("pos"))
	key := fiscal.Key{TenantID: "t*", SiteID: "", Country: "IT"}
	assert.Equal(t, "pos.fiscal.daily.closed.t_.IT._", pub.Subject(event.TypeDailyClosed, key))
}

func TestPublishErrorIsReturned(t *testing.T) {
	conn := &fakeConn{fail: errors.New("nats: connection closed")}
	pub := natsbus.New(conn, natsbus.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := pub.OnDailyClosed(context.Background(), &event.DailyClosed{
		Key: fiscal.Key{TenantID: "t", SiteID: "s", Country: "PL"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fiscal.daily.closed.t.PL.s")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := natsbus.Decode([]byte("{"))
	assert.Error(t, err)
}
