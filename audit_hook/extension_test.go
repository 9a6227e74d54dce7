package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal"
	audithook "github.com/xraph/fiscal/audit_hook"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/types"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, e *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func run(t *testing.T, ext *audithook.Extension) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := fiscal.New(memory.New(),
		fiscal.WithLogger(logger),
		fiscal.WithKeyProvider(chain.StaticKeys{"k": []byte("0123456789abcdef")}),
		fiscal.WithPlugin(ext),
	)
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	key := fiscal.Key{TenantID: "t", SiteID: "s", Country: "FR"}
	_, err := e.Configure(ctx, key, fiscal.Configuration{Enabled: true, SigningKeyHandle: "k"})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, tx := range []*journal.TransactionRecord{
		{ID: "a", Timestamp: at, Type: journal.TypeSale, GrossAmount: types.MustAmount("5.00")},
		{ID: "b", Timestamp: at, Type: journal.TypeVoid, GrossAmount: types.MustAmount("-5.00")},
		{ID: "c", Timestamp: at, Type: journal.TypeSale, GrossAmount: types.MustAmount("-1.00")},
	} {
		_, err := e.RecordTransaction(ctx, key, tx)
		require.NoError(t, err)
	}
	_, err = e.PerformDailyClose(ctx, key, "")
	require.NoError(t, err)
}

func TestAuditTrail(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))))

	assert.Equal(t, []string{
		audithook.ActionLedgerCreated,
		audithook.ActionTransactionRecorded,
		audithook.ActionTransactionVoided,
		audithook.ActionTransactionRejected,
		audithook.ActionDayArchived,
		audithook.ActionDayClosed,
	}, s.actions())

	voided := s.events[2]
	assert.Equal(t, "b", voided.ResourceID)
	assert.Equal(t, audithook.SeverityWarning, voided.Severity)
	assert.Equal(t, "5.00", voided.Metadata["amount"])
	assert.Equal(t, uint64(2), voided.Metadata["sequence"])

	rejected := s.events[3]
	assert.Equal(t, audithook.OutcomeFailure, rejected.Outcome)
	assert.Equal(t, string(fiscal.CodeInvalidTransaction), rejected.Metadata["code"])
	assert.NotEmpty(t, rejected.Reason)

	archived := s.events[4]
	assert.Equal(t, int64(2), archived.Metadata["entries"])
	assert.Equal(t, "10.00", archived.Metadata["grand_total"])
}

func TestActionFilters(t *testing.T) {
	s := &sink{}
	run(t, audithook.New(s, audithook.WithEnabledActions(audithook.ActionDayClosed)))
	assert.Equal(t, []string{audithook.ActionDayClosed}, s.actions())

	s = &sink{}
	run(t, audithook.New(s, audithook.WithDisabledActions(
		audithook.ActionTransactionRecorded,
		audithook.ActionTransactionVoided,
	)))
	assert.NotContains(t, s.actions(), audithook.ActionTransactionRecorded)
	assert.Contains(t, s.actions(), audithook.ActionLedgerCreated)
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}), audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	run(t, ext)
}
