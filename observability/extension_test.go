package observability_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/observability"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/types"
)

func value(m any) float64 {
	return testutil.ToFloat64(m.(prometheus.Collector))
}

func TestMetricsFromEngine(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	ctx := context.Background()
	e := fiscal.New(memory.New(),
		fiscal.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		fiscal.WithKeyProvider(chain.StaticKeys{"k": []byte("secret")}),
		fiscal.WithPlugin(m),
	)
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	key := fiscal.Key{TenantID: "t", SiteID: "s", Country: "IT"}
	_, err := e.Configure(ctx, key, fiscal.Configuration{Enabled: true, SigningKeyHandle: "k", AutoArchive: true})
	require.NoError(t, err)
	_, err = e.Configure(ctx, key, fiscal.Configuration{Enabled: true, SigningKeyHandle: "k", AutoArchive: true})
	require.NoError(t, err)

	day := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	txs := []*journal.TransactionRecord{
		{ID: "1", Timestamp: day, Type: journal.TypeSale, GrossAmount: types.MustAmount("20.00")},
		{ID: "2", Timestamp: day, Type: journal.TypeVoid, GrossAmount: types.MustAmount("-20.00")},
		{ID: "3", Timestamp: day.AddDate(0, 0, 1), Type: journal.TypeSale, GrossAmount: types.MustAmount("3.00")},
		{ID: "4", Timestamp: day, Type: journal.TypeSale, GrossAmount: types.MustAmount("-3.00")},
	}
	for _, tx := range txs {
		_, err := e.RecordTransaction(ctx, key, tx)
		require.NoError(t, err)
	}
	_, err = e.PerformDailyClose(ctx, key, "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, value(m.LedgersCreated))
	assert.Equal(t, 1.0, value(m.LedgersReconfigured))
	assert.Equal(t, 3.0, value(m.TransactionsRecorded))
	assert.Equal(t, 1.0, value(m.VoidsRecorded))
	assert.Equal(t, 1.0, value(m.TransactionsRejected))
	assert.Equal(t, 0.0, value(m.RecordFailures))
	assert.Equal(t, 2.0, value(m.ArchivesGenerated))
	assert.Equal(t, 1.0, value(m.DailyCloses))

	n, err := testutil.GatherAndCount(reg, "fiscal_journal_recorded_total", "fiscal_daily_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory(reg, observability.WithNamespace("pos"))
	b := observability.NewPrometheusFactory(reg, observability.WithNamespace("pos"))

	a.Counter("fiscal.daily.closes").Inc()
	b.Counter("fiscal.daily.closes").Add(2)
	assert.Same(t, a.Counter("fiscal.daily.closes"), a.Counter("fiscal.daily.closes"))

	n, err := testutil.GatherAndCount(reg, "pos_fiscal_daily_closes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3.0, value(a.Counter("fiscal.daily.closes")))
}
