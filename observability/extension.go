// Package observability provides a metrics extension for the fiscal engine
// that records ledger event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnLedgerConfigured      = (*MetricsExtension)(nil)
	_ plugin.OnJournalEntryRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnRecordFailed          = (*MetricsExtension)(nil)
	_ plugin.OnDailyArchiveGenerated = (*MetricsExtension)(nil)
	_ plugin.OnDailyClosed           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as an engine plugin to track recording and archiving.
type MetricsExtension struct {
	factory MetricFactory

	// Ledger metrics
	LedgersCreated      Counter
	LedgersReconfigured Counter

	// Journal metrics
	TransactionsRecorded Counter
	VoidsRecorded        Counter
	TransactionAmount    Histogram

	// Failure metrics
	TransactionsRejected Counter
	RecordFailures       Counter

	// Day metrics
	ArchivesGenerated Counter
	ArchiveEntries    Histogram
	DailyCloses       Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Ledger metrics
		LedgersCreated:      factory.Counter("fiscal.ledger.created"),
		LedgersReconfigured: factory.Counter("fiscal.ledger.reconfigured"),

		// Journal metrics
		TransactionsRecorded: factory.Counter("fiscal.journal.recorded"),
		VoidsRecorded:        factory.Counter("fiscal.journal.voids"),
		TransactionAmount:    factory.Histogram("fiscal.journal.amount"),

		// Failure metrics
		TransactionsRejected: factory.Counter("fiscal.journal.rejected"),
		RecordFailures:       factory.Counter("fiscal.journal.failures"),

		// Day metrics
		ArchivesGenerated: factory.Counter("fiscal.daily.archives"),
		ArchiveEntries:    factory.Histogram("fiscal.daily.archive.entries"),
		DailyCloses:       factory.Counter("fiscal.daily.closes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnLedgerConfigured implements plugin.OnLedgerConfigured.
func (m *MetricsExtension) OnLedgerConfigured(_ context.Context, e *event.LedgerConfigured) error {
	if e.Created {
		m.LedgersCreated.Inc()
	} else {
		m.LedgersReconfigured.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnJournalEntryRecorded implements plugin.OnJournalEntryRecorded.
func (m *MetricsExtension) OnJournalEntryRecorded(_ context.Context, e *event.JournalEntryRecorded) error {
	m.TransactionsRecorded.Inc()
	if e.Entry.TransactionType.IsVoid() {
		m.VoidsRecorded.Inc()
	}
	amount, _ := e.Entry.Amount.Float64()
	m.TransactionAmount.Observe(amount)
	return nil
}

// OnRecordFailed implements plugin.OnRecordFailed.
func (m *MetricsExtension) OnRecordFailed(_ context.Context, e *event.RecordFailed) error {
	switch fiscal.Code(e.Code) {
	case fiscal.CodeNotConfigured, fiscal.CodeInvalidTransaction:
		m.TransactionsRejected.Inc()
	default:
		m.RecordFailures.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Day hooks
// ──────────────────────────────────────────────────

// OnDailyArchiveGenerated implements plugin.OnDailyArchiveGenerated.
func (m *MetricsExtension) OnDailyArchiveGenerated(_ context.Context, e *event.DailyArchiveGenerated) error {
	m.ArchivesGenerated.Inc()
	if e.Artifact != nil {
		m.ArchiveEntries.Observe(float64(len(e.Artifact.Entries)))
	}
	return nil
}

// OnDailyClosed implements plugin.OnDailyClosed.
func (m *MetricsExtension) OnDailyClosed(_ context.Context, _ *event.DailyClosed) error {
	m.DailyCloses.Inc()
	return nil
}
