// Package audithook bridges fiscal ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/event"
	"github.com/xraph/fiscal/plugin"
	"github.com/xraph/fiscal/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnLedgerConfigured      = (*Extension)(nil)
	_ plugin.OnJournalEntryRecorded  = (*Extension)(nil)
	_ plugin.OnRecordFailed          = (*Extension)(nil)
	_ plugin.OnDailyArchiveGenerated = (*Extension)(nil)
	_ plugin.OnDailyClosed           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges fiscal events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnLedgerConfigured implements plugin.OnLedgerConfigured.
func (e *Extension) OnLedgerConfigured(ctx context.Context, ev *event.LedgerConfigured) error {
	action := ActionLedgerReconfigured
	if ev.Created {
		action = ActionLedgerCreated
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceLedger, ev.LedgerID.String(), CategoryConfiguration, "",
		"key", ev.Key.String(),
		"enabled", ev.Config.Enabled,
		"auto_archive", ev.Config.AutoArchive,
		"signing_key_handle", ev.Config.SigningKeyHandle,
		"certificate_serial", ev.Config.CertificateSerial,
	)
}

// OnJournalEntryRecorded implements plugin.OnJournalEntryRecorded.
func (e *Extension) OnJournalEntryRecorded(ctx context.Context, ev *event.JournalEntryRecorded) error {
	action, severity := ActionTransactionRecorded, SeverityInfo
	if ev.Entry.TransactionType.IsVoid() {
		action, severity = ActionTransactionVoided, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceJournal, ev.Entry.TransactionID, CategoryFiscal, "",
		"key", ev.Key.String(),
		"sequence", ev.Entry.SequenceNumber,
		"type", string(ev.Entry.TransactionType),
		"amount", types.Fixed(ev.Entry.Amount),
		"running_total", types.Fixed(ev.Entry.RunningTotal),
		"business_date", ev.BusinessDate,
	)
}

// OnRecordFailed implements plugin.OnRecordFailed.
func (e *Extension) OnRecordFailed(ctx context.Context, ev *event.RecordFailed) error {
	action, severity := ActionTransactionRejected, SeverityWarning
	if ev.Code == string(fiscal.CodeRecordFailed) || ev.Code == string(fiscal.CodeDailyCloseFailed) {
		action, severity = ActionTransactionFailed, SeverityCritical
	}
	return e.record(ctx, action, severity, OutcomeFailure,
		ResourceJournal, ev.TransactionID, CategoryFiscal, ev.Message,
		"key", ev.Key.String(),
		"code", ev.Code,
	)
}

// ──────────────────────────────────────────────────
// Day hooks
// ──────────────────────────────────────────────────

// OnDailyArchiveGenerated implements plugin.OnDailyArchiveGenerated.
func (e *Extension) OnDailyArchiveGenerated(ctx context.Context, ev *event.DailyArchiveGenerated) error {
	kv := []any{
		"key", ev.Key.String(),
		"business_date", ev.BusinessDate,
		"format", string(ev.Format),
	}
	exportID := ""
	if a := ev.Artifact; a != nil {
		exportID = a.Header.ExportID.String()
		kv = append(kv,
			"entries", a.Footer.TransactionCount,
			"grand_total", types.Fixed(a.Footer.GrandTotal),
			"first_sequence", a.Footer.FirstSequenceNumber,
			"last_sequence", a.Footer.LastSequenceNumber,
		)
	}
	return e.record(ctx, ActionDayArchived, SeverityInfo, OutcomeSuccess,
		ResourceArchive, exportID, CategoryRetention, "", kv...)
}

// OnDailyClosed implements plugin.OnDailyClosed.
func (e *Extension) OnDailyClosed(ctx context.Context, ev *event.DailyClosed) error {
	return e.record(ctx, ActionDayClosed, SeverityInfo, OutcomeSuccess,
		ResourceLedger, ev.CloseID.String(), CategoryRetention, "",
		"key", ev.Key.String(),
		"business_date", ev.BusinessDate,
		"entries_archived", ev.EntriesArchived,
		"daily_grand_total", types.Fixed(ev.Daily.GrandTotal),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
