// Package plugin provides an extensible plugin system for the fiscal engine.
// Plugins can hook into ledger lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/fiscal/event"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnLedgerConfigured is called after a configuration was stored.
type OnLedgerConfigured interface {
	Plugin
	OnLedgerConfigured(ctx context.Context, e *event.LedgerConfigured) error
}

// OnJournalEntryRecorded is called after a transaction was recorded.
type OnJournalEntryRecorded interface {
	Plugin
	OnJournalEntryRecorded(ctx context.Context, e *event.JournalEntryRecorded) error
}

// OnRecordFailed is called when a transaction could not be recorded.
type OnRecordFailed interface {
	Plugin
	OnRecordFailed(ctx context.Context, e *event.RecordFailed) error
}

// ──────────────────────────────────────────────────
// Day lifecycle hooks
// ──────────────────────────────────────────────────

// OnDailyArchiveGenerated is called when a business day was archived.
type OnDailyArchiveGenerated interface {
	Plugin
	OnDailyArchiveGenerated(ctx context.Context, e *event.DailyArchiveGenerated) error
}

// ArchiveSink is an OnDailyArchiveGenerated hook that persists the archive.
// When PersistsArchives reports true, a failure of the hook aborts the
// rollover or close that generated the archive and the day's entries stay
// in the ledger.
type ArchiveSink interface {
	OnDailyArchiveGenerated
	PersistsArchives() bool
}

// OnDailyClosed is called after a daily close.
type OnDailyClosed interface {
	Plugin
	OnDailyClosed(ctx context.Context, e *event.DailyClosed) error
}
