// Package event defines the notifications the fiscal engine emits after a
// ledger changes. Events are delivered to plugins after the change has been
// persisted, except DailyArchiveGenerated which precedes the save of the
// rolled-over ledger and may be delivered more than once. A failing
// subscriber never rolls the change back.
package event

import (
	"time"

	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
)

// Event type names. They double as message subjects on external buses.
const (
	TypeLedgerConfigured      = "fiscal.ledger.configured"
	TypeJournalEntryRecorded  = "fiscal.journal.entry_recorded"
	TypeDailyArchiveGenerated = "fiscal.daily.archive_generated"
	TypeDailyClosed           = "fiscal.daily.closed"
	TypeRecordFailed          = "fiscal.journal.record_failed"
)

// Event is implemented by every event in this package.
type Event interface {
	EventType() string
	LedgerKey() ledger.Key
}

// LedgerConfigured is emitted after Configure stored a configuration.
type LedgerConfigured struct {
	Key      ledger.Key           `json:"key"`
	LedgerID id.LedgerID          `json:"ledger_id"`
	Config   ledger.Configuration `json:"config"`
	Created  bool                 `json:"created"`
	At       time.Time            `json:"at"`
}

func (e *LedgerConfigured) EventType() string     { return TypeLedgerConfigured }
func (e *LedgerConfigured) LedgerKey() ledger.Key { return e.Key }

// JournalEntryRecorded is emitted once per recorded transaction.
type JournalEntryRecorded struct {
	Key          ledger.Key    `json:"key"`
	LedgerID     id.LedgerID   `json:"ledger_id"`
	BusinessDate string        `json:"business_date"`
	Entry        journal.Entry `json:"entry"`
	Daily        totals.Totals `json:"daily"`
	Perpetual    totals.Totals `json:"perpetual"`
}

func (e *JournalEntryRecorded) EventType() string     { return TypeJournalEntryRecorded }
func (e *JournalEntryRecorded) LedgerKey() ledger.Key { return e.Key }

// DailyArchiveGenerated is emitted when a business day is archived, by a
// rollover or a daily close.
type DailyArchiveGenerated struct {
	Key          ledger.Key       `json:"key"`
	BusinessDate string           `json:"business_date"`
	Timezone     string           `json:"timezone,omitempty"`
	Format       export.Format    `json:"format"`
	Artifact     *export.Artifact `json:"artifact"`
}

func (e *DailyArchiveGenerated) EventType() string     { return TypeDailyArchiveGenerated }
func (e *DailyArchiveGenerated) LedgerKey() ledger.Key { return e.Key }

// Location returns the zone the archived day was cut in.
func (e *DailyArchiveGenerated) Location() *time.Location {
	return ledger.Configuration{Timezone: e.Timezone}.Location()
}

// DailyClosed is emitted after a successful daily close.
type DailyClosed struct {
	Key             ledger.Key      `json:"key"`
	CloseID         id.DailyCloseID `json:"close_id"`
	BusinessDate    string          `json:"business_date"`
	EntriesArchived int             `json:"entries_archived"`
	Daily           totals.Totals   `json:"daily"`
	ClosedAt        time.Time       `json:"closed_at"`
}

func (e *DailyClosed) EventType() string     { return TypeDailyClosed }
func (e *DailyClosed) LedgerKey() ledger.Key { return e.Key }

// RecordFailed is emitted when a transaction could not be recorded.
type RecordFailed struct {
	Key           ledger.Key `json:"key"`
	TransactionID string     `json:"transaction_id"`
	Code          string     `json:"code"`
	Message       string     `json:"message"`
	At            time.Time  `json:"at"`
}

func (e *RecordFailed) EventType() string     { return TypeRecordFailed }
func (e *RecordFailed) LedgerKey() ledger.Key { return e.Key }
