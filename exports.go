package fiscal

import (
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/types"
)

// Re-export common types for convenience so users don't have to import the
// subpackages for everyday calls.

// Key is re-exported from the ledger package.
type Key = ledger.Key

// Configuration is re-exported from the ledger package.
type Configuration = ledger.Configuration

// TransactionRecord is re-exported from the journal package.
type TransactionRecord = journal.TransactionRecord

// TransactionType is re-exported from the journal package.
type TransactionType = journal.TransactionType

// Entity is re-exported from types package.
type Entity = types.Entity

// Transaction types.
const (
	TypeSale         = journal.TypeSale
	TypeRefund       = journal.TypeRefund
	TypeVoid         = journal.TypeVoid
	TypeCancellation = journal.TypeCancellation
	TypeTraining     = journal.TypeTraining
	TypeNoSale       = journal.TypeNoSale
)

// Export formats.
const (
	FormatJSON   = export.FormatJSON
	FormatXML    = export.FormatXML
	FormatCSV    = export.FormatCSV
	FormatBinary = export.FormatBinary
)

// Re-export constructors
var (
	ParseKey    = ledger.ParseKey
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
	DayRange    = export.DayRange
	NewEntity   = types.NewEntity
)
