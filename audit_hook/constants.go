package audithook

// Action constants for audit events.
const (
	// Ledger actions
	ActionLedgerCreated      = "ledger.created"
	ActionLedgerReconfigured = "ledger.reconfigured"

	// Journal actions
	ActionTransactionRecorded = "transaction.recorded"
	ActionTransactionVoided   = "transaction.voided"
	ActionTransactionRejected = "transaction.rejected"
	ActionTransactionFailed   = "transaction.failed"

	// Day actions
	ActionDayArchived = "day.archived"
	ActionDayClosed   = "day.closed"
)

// Resource constants for audit events.
const (
	ResourceLedger  = "ledger"
	ResourceJournal = "journal"
	ResourceArchive = "archive"
)

// Category constants for audit events.
const (
	CategoryConfiguration = "configuration"
	CategoryFiscal        = "fiscal"
	CategoryRetention     = "retention"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
