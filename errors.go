package fiscal

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure code surfaced on results and
// errors.
type Code string

// Failure codes.
const (
	CodeNotConfigured      Code = "NOT_CONFIGURED"
	CodeRecordFailed       Code = "RECORD_FAILED"
	CodeDailyCloseFailed   Code = "DAILY_CLOSE_FAILED"
	CodeExportFailed       Code = "EXPORT_FAILED"
	CodeInvalidTransaction Code = "INVALID_TRANSACTION"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("fiscal: not found")
	ErrAlreadyExists = errors.New("fiscal: already exists")
	ErrInvalidInput  = errors.New("fiscal: invalid input")

	// Ledger errors
	ErrLedgerNotFound     = errors.New("fiscal: ledger not found")
	ErrNotConfigured      = errors.New("fiscal: ledger not configured")
	ErrVersionConflict    = errors.New("fiscal: ledger version conflict")
	ErrInvalidTransaction = errors.New("fiscal: invalid transaction")
	ErrUnknownSigningKey  = errors.New("fiscal: unknown signing key")

	// Operation errors
	ErrRecordFailed     = errors.New("fiscal: record failed")
	ErrDailyCloseFailed = errors.New("fiscal: daily close failed")
	ErrExportFailed     = errors.New("fiscal: export failed")

	// Store errors
	ErrStoreNotReady     = errors.New("fiscal: store not ready")
	ErrStoreClosed       = errors.New("fiscal: store is closed")
	ErrTransactionFailed = errors.New("fiscal: transaction failed")
	ErrMigrationFailed   = errors.New("fiscal: migration failed")
)

// sentinelFor maps a code to the sentinel errors.Is matches it against.
func sentinelFor(c Code) error {
	switch c {
	case CodeNotConfigured:
		return ErrNotConfigured
	case CodeRecordFailed:
		return ErrRecordFailed
	case CodeDailyCloseFailed:
		return ErrDailyCloseFailed
	case CodeExportFailed:
		return ErrExportFailed
	case CodeInvalidTransaction:
		return ErrInvalidTransaction
	}
	return nil
}

// Error is a coded failure that wraps its cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fiscal: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("fiscal: %s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRecordFailed) match an *Error with that code.
func (e *Error) Is(target error) bool {
	s := sentinelFor(e.Code)
	return s != nil && s == target
}

func newError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("fiscal: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "fiscal: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("fiscal: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrLedgerNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
