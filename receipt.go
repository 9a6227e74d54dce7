package fiscal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
	"github.com/xraph/fiscal/types"
)

// Receipt is the outcome of RecordTransaction. A failed receipt carries a
// Code and a Message and nothing was written.
type Receipt struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	ReceiptID         id.ReceiptID      `json:"receipt_id"`
	TransactionID     string            `json:"transaction_id"`
	Signature         string            `json:"signature,omitempty"`
	SequenceNumber    uint64            `json:"sequence_number,omitempty"`
	CertificateSerial string            `json:"certificate_serial,omitempty"`
	VerificationCode  string            `json:"verification_code,omitempty"`
	BusinessDate      string            `json:"business_date,omitempty"`
	RecordedAt        time.Time         `json:"recorded_at"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

func failedReceipt(code Code, txID, msg string) *Receipt {
	return &Receipt{Code: code, TransactionID: txID, Message: msg}
}

// Metadata keys set on successful receipts.
const (
	MetaDailyGrandTotal      = "daily_grand_total"
	MetaDailyTransactions    = "daily_transaction_count"
	MetaDailyVoidTotal       = "daily_void_total"
	MetaPerpetualGrandTotal  = "perpetual_grand_total"
	MetaPerpetualInclTax     = "perpetual_grand_total_incl_tax"
	MetaPerpetualVoidTotal   = "perpetual_void_total"
	MetaPerpetualVoidCount   = "perpetual_void_count"
	MetaIntegrityHash        = "integrity_hash"
	MetaTransactionTimestamp = "transaction_timestamp"
	MetaRunningTotal         = "running_total"
)

func receiptMetadata(daily, perpetual totals.Totals, e *journal.Entry) map[string]string {
	return map[string]string{
		MetaDailyGrandTotal:      types.Fixed(daily.GrandTotal),
		MetaDailyTransactions:    strconv.FormatInt(daily.AllTransactions(), 10),
		MetaDailyVoidTotal:       types.Fixed(daily.VoidTotal),
		MetaPerpetualGrandTotal:  types.Fixed(perpetual.GrandTotal),
		MetaPerpetualInclTax:     types.Fixed(perpetual.GrandTotalInclTax),
		MetaPerpetualVoidTotal:   types.Fixed(perpetual.VoidTotal),
		MetaPerpetualVoidCount:   strconv.FormatInt(perpetual.VoidCount, 10),
		MetaIntegrityHash:        e.IntegrityHash,
		MetaTransactionTimestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		MetaRunningTotal:         types.Fixed(e.RunningTotal),
	}
}

// VerificationInput is what a verification code may be derived from.
type VerificationInput struct {
	Key           ledger.Key
	Config        ledger.Configuration
	Transaction   *journal.TransactionRecord
	Entry         *journal.Entry
	Daily         totals.Totals
	Perpetual     totals.Totals
	BusinessDate  string
	ReceiptNumber uint64
}

// VerificationCoder renders the printable verification code of a receipt.
type VerificationCoder func(in *VerificationInput) string

// DefaultVerificationCode renders "{transaction};{sequence};{running total};{SIG12}".
func DefaultVerificationCode(in *VerificationInput) string {
	sig := in.Entry.Signature
	if len(sig) > 12 {
		sig = sig[:12]
	}
	return fmt.Sprintf("%s;%d;%s;%s", in.Entry.TransactionID, in.Entry.SequenceNumber,
		types.Fixed(in.Entry.RunningTotal), strings.ToUpper(sig))
}

// CloseSummary is the outcome of PerformDailyClose.
type CloseSummary struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	CloseID             id.DailyCloseID  `json:"close_id"`
	BusinessDate        string           `json:"business_date"`
	EntriesArchived     int              `json:"entries_archived"`
	FirstSequenceNumber uint64           `json:"first_sequence_number,omitempty"`
	LastSequenceNumber  uint64           `json:"last_sequence_number,omitempty"`
	ArchivedTotal       decimal.Decimal  `json:"archived_total"`
	ClosedAt            time.Time        `json:"closed_at"`
	Artifact            *export.Artifact `json:"-"`
}
