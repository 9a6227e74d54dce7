// Package journal defines the inbound transaction record and the immutable,
// chained journal entry the ledger writes for it.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/types"
)

// TransactionType classifies a recorded transaction.
type TransactionType string

const (
	TypeSale         TransactionType = "sale"
	TypeRefund       TransactionType = "refund"
	TypeVoid         TransactionType = "void"
	TypeCancellation TransactionType = "cancellation"
	TypeTraining     TransactionType = "training"
	TypeNoSale       TransactionType = "no_sale"
)

// IsVoid reports whether the type is tracked in the void counters.
func (t TransactionType) IsVoid() bool {
	return t == TypeVoid || t == TypeCancellation
}

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeSale, TypeRefund, TypeVoid, TypeCancellation, TypeTraining, TypeNoSale:
		return true
	}
	return false
}

// TransactionRecord is handed over by the order/payment pipeline once an
// order is completed.
type TransactionRecord struct {
	ID                 string          `json:"transaction_id"`
	SiteID             string          `json:"site_id"`
	Timestamp          time.Time       `json:"timestamp"`
	Type               TransactionType `json:"type"`
	GrossAmount        decimal.Decimal `json:"gross_amount"`
	TaxRateAmounts     types.Breakdown `json:"tax_rate_amounts,omitempty"`
	PaymentTypeAmounts types.Breakdown `json:"payment_type_amounts,omitempty"`
	SourceReference    string          `json:"source_reference,omitempty"`
	OperatorID         string          `json:"operator_id,omitempty"`
}

// Validate checks the structural requirements shared by every country.
func (tx *TransactionRecord) Validate() error {
	var problems []string
	if strings.TrimSpace(tx.ID) == "" {
		problems = append(problems, "transaction id is required")
	}
	if tx.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}
	if !tx.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown transaction type %q", tx.Type))
	}
	if !tx.GrossAmount.Equal(tx.GrossAmount.Round(types.Scale)) {
		problems = append(problems, "gross amount has more than two decimal places")
	}
	// Only voids may arrive signed; everything else must keep the grand
	// total non-decreasing.
	if tx.GrossAmount.IsNegative() && !tx.Type.IsVoid() {
		problems = append(problems, fmt.Sprintf("negative gross amount not allowed for %s", tx.Type))
	}
	if len(problems) > 0 {
		return fmt.Errorf("journal: invalid transaction: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Magnitude is the absolute gross amount. Voids are accounted by magnitude.
func (tx *TransactionRecord) Magnitude() decimal.Decimal {
	return tx.GrossAmount.Abs()
}
