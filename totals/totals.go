// Package totals maintains the cumulative daily and perpetual fiscal totals.
//
// Every transaction, voids included, adds to the grand totals: the perpetual
// grand total is an append-only trail and never decreases. Voids are counted
// separately in VoidCount and VoidTotal.
package totals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/types"
)

// Totals is one cumulative totals instance (daily or perpetual).
type Totals struct {
	SequenceNumber      uint64          `json:"sequence_number"`
	GrandTotal          decimal.Decimal `json:"grand_total"`
	GrandTotalInclTax   decimal.Decimal `json:"grand_total_incl_tax"`
	TotalsByTaxRate     types.Breakdown `json:"totals_by_tax_rate"`
	TotalsByPaymentType types.Breakdown `json:"totals_by_payment_type"`
	TransactionCount    int64           `json:"transaction_count"`
	VoidCount           int64           `json:"void_count"`
	VoidTotal           decimal.Decimal `json:"void_total"`
	LastTransactionAt   *time.Time      `json:"last_transaction_at,omitempty"`
	LastSignature       string          `json:"last_signature,omitempty"`
}

// New returns empty totals.
func New() Totals {
	return Totals{
		TotalsByTaxRate:     types.Breakdown{},
		TotalsByPaymentType: types.Breakdown{},
	}
}

// Apply returns t updated with tx. t itself is not modified.
//
// Non-void transactions add the gross amount to both grand totals, bump
// TransactionCount and merge the tax-rate and payment-type breakdowns.
// Voids bump VoidCount, add the absolute amount to VoidTotal, and still add
// the absolute amount to both grand totals and breakdowns.
func Apply(t Totals, tx *journal.TransactionRecord) Totals {
	out := t.Clone()

	amount := tx.GrossAmount
	if tx.Type.IsVoid() {
		amount = tx.Magnitude()
		out.VoidCount++
		out.VoidTotal = out.VoidTotal.Add(amount)
	} else {
		out.TransactionCount++
	}

	out.GrandTotal = out.GrandTotal.Add(amount)
	out.GrandTotalInclTax = out.GrandTotalInclTax.Add(amount)

	for _, k := range tx.TaxRateAmounts.Keys() {
		v := tx.TaxRateAmounts[k]
		if tx.Type.IsVoid() {
			v = v.Abs()
		}
		out.TotalsByTaxRate.Add(k, v)
	}
	for _, k := range tx.PaymentTypeAmounts.Keys() {
		v := tx.PaymentTypeAmounts[k]
		if tx.Type.IsVoid() {
			v = v.Abs()
		}
		out.TotalsByPaymentType.Add(k, v)
	}

	at := tx.Timestamp
	out.LastTransactionAt = &at
	return out
}

// Clone returns a deep copy.
func (t Totals) Clone() Totals {
	out := t
	out.TotalsByTaxRate = t.TotalsByTaxRate.Clone()
	out.TotalsByPaymentType = t.TotalsByPaymentType.Clone()
	if t.LastTransactionAt != nil {
		at := *t.LastTransactionAt
		out.LastTransactionAt = &at
	}
	return out
}

// ResetDaily returns empty daily totals that continue the chain and sequence
// of the perpetual totals.
func ResetDaily(perpetual Totals) Totals {
	out := New()
	out.SequenceNumber = perpetual.SequenceNumber
	out.LastSignature = perpetual.LastSignature
	return out
}

// IsZero reports whether no monetary activity has been accumulated.
func (t Totals) IsZero() bool {
	return t.TransactionCount == 0 && t.VoidCount == 0 && t.GrandTotal.IsZero()
}

// AllTransactions is TransactionCount plus VoidCount.
func (t Totals) AllTransactions() int64 {
	return t.TransactionCount + t.VoidCount
}

// Strings renders the running totals for receipts and summaries.
func (t Totals) Strings() map[string]string {
	return map[string]string{
		"grand_total":          types.Fixed(t.GrandTotal),
		"grand_total_incl_tax": types.Fixed(t.GrandTotalInclTax),
		"void_total":           types.Fixed(t.VoidTotal),
	}
}
