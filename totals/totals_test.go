package totals_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/totals"
	"github.com/xraph/fiscal/types"
)

var at = time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)

func tx(typ journal.TransactionType, amount string) *journal.TransactionRecord {
	a := types.MustAmount(amount)
	return &journal.TransactionRecord{
		ID:                 "tx",
		Timestamp:          at,
		Type:               typ,
		GrossAmount:        a,
		TaxRateAmounts:     types.Breakdown{"20": a},
		PaymentTypeAmounts: types.Breakdown{"cash": a},
	}
}

func TestApplySales(t *testing.T) {
	tot := totals.New()
	for _, amt := range []string{"10.00", "20.00", "30.00"} {
		tot = totals.Apply(tot, tx(journal.TypeSale, amt))
	}

	assert.Equal(t, "60.00", types.Fixed(tot.GrandTotal))
	assert.Equal(t, "60.00", types.Fixed(tot.GrandTotalInclTax))
	assert.Equal(t, int64(3), tot.TransactionCount)
	assert.Equal(t, int64(0), tot.VoidCount)
	assert.Equal(t, "60.00", types.Fixed(tot.TotalsByTaxRate["20"]))
	assert.Equal(t, "60.00", types.Fixed(tot.TotalsByPaymentType["cash"]))
	require.NotNil(t, tot.LastTransactionAt)
	assert.True(t, tot.LastTransactionAt.Equal(at))
}

func TestApplyVoidIsAdditive(t *testing.T) {
	tot := totals.Apply(totals.New(), tx(journal.TypeSale, "50.00"))
	tot = totals.Apply(tot, tx(journal.TypeVoid, "-15.00"))

	assert.Equal(t, int64(1), tot.VoidCount)
	assert.Equal(t, "15.00", types.Fixed(tot.VoidTotal))
	assert.Equal(t, "65.00", types.Fixed(tot.GrandTotal))
	assert.Equal(t, int64(1), tot.TransactionCount)
	assert.Equal(t, "65.00", types.Fixed(tot.TotalsByTaxRate["20"]))
	assert.Equal(t, int64(2), tot.AllTransactions())
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	before := totals.Apply(totals.New(), tx(journal.TypeSale, "5"))
	_ = totals.Apply(before, tx(journal.TypeSale, "7"))

	assert.Equal(t, "5.00", types.Fixed(before.GrandTotal))
	assert.Equal(t, "5.00", types.Fixed(before.TotalsByTaxRate["20"]))
}

func TestApplyInsertsNewCategories(t *testing.T) {
	first := tx(journal.TypeSale, "10")
	second := tx(journal.TypeSale, "4")
	second.TaxRateAmounts = types.Breakdown{"7": types.MustAmount("4")}
	second.PaymentTypeAmounts = types.Breakdown{"card": types.MustAmount("4")}

	tot := totals.Apply(totals.Apply(totals.New(), first), second)
	assert.Equal(t, []string{"20", "7"}, tot.TotalsByTaxRate.Keys())
	assert.Equal(t, []string{"card", "cash"}, tot.TotalsByPaymentType.Keys())
}

func TestGrandTotalNeverDecreases(t *testing.T) {
	tot := totals.New()
	prev := tot.GrandTotal
	seq := []struct {
		typ journal.TransactionType
		amt string
	}{
		{journal.TypeSale, "12.30"},
		{journal.TypeVoid, "-12.30"},
		{journal.TypeRefund, "4.00"},
		{journal.TypeCancellation, "2.00"},
		{journal.TypeSale, "0.00"},
	}
	for _, s := range seq {
		tot = totals.Apply(tot, tx(s.typ, s.amt))
		assert.True(t, tot.GrandTotal.GreaterThanOrEqual(prev), "grand total decreased after %s", s.typ)
		prev = tot.GrandTotal
	}
	assert.Equal(t, "30.60", types.Fixed(tot.GrandTotal))
}

func TestResetDaily(t *testing.T) {
	perp := totals.Apply(totals.New(), tx(journal.TypeSale, "10"))
	perp.SequenceNumber = 42
	perp.LastSignature = "abc"

	daily := totals.ResetDaily(perp)
	assert.True(t, daily.IsZero())
	assert.Equal(t, uint64(42), daily.SequenceNumber)
	assert.Equal(t, "abc", daily.LastSignature)
	assert.Empty(t, daily.TotalsByTaxRate)
	assert.Nil(t, daily.LastTransactionAt)

	// The perpetual instance is untouched.
	assert.Equal(t, "10.00", types.Fixed(perp.GrandTotal))
}

func TestStrings(t *testing.T) {
	tot := totals.Apply(totals.New(), tx(journal.TypeSale, "9.9"))
	s := tot.Strings()
	assert.Equal(t, "9.90", s["grand_total"])
	assert.Equal(t, "0.00", s["void_total"])
}
