// Package types provides common types used across the fiscal ledger.
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every fiscal amount is rendered with.
const Scale = 2

// Fixed renders an amount with exactly two decimal places ("10.00", "-3.50").
// This is the canonical form used in signatures, receipts and exports.
func Fixed(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// ParseAmount parses a decimal string. Binary floating point never enters
// the ledger: callers hand amounts over as strings or decimal values.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	return d, nil
}

// MustAmount is like ParseAmount but panics on error. Use for literals.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Display returns a human-readable amount with currency symbol.
// Examples: "€49.00", "PLN 12.30"
func Display(d decimal.Decimal, currency string) string {
	return currencySymbol(currency) + Fixed(d)
}

// Breakdown maps a category key (tax rate, payment type) to an amount.
type Breakdown map[string]decimal.Decimal

// Add increases the amount under key, inserting it if absent.
func (b Breakdown) Add(key string, amount decimal.Decimal) {
	if cur, ok := b[key]; ok {
		b[key] = cur.Add(amount)
		return
	}
	b[key] = amount
}

// Clone returns an independent copy. A nil breakdown clones to an empty one.
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Total sums every amount in the breakdown.
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	return total
}

// Keys returns the category keys in sorted order.
func (b Breakdown) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strings renders every amount with Fixed.
func (b Breakdown) Strings() map[string]string {
	out := make(map[string]string, len(b))
	for k, v := range b {
		out[k] = Fixed(v)
	}
	return out
}

// Equal reports whether both breakdowns hold the same keys and amounts.
func (b Breakdown) Equal(other Breakdown) bool {
	if len(b) != len(other) {
		return false
	}
	for k, v := range b {
		o, ok := other[k]
		if !ok || !o.Equal(v) {
			return false
		}
	}
	return true
}

// Sum calculates the sum of multiple amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"eur": "€",
		"usd": "$",
		"gbp": "£",
		"chf": "CHF ",
		"pln": "zł ",
		"czk": "Kč ",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	if currency == "" {
		return ""
	}
	return strings.ToUpper(currency) + " "
}
