// Package ledger defines the double-entry output model: amounts, postings and
// entries rendered in the plain-text ledger directive grammar. Entries are the
// atomic unit handed to the caller; every transaction entry must balance to
// zero across the currencies it touches.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount pairs a decimal value with a currency or commodity symbol.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// NewAmount creates an amount from a decimal value and currency.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value, Currency: currency}
}

// NewAmountFloat creates an amount from a float64. Intended for tests and
// statement values that arrive as floats; prefer NewAmount with an exact
// decimal elsewhere.
func NewAmountFloat(value float64, currency string) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount {
	return Amount{Value: a.Value.Neg(), Currency: a.Currency}
}

// IsZero reports whether the value is exactly zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// Equal reports exact equality of value and currency.
func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Value.Equal(b.Value)
}

// String renders the amount in directive grammar order: "-37.45 USD".
// Cash-like values are padded to two decimal places; values with more
// precision (unit prices, share counts) keep their precision.
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", FormatValue(a.Value), a.Currency)
}

// FormatValue renders a decimal with a minimum of two decimal places.
func FormatValue(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}
