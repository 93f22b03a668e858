// Package money converts statement amounts to integer minor units and back
// using go-money and shopspring/decimal. Persisted amounts are always cents.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	EUR = "EUR"
	USD = "USD"
	GBP = "GBP"
	CHF = "CHF"
	JPY = "JPY" // no decimal places
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, normalizeCode(currencyCode))}
}

// NewFromFloat creates Money from a parsed statement amount, rounding half
// away from zero to the currency's minor unit.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// NewFromDecimal creates Money from a decimal.Decimal value.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	code := normalizeCode(currencyCode)
	multiplier := decimal.New(1, int32(fraction(code)))
	return New(amount.Mul(multiplier).Round(0).IntPart(), code)
}

// Cents is a shorthand for NewFromFloat(amount, currency).Amount().
func Cents(amount float64, currencyCode string) int64 {
	return NewFromFloat(amount, currencyCode).Amount()
}

// FromCents converts minor units back to a float amount.
func FromCents(cents int64, currencyCode string) float64 {
	return New(cents, currencyCode).ToFloat64()
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	return m.ToDecimal().StringFixed(int32(fraction(m.Currency())))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}

// ToFloat64 converts to float64 for display and JSON
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// normalizeCode upper-cases a code and falls back to EUR for unknown ones.
func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if money.GetCurrency(code) == nil {
		return EUR
	}
	return code
}

func fraction(code string) int {
	if c := money.GetCurrency(normalizeCode(code)); c != nil {
		return c.Fraction
	}
	return 2
}
