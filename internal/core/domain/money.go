package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wallet-ledger-engine/pkg/apperror"
)

// Currency is an ISO-4217 style currency code.
type Currency string

const (
	CurrencyIRR Currency = "IRR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// moneyScale is the canonical precision for all stored amounts.
const moneyScale = 2

// Money is an immutable amount + currency pair. All arithmetic requires
// identical currencies and keeps the canonical scale.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

// NewMoney creates a Money value at the canonical scale.
func NewMoney(value decimal.Decimal, currency Currency) Money {
	return Money{Value: value.Round(moneyScale), Currency: currency}
}

// NewMoneyFromInt creates a Money value from a whole-unit integer amount.
func NewMoneyFromInt(value int64, currency Currency) Money {
	return NewMoney(decimal.NewFromInt(value), currency)
}

// ParseMoney parses a decimal string into a Money value.
func ParseMoney(s string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, apperror.Validation(fmt.Sprintf("invalid amount %q", s))
	}
	return NewMoney(d, currency), nil
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// Add returns m + other. Fails if currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperror.ErrCurrencyMismatch(string(m.Currency), string(other.Currency))
	}
	return NewMoney(m.Value.Add(other.Value), m.Currency), nil
}

// Subtract returns m - other. Fails if currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, apperror.ErrCurrencyMismatch(string(m.Currency), string(other.Currency))
	}
	return NewMoney(m.Value.Sub(other.Value), m.Currency), nil
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Value.IsPositive()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Value.IsZero()
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m.Value.IsNegative()
}

// GreaterThanOrEqual compares amounts. Callers must have verified the
// currencies match; comparison ignores the currency field.
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.Value.GreaterThanOrEqual(other.Value)
}

// LessThan compares amounts. Same currency caveat as GreaterThanOrEqual.
func (m Money) LessThan(other Money) bool {
	return m.Value.LessThan(other.Value)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Value.StringFixed(moneyScale), m.Currency)
}
