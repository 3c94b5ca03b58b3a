package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Add(t *testing.T) {
	a := NewMoneyFromInt(100000, CurrencyIRR)
	b := NewMoneyFromInt(50000, CurrencyIRR)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Value.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, CurrencyIRR, sum.Currency)

	// Operands are unchanged.
	assert.True(t, a.Value.Equal(decimal.NewFromInt(100000)))
}

func TestMoney_Subtract(t *testing.T) {
	a := NewMoneyFromInt(100000, CurrencyIRR)
	b := NewMoneyFromInt(30000, CurrencyIRR)

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Value.Equal(decimal.NewFromInt(70000)))
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	irr := NewMoneyFromInt(1000, CurrencyIRR)
	usd := NewMoneyFromInt(1000, CurrencyUSD)

	_, err := irr.Add(usd)
	assert.Error(t, err)

	_, err = irr.Subtract(usd)
	assert.Error(t, err)
}

func TestMoney_CanonicalScale(t *testing.T) {
	d := decimal.RequireFromString("10.005")
	m := NewMoney(d, CurrencyUSD)
	assert.Equal(t, "10.01", m.Value.StringFixed(2))
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("2500.50", CurrencyUSD)
	require.NoError(t, err)
	assert.True(t, m.Value.Equal(decimal.RequireFromString("2500.50")))

	_, err = ParseMoney("not-a-number", CurrencyUSD)
	assert.Error(t, err)
}

func TestMoney_Predicates(t *testing.T) {
	tests := []struct {
		name         string
		value        int64
		wantPositive bool
		wantZero     bool
		wantNegative bool
	}{
		{"positive", 100, true, false, false},
		{"zero", 0, false, true, false},
		{"negative", -100, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMoneyFromInt(tt.value, CurrencyIRR)
			assert.Equal(t, tt.wantPositive, m.IsPositive())
			assert.Equal(t, tt.wantZero, m.IsZero())
			assert.Equal(t, tt.wantNegative, m.IsNegative())
		})
	}
}

func TestMoney_Comparison(t *testing.T) {
	a := NewMoneyFromInt(100, CurrencyIRR)
	b := NewMoneyFromInt(200, CurrencyIRR)

	assert.True(t, b.GreaterThanOrEqual(a))
	assert.True(t, a.GreaterThanOrEqual(a))
	assert.True(t, a.LessThan(b))
	assert.False(t, b.LessThan(a))
}
