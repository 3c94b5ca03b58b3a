package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wallet-ledger-engine/internal/core/domain"
)

func TestTransferFeeSchedule_FeeFor(t *testing.T) {
	// 0.5% clamped to [1000, 50000].
	fees := NewTransferFeeSchedule(0.5, 1000, 50000)

	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{"small amount hits minimum", 10000, 1000},
		{"exactly at minimum boundary", 200000, 1000},
		{"percentage in range", 1000000, 5000},
		{"exactly at maximum boundary", 10000000, 50000},
		{"large amount hits maximum", 100000000, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := fees.FeeFor(domain.NewMoneyFromInt(tt.amount, domain.CurrencyIRR))
			assert.True(t, fee.Value.Equal(decimal.NewFromInt(tt.want)),
				"amount %d: want fee %d, got %s", tt.amount, tt.want, fee.Value)
			assert.Equal(t, domain.CurrencyIRR, fee.Currency)
		})
	}
}
