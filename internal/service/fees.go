package service

import (
	"github.com/shopspring/decimal"

	"wallet-ledger-engine/internal/core/domain"
)

// TransferFeeSchedule computes transfer fees: a percentage of the amount
// clamped between a minimum and maximum absolute fee.
type TransferFeeSchedule struct {
	percent decimal.Decimal
	min     decimal.Decimal
	max     decimal.Decimal
}

// NewTransferFeeSchedule builds a fee schedule from configuration values.
// percent is expressed as a percentage, e.g. 0.5 for half a percent.
func NewTransferFeeSchedule(percent float64, min, max int64) TransferFeeSchedule {
	return TransferFeeSchedule{
		percent: decimal.NewFromFloat(percent),
		min:     decimal.NewFromInt(min),
		max:     decimal.NewFromInt(max),
	}
}

// FeeFor returns the fee charged to the sender for transferring amount.
func (f TransferFeeSchedule) FeeFor(amount domain.Money) domain.Money {
	fee := amount.Value.Mul(f.percent).Div(decimal.NewFromInt(100))
	if fee.LessThan(f.min) {
		fee = f.min
	}
	if fee.GreaterThan(f.max) {
		fee = f.max
	}
	return domain.NewMoney(fee, amount.Currency)
}
