package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() TransactionSpec {
	return TransactionSpec{
		WalletID:          uuid.New(),
		CurrencyAccountID: uuid.New(),
		UserID:            uuid.New(),
		Amount:            NewMoneyFromInt(50000, CurrencyIRR),
		Direction:         DirectionOut,
		Type:              TypePurchase,
		Description:       "order #42",
	}
}

func TestNewTransaction_Valid(t *testing.T) {
	txn, err := NewTransaction(validSpec())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, txn.Status)
	assert.NotEqual(t, uuid.Nil, txn.ID)
	assert.True(t, strings.HasPrefix(txn.TransactionNumber, "TXN-"))
	assert.Nil(t, txn.ProcessedAt)
}

func TestNewTransaction_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TransactionSpec)
	}{
		{"empty wallet id", func(s *TransactionSpec) { s.WalletID = uuid.Nil }},
		{"empty account id", func(s *TransactionSpec) { s.CurrencyAccountID = uuid.Nil }},
		{"empty user id", func(s *TransactionSpec) { s.UserID = uuid.Nil }},
		{"zero amount", func(s *TransactionSpec) { s.Amount = ZeroMoney(CurrencyIRR) }},
		{"negative amount", func(s *TransactionSpec) { s.Amount = NewMoneyFromInt(-100, CurrencyIRR) }},
		{"empty description", func(s *TransactionSpec) { s.Description = "  " }},
		{"oversized description", func(s *TransactionSpec) { s.Description = strings.Repeat("x", 501) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			_, err := NewTransaction(spec)
			assert.Error(t, err)
		})
	}
}

func TestNewTransaction_DirectionTypeTable(t *testing.T) {
	tests := []struct {
		direction TransactionDirection
		txType    TransactionType
		valid     bool
	}{
		{DirectionIn, TypeDeposit, true},
		{DirectionIn, TypeRefund, true},
		{DirectionIn, TypeTransfer, true},
		{DirectionIn, TypePurchase, false},
		{DirectionIn, TypeFee, false},
		{DirectionIn, TypeWithdrawal, false},
		{DirectionIn, TypeCreditSettlement, false},
		{DirectionOut, TypePurchase, true},
		{DirectionOut, TypeWithdrawal, true},
		{DirectionOut, TypeTransfer, true},
		{DirectionOut, TypeFee, true},
		{DirectionOut, TypeCreditSettlement, true},
		{DirectionOut, TypeDeposit, false},
		{DirectionOut, TypeRefund, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction)+"/"+string(tt.txType), func(t *testing.T) {
			spec := validSpec()
			spec.Direction = tt.direction
			spec.Type = tt.txType
			_, err := NewTransaction(spec)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewTransaction_InboundTransferLeg(t *testing.T) {
	outID := uuid.New()
	spec := validSpec()
	spec.Direction = DirectionIn
	spec.Type = TypeTransfer
	spec.RelatedTransactionID = &outID

	txn, err := NewTransaction(spec)
	require.NoError(t, err)
	assert.Equal(t, DirectionIn, txn.Direction)
	assert.Equal(t, TypeTransfer, txn.Type)
	require.NotNil(t, txn.RelatedTransactionID)
	assert.Equal(t, outID, *txn.RelatedTransactionID)
}

func TestTransaction_MarkAsCompleted(t *testing.T) {
	txn, err := NewTransaction(validSpec())
	require.NoError(t, err)

	txn.MarkAsCompleted()
	assert.Equal(t, StatusCompleted, txn.Status)
	require.NotNil(t, txn.ProcessedAt)

	evts := txn.PullEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, "transaction.completed", evts[0].EventName())

	// Idempotent: completing again emits nothing new.
	txn.MarkAsCompleted()
	assert.Empty(t, txn.PullEvents())
}

func TestTransaction_MarkAsFailed(t *testing.T) {
	txn, err := NewTransaction(validSpec())
	require.NoError(t, err)

	err = txn.MarkAsFailed("gateway timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, txn.Status)
	assert.Contains(t, txn.Description, "Failed: gateway timeout")
}

func TestTransaction_CannotFailCompleted(t *testing.T) {
	txn, err := NewTransaction(validSpec())
	require.NoError(t, err)

	txn.MarkAsCompleted()
	err = txn.MarkAsFailed("too late")
	assert.Error(t, err)
	assert.Equal(t, StatusCompleted, txn.Status)
}

func TestTransaction_IsRefundable(t *testing.T) {
	recent := time.Now().UTC().Add(-24 * time.Hour)
	old := time.Now().UTC().Add(-31 * 24 * time.Hour)

	tests := []struct {
		name        string
		status      TransactionStatus
		direction   TransactionDirection
		txType      TransactionType
		processedAt *time.Time
		want        bool
	}{
		{"completed recent purchase", StatusCompleted, DirectionOut, TypePurchase, &recent, true},
		{"completed recent transfer", StatusCompleted, DirectionOut, TypeTransfer, &recent, true},
		{"pending purchase", StatusPending, DirectionOut, TypePurchase, nil, false},
		{"failed purchase", StatusFailed, DirectionOut, TypePurchase, &recent, false},
		{"inbound deposit", StatusCompleted, DirectionIn, TypeDeposit, &recent, false},
		{"refund itself", StatusCompleted, DirectionIn, TypeRefund, &recent, false},
		{"purchase outside window", StatusCompleted, DirectionOut, TypePurchase, &old, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := &Transaction{
				Status:      tt.status,
				Direction:   tt.direction,
				Type:        tt.txType,
				ProcessedAt: tt.processedAt,
			}
			assert.Equal(t, tt.want, txn.IsRefundable())
		})
	}
}

func TestTransaction_SetPaymentReference(t *testing.T) {
	txn, err := NewTransaction(validSpec())
	require.NoError(t, err)

	require.NoError(t, txn.SetPaymentReference("A0000012345"))
	assert.Equal(t, "A0000012345", txn.PaymentReferenceID)

	assert.Error(t, txn.SetPaymentReference("  "))
}

func TestGenerateTransactionNumber_Unique(t *testing.T) {
	seen := make(map[string]bool)
	now := time.Now().UTC()
	for i := 0; i < 1000; i++ {
		n := GenerateTransactionNumber(now)
		assert.False(t, seen[n], "duplicate transaction number %s", n)
		seen[n] = true
	}
}
