package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(walletID, accountID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Transaction{
		ID:                uuid.New(),
		TransactionNumber: "TXN-20260830-ABCDEF1234",
		WalletID:          walletID,
		CurrencyAccountID: accountID,
		UserID:            uuid.New(),
		Amount:            domain.NewMoneyFromInt(100000, domain.CurrencyIRR),
		Direction:         domain.DirectionOut,
		Type:              domain.TypePurchase,
		Status:            domain.StatusCompleted,
		Description:       "order #42",
		TransactionDate:   now,
		ProcessedAt:       &now,
	}
}

func txColumns() []string {
	return []string{"id", "transaction_number", "wallet_id", "currency_account_id", "user_id",
		"amount", "currency", "direction", "type", "status", "description", "is_credit",
		"due_date", "payment_reference_id", "related_transaction_id", "order_context",
		"transaction_date", "processed_at"}
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	var paymentRef, orderContext *string
	if t.PaymentReferenceID != "" {
		paymentRef = &t.PaymentReferenceID
	}
	if t.OrderContext != "" {
		orderContext = &t.OrderContext
	}
	return pgxmock.NewRows(txColumns()).AddRow(
		t.ID, t.TransactionNumber, t.WalletID, t.CurrencyAccountID, t.UserID,
		t.Amount.Value, string(t.Amount.Currency), string(t.Direction), string(t.Type), string(t.Status),
		t.Description, t.IsCredit, t.DueDate, paymentRef, t.RelatedTransactionID, orderContext,
		t.TransactionDate, t.ProcessedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.TransactionNumber, txn.WalletID, txn.CurrencyAccountID, txn.UserID,
			txn.Amount.Value, string(txn.Amount.Currency), string(txn.Direction), string(txn.Type), string(txn.Status),
			txn.Description, txn.IsCredit, txn.DueDate, (*string)(nil), txn.RelatedTransactionID,
			(*string)(nil), txn.TransactionDate, txn.ProcessedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())
	txn.PaymentReferenceID = "A000012345"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(string(txn.Status), txn.Description, &txn.PaymentReferenceID,
			txn.RelatedTransactionID, txn.ProcessedAt, txn.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, txn.TransactionNumber, result.TransactionNumber)
	assert.True(t, result.Amount.Value.Equal(txn.Amount.Value))
	assert.Equal(t, domain.CurrencyIRR, result.Amount.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByPaymentReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())
	txn.PaymentReferenceID = "A000012345"

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE payment_reference_id").
		WithArgs("A000012345").
		WillReturnRows(txRow(txn))

	result, err := repo.GetByPaymentReference(context.Background(), "A000012345")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "A000012345", result.PaymentReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumCompletedRefunds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	origID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(origID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.NewFromInt(25000)))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	total, err := repo.SumCompletedRefunds(context.Background(), dbTx, origID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(25000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumDailyOutflow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	accountID := uuid.New()
	day := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)
	start := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(accountID, start, start.Add(24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.NewFromInt(70000)))

	total, err := repo.SumDailyOutflow(context.Background(), accountID, day)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(70000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txn := newTestTransaction(walletID, uuid.New())

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id").
		WithArgs(walletID, 20, 0).
		WillReturnRows(txRow(txn))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_StatusFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	status := domain.StatusCompleted

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID, string(status)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ AND status").
		WithArgs(walletID, string(status), 10, 0).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Status:   &status,
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, txns)
	assert.NoError(t, mock.ExpectationsWereMet())
}
