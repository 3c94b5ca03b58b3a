package ports

import (
	"context"
	"time"

	"wallet-ledger-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for the wallet aggregate.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; the ForUpdate variants lock the wallet row until commit.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	// Save persists the aggregate's mutated state: the wallet row plus any
	// changed currency accounts, bank accounts and credit lines.
	Save(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// TransactionRepository defines persistence operations for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	Update(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByNumber(ctx context.Context, number string) (*domain.Transaction, error)
	// GetByPaymentReference resolves a gateway authority back to its pending
	// transaction during callback reconciliation.
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// SumCompletedRefunds returns the total already refunded against the
	// original transaction, used to enforce the cumulative refund cap.
	SumCompletedRefunds(ctx context.Context, tx pgx.Tx, originalTxnID uuid.UUID) (decimal.Decimal, error)
	// SumDailyOutflow returns the sum of completed outbound transactions for
	// the account on the given UTC day, used for daily limit checks.
	SumDailyOutflow(ctx context.Context, accountID uuid.UUID, day time.Time) (decimal.Decimal, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID  uuid.UUID
	AccountID *uuid.UUID
	Status    *domain.TransactionStatus
	Type      *domain.TransactionType
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// EventOutboxRepository appends domain events to the outbox table inside the
// same transaction as the state change that produced them.
type EventOutboxRepository interface {
	Append(ctx context.Context, tx pgx.Tx, events []domain.Event) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
