package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, transaction_number, wallet_id, currency_account_id, user_id, amount, currency,
	direction, type, status, description, is_credit, due_date, payment_reference_id,
	related_transaction_id, order_context, transaction_date, processed_at`

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, transaction_number, wallet_id, currency_account_id, user_id,
			amount, currency, direction, type, status, description, is_credit, due_date,
			payment_reference_id, related_transaction_id, order_context, transaction_date, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.TransactionNumber, t.WalletID, t.CurrencyAccountID, t.UserID,
		t.Amount.Value, string(t.Amount.Currency), string(t.Direction), string(t.Type), string(t.Status),
		t.Description, t.IsCredit, t.DueDate, nullableString(t.PaymentReferenceID),
		t.RelatedTransactionID, nullableString(t.OrderContext), t.TransactionDate, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Update persists the mutable lifecycle fields within a database transaction.
// Identity, amount and type never change after creation.
func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, description = $2, payment_reference_id = $3,
			related_transaction_id = $4, processed_at = $5
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		string(t.Status), t.Description, nullableString(t.PaymentReferenceID),
		t.RelatedTransactionID, t.ProcessedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)
	return scanTransactionRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with its row locked.
// This MUST be called within a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1 FOR UPDATE`, transactionColumns)
	return scanTransactionRow(tx.QueryRow(ctx, query, id))
}

// GetByNumber fetches a transaction by its human-readable number.
func (r *TransactionRepo) GetByNumber(ctx context.Context, number string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE transaction_number = $1`, transactionColumns)
	return scanTransactionRow(r.pool.QueryRow(ctx, query, number))
}

// GetByPaymentReference resolves a gateway authority to its transaction.
func (r *TransactionRepo) GetByPaymentReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE payment_reference_id = $1`, transactionColumns)
	return scanTransactionRow(r.pool.QueryRow(ctx, query, reference))
}

// SumCompletedRefunds totals the completed refunds recorded against an
// original transaction. Runs inside the caller's transaction so concurrent
// refunds serialized on the wallet lock see each other's writes.
func (r *TransactionRepo) SumCompletedRefunds(ctx context.Context, tx pgx.Tx, originalTxnID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE related_transaction_id = $1 AND type = 'REFUND' AND status = 'COMPLETED'`

	var total decimal.Decimal
	if err := tx.QueryRow(ctx, query, originalTxnID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum completed refunds: %w", err)
	}
	return total, nil
}

// SumDailyOutflow totals the account's completed outbound transactions for the
// UTC day containing the given time.
func (r *TransactionRepo) SumDailyOutflow(ctx context.Context, accountID uuid.UUID, day time.Time) (decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE currency_account_id = $1 AND direction = 'OUT' AND status = 'COMPLETED'
		AND processed_at >= $2 AND processed_at < $3`

	var total decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, accountID, start, end).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum daily outflow: %w", err)
	}
	return total, nil
}

// List fetches transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("currency_account_id = $%d", argIdx))
		args = append(args, *params.AccountID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_date >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_date <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY transaction_date DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionFields(rows)
		if err != nil {
			return nil, 0, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionFields(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// scanTransactionFields scans one row in transactionColumns order.
func scanTransactionFields(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amount decimal.Decimal
	var currency, direction, txType, status string
	var paymentRef, orderContext *string

	err := row.Scan(
		&t.ID, &t.TransactionNumber, &t.WalletID, &t.CurrencyAccountID, &t.UserID,
		&amount, &currency, &direction, &txType, &status,
		&t.Description, &t.IsCredit, &t.DueDate, &paymentRef,
		&t.RelatedTransactionID, &orderContext, &t.TransactionDate, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Amount = domain.NewMoney(amount, domain.Currency(currency))
	t.Direction = domain.TransactionDirection(direction)
	t.Type = domain.TransactionType(txType)
	t.Status = domain.TransactionStatus(status)
	if paymentRef != nil {
		t.PaymentReferenceID = *paymentRef
	}
	if orderContext != nil {
		t.OrderContext = *orderContext
	}
	return t, nil
}

// nullableString maps empty strings to NULL so partial indexes on the column
// stay small.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
