package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository. A wallet is stored across four
// tables (wallets, currency_accounts, bank_accounts, credits) and always loaded
// as a whole aggregate.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, user_id, is_active, is_deleted, created_at, updated_at`

// Create inserts the wallet row within a database transaction. Child rows are
// written by Save as the aggregate grows.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.IsActive, w.IsDeleted, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet aggregate by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE id = $1 AND is_deleted = FALSE`, walletColumns)
	return r.fetchAggregate(ctx, r.pool, query, id)
}

// GetByUserID fetches a user's wallet aggregate (without locking).
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND is_deleted = FALSE`, walletColumns)
	return r.fetchAggregate(ctx, r.pool, query, userID)
}

// GetByIDForUpdate fetches a wallet aggregate with the wallet row locked.
// This MUST be called within a transaction. Child rows are serialized through
// the wallet row lock and need no locks of their own.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`, walletColumns)
	return r.fetchAggregate(ctx, tx, query, id)
}

// GetByUserIDForUpdate fetches a user's wallet aggregate with the wallet row
// locked. This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1 AND is_deleted = FALSE FOR UPDATE`, walletColumns)
	return r.fetchAggregate(ctx, tx, query, userID)
}

// Save writes the wallet row and upserts every child row within a database
// transaction. Soft-deleted children are written too; they carry state.
func (r *WalletRepo) Save(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET is_active = $1, is_deleted = $2, updated_at = $3 WHERE id = $4`
	tag, err := tx.Exec(ctx, query, w.IsActive, w.IsDeleted, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}

	for _, a := range w.CurrencyAccounts {
		if err := r.upsertCurrencyAccount(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, b := range w.BankAccounts {
		if err := r.upsertBankAccount(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, c := range w.Credits {
		if err := r.upsertCredit(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *WalletRepo) upsertCurrencyAccount(ctx context.Context, tx pgx.Tx, a *domain.CurrencyAccount) error {
	query := `INSERT INTO currency_accounts (id, wallet_id, user_id, currency, balance, is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			is_active = EXCLUDED.is_active,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		a.ID, a.WalletID, a.UserID, string(a.Currency), a.Balance.Value,
		a.IsActive, a.IsDeleted, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert currency account: %w", err)
	}
	return nil
}

func (r *WalletRepo) upsertBankAccount(ctx context.Context, tx pgx.Tx, b *domain.BankAccount) error {
	query := `INSERT INTO bank_accounts (id, wallet_id, bank_name, account_number, card_number, shaba_number,
			holder_name, is_verified, is_default, is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			is_verified = EXCLUDED.is_verified,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		b.ID, b.WalletID, b.BankName, b.AccountNumber, b.CardNumber, b.ShabaNumber,
		b.AccountHolderName, b.IsVerified, b.IsDefault, b.IsActive, b.IsDeleted,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bank account: %w", err)
	}
	return nil
}

func (r *WalletRepo) upsertCredit(ctx context.Context, tx pgx.Tx, c *domain.Credit) error {
	query := `INSERT INTO credits (id, wallet_id, credit_limit, used_credit, currency, granted_date, due_date,
			settled_date, status, description, settlement_transaction_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			used_credit = EXCLUDED.used_credit,
			settled_date = EXCLUDED.settled_date,
			status = EXCLUDED.status,
			settlement_transaction_id = EXCLUDED.settlement_transaction_id,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at`

	_, err := tx.Exec(ctx, query,
		c.ID, c.WalletID, c.CreditLimit.Value, c.UsedCredit.Value, string(c.CreditLimit.Currency),
		c.GrantedDate, c.DueDate, c.SettledDate, string(c.Status), c.Description,
		c.SettlementTransactionID, c.IsDeleted, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert credit: %w", err)
	}
	return nil
}

func (r *WalletRepo) fetchAggregate(ctx context.Context, q querier, query string, arg any) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := q.QueryRow(ctx, query, arg).Scan(
		&w.ID, &w.UserID, &w.IsActive, &w.IsDeleted, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if err := r.loadChildren(ctx, q, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WalletRepo) loadChildren(ctx context.Context, q querier, w *domain.Wallet) error {
	if err := r.loadCurrencyAccounts(ctx, q, w); err != nil {
		return err
	}
	if err := r.loadBankAccounts(ctx, q, w); err != nil {
		return err
	}
	return r.loadCredits(ctx, q, w)
}

func (r *WalletRepo) loadCurrencyAccounts(ctx context.Context, q querier, w *domain.Wallet) error {
	query := `SELECT id, wallet_id, user_id, currency, balance, is_active, is_deleted, created_at, updated_at
		FROM currency_accounts WHERE wallet_id = $1 ORDER BY created_at`

	rows, err := q.Query(ctx, query, w.ID)
	if err != nil {
		return fmt.Errorf("load currency accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &domain.CurrencyAccount{}
		var currency string
		var balance decimal.Decimal
		err := rows.Scan(
			&a.ID, &a.WalletID, &a.UserID, &currency, &balance,
			&a.IsActive, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan currency account: %w", err)
		}
		a.Currency = domain.Currency(currency)
		a.Balance = domain.NewMoney(balance, a.Currency)
		w.CurrencyAccounts = append(w.CurrencyAccounts, a)
	}
	return rows.Err()
}

func (r *WalletRepo) loadBankAccounts(ctx context.Context, q querier, w *domain.Wallet) error {
	query := `SELECT id, wallet_id, bank_name, account_number, card_number, shaba_number,
			holder_name, is_verified, is_default, is_active, is_deleted, created_at, updated_at
		FROM bank_accounts WHERE wallet_id = $1 ORDER BY created_at`

	rows, err := q.Query(ctx, query, w.ID)
	if err != nil {
		return fmt.Errorf("load bank accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b := &domain.BankAccount{}
		err := rows.Scan(
			&b.ID, &b.WalletID, &b.BankName, &b.AccountNumber, &b.CardNumber, &b.ShabaNumber,
			&b.AccountHolderName, &b.IsVerified, &b.IsDefault, &b.IsActive, &b.IsDeleted,
			&b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan bank account: %w", err)
		}
		w.BankAccounts = append(w.BankAccounts, b)
	}
	return rows.Err()
}

func (r *WalletRepo) loadCredits(ctx context.Context, q querier, w *domain.Wallet) error {
	query := `SELECT id, wallet_id, credit_limit, used_credit, currency, granted_date, due_date,
			settled_date, status, description, settlement_transaction_id, is_deleted, created_at, updated_at
		FROM credits WHERE wallet_id = $1 ORDER BY created_at`

	rows, err := q.Query(ctx, query, w.ID)
	if err != nil {
		return fmt.Errorf("load credits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &domain.Credit{}
		var currency, status string
		var limit, used decimal.Decimal
		err := rows.Scan(
			&c.ID, &c.WalletID, &limit, &used, &currency, &c.GrantedDate, &c.DueDate,
			&c.SettledDate, &status, &c.Description, &c.SettlementTransactionID,
			&c.IsDeleted, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan credit: %w", err)
		}
		cur := domain.Currency(currency)
		c.CreditLimit = domain.NewMoney(limit, cur)
		c.UsedCredit = domain.NewMoney(used, cur)
		c.Status = domain.CreditStatus(status)
		w.Credits = append(w.Credits, c)
	}
	return rows.Err()
}
