package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	outbox     ports.EventOutboxRepository
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	policy     domain.WalletPolicy
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	policy domain.WalletPolicy,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		outbox:     outbox,
		transactor: transactor,
		publisher:  publisher,
		policy:     policy,
		log:        log,
	}
}

// CreateWallet creates the single wallet for a user. A second create for the
// same user is rejected.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	existing, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing wallet: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrWalletExists()
	}

	wallet, err := domain.NewWallet(userID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	events := wallet.PullEvents()
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("user_id", userID.String()).
		Msg("wallet created")

	return wallet, nil
}

// GetWallet returns the user's wallet with all attachments loaded.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// CreateCurrencyAccount opens (or returns the existing) account in the given
// currency, enforcing the wallet policy.
func (s *WalletServiceImpl) CreateCurrencyAccount(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.CurrencyAccount, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, userID)
	if err != nil {
		return nil, err
	}

	account, err := wallet.CreateCurrencyAccount(currency, s.policy)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}

	events := wallet.PullEvents()
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	return account, nil
}

// AddBankAccount attaches a bank account to the wallet.
func (s *WalletServiceImpl) AddBankAccount(ctx context.Context, req ports.AddBankAccountRequest) (*domain.BankAccount, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	account, err := wallet.AddBankAccount(req.BankName, req.AccountNumber, req.CardNumber, req.ShabaNumber, req.HolderName, s.policy)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}

	events := wallet.PullEvents()
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("bank_account_id", account.ID.String()).
		Str("bank", account.BankName).
		Msg("bank account added")

	return account, nil
}

// RemoveBankAccount soft-deletes a bank account, promoting a new default if needed.
func (s *WalletServiceImpl) RemoveBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, userID)
	if err != nil {
		return err
	}

	if err := wallet.RemoveBankAccount(bankAccountID); err != nil {
		return err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	return dbTx.Commit(ctx)
}

// VerifyBankAccount marks a bank account verified, making it eligible for withdrawals.
func (s *WalletServiceImpl) VerifyBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, userID)
	if err != nil {
		return err
	}

	var target *domain.BankAccount
	for _, b := range wallet.BankAccounts {
		if b.ID == bankAccountID && !b.IsDeleted {
			target = b
			break
		}
	}
	if target == nil {
		return apperror.ErrNotFound("bank account")
	}
	if err := target.Verify(); err != nil {
		return err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	return dbTx.Commit(ctx)
}

// AssignCredit grants a credit line to the wallet.
func (s *WalletServiceImpl) AssignCredit(ctx context.Context, req ports.AssignCreditRequest) (*domain.Credit, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Credit line"
	}
	credit, err := wallet.AssignCredit(req.CreditLimit, req.DueDate, description)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}

	events := wallet.PullEvents()
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("credit_id", credit.ID.String()).
		Str("limit", credit.CreditLimit.String()).
		Msg("credit line assigned")

	return credit, nil
}

// SettleCredit pays the used portion of the active credit line from the
// wallet's balance in the credit currency, then closes the line.
func (s *WalletServiceImpl) SettleCredit(ctx context.Context, userID uuid.UUID) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWalletByUser(ctx, dbTx, userID)
	if err != nil {
		return nil, err
	}

	credit := wallet.GetActiveCredit()
	if credit == nil {
		// An overdue line can still be settled.
		for _, c := range wallet.Credits {
			if c.Status == domain.CreditStatusOverdue && !c.IsDeleted {
				credit = c
				break
			}
		}
	}
	if credit == nil {
		return nil, apperror.ErrNotFound("credit line")
	}

	if !credit.UsedCredit.IsPositive() {
		if err := credit.Settle(uuid.Nil); err != nil {
			return nil, err
		}
		if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
		}
		return nil, nil
	}

	account := wallet.GetCurrencyAccount(credit.UsedCredit.Currency)
	if account == nil {
		return nil, apperror.ErrNotFound("currency account")
	}

	txn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:          wallet.ID,
		CurrencyAccountID: account.ID,
		UserID:            wallet.UserID,
		Amount:            credit.UsedCredit,
		Direction:         domain.DirectionOut,
		Type:              domain.TypeCreditSettlement,
		Description:       "Settlement of credit line " + credit.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	if err := account.ProcessPurchase(txn); err != nil {
		return nil, err
	}
	if err := credit.Settle(txn.ID); err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	events := append(wallet.PullEvents(), txn.PullEvents()...)
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("credit_id", credit.ID.String()).
		Str("amount", txn.Amount.String()).
		Msg("credit line settled")

	return txn, nil
}

// ListTransactions returns the wallet's transaction history, filtered and paginated.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, 0, apperror.ErrNotFound("wallet")
	}

	params.WalletID = wallet.ID
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	return s.txRepo.List(ctx, params)
}

func (s *WalletServiceImpl) lockWalletByUser(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}
