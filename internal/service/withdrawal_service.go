package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
)

// WithdrawalServiceImpl implements ports.WithdrawalService. Withdrawals debit
// the wallet immediately; the actual bank payout is handled downstream off the
// withdrawal transaction.
type WithdrawalServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	outbox     ports.EventOutboxRepository
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	dailyLimit decimal.Decimal
	log        zerolog.Logger
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	dailyLimit int64,
	log zerolog.Logger,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		outbox:     outbox,
		transactor: transactor,
		publisher:  publisher,
		dailyLimit: decimal.NewFromInt(dailyLimit),
		log:        log,
	}
}

// RequestWithdrawal debits the wallet for payout to a verified bank account.
func (s *WithdrawalServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	var bankAccount *domain.BankAccount
	if req.BankAccountID != nil {
		for _, b := range wallet.BankAccounts {
			if b.ID == *req.BankAccountID && !b.IsDeleted {
				bankAccount = b
				break
			}
		}
	} else {
		bankAccount = wallet.DefaultBankAccount()
	}
	if bankAccount == nil {
		return nil, apperror.ErrNotFound("bank account")
	}
	if !bankAccount.IsActive || !bankAccount.IsVerified {
		return nil, apperror.ErrBankAccountNotVerified()
	}

	account := wallet.GetCurrencyAccount(req.Amount.Currency)
	if account == nil {
		return nil, apperror.ErrNotFound("currency account")
	}

	if !s.dailyLimit.IsZero() {
		spent, err := s.txRepo.SumDailyOutflow(ctx, account.ID, time.Now().UTC())
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum daily outflow: %w", err))
		}
		if spent.Add(req.Amount.Value).GreaterThan(s.dailyLimit) {
			return nil, apperror.ErrDailyLimitExceeded()
		}
	}

	description := req.Description
	if description == "" {
		description = "Withdrawal to " + bankAccount.MaskedAccountNumber()
	}
	txn, err := account.CreateWithdrawalTransaction(req.Amount, description)
	if err != nil {
		return nil, err
	}
	if err := account.ProcessPurchase(txn); err != nil {
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
		Str("tx_number", txn.TransactionNumber).
		Str("bank_account", bankAccount.MaskedAccountNumber()).
		Str("amount", txn.Amount.String()).
		Msg("withdrawal requested")

	return txn, nil
}
