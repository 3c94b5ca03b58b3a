package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
)

// RefundServiceImpl implements ports.RefundService. Partial refunds are
// allowed; the sum of all completed refunds against an original transaction
// can never exceed its amount.
type RefundServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	outbox     ports.EventOutboxRepository
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	log        zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		outbox:     outbox,
		transactor: transactor,
		publisher:  publisher,
		log:        log,
	}
}

// Refund reverses a completed outbound transaction, fully or partially.
func (s *RefundServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (*domain.Transaction, error) {
	origTxn, err := s.txRepo.GetByID(ctx, req.OriginalTransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find original transaction: %w", err))
	}
	if origTxn == nil {
		return nil, apperror.ErrNotFound("original transaction")
	}
	if origTxn.UserID != req.UserID {
		return nil, apperror.ErrForbidden()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, origTxn.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	// Re-read under the lock so concurrent refunds serialize on the wallet row.
	origTxn, err = s.txRepo.GetByIDForUpdate(ctx, dbTx, origTxn.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock original transaction: %w", err))
	}
	if !origTxn.IsRefundable() {
		return nil, apperror.ErrNotRefundable()
	}

	refundedSoFar, err := s.txRepo.SumCompletedRefunds(ctx, dbTx, origTxn.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum completed refunds: %w", err))
	}
	remaining := origTxn.Amount.Value.Sub(refundedSoFar)

	refundAmount := domain.NewMoney(remaining, origTxn.Amount.Currency)
	if req.Amount != nil {
		if req.Amount.Currency != origTxn.Amount.Currency {
			return nil, apperror.ErrCurrencyMismatch(string(origTxn.Amount.Currency), string(req.Amount.Currency))
		}
		if !req.Amount.IsPositive() {
			return nil, apperror.ErrInvalidAmount()
		}
		refundAmount = *req.Amount
	}
	if refundAmount.Value.GreaterThan(remaining) {
		return nil, apperror.ErrRefundExceedsOriginal()
	}
	if !refundAmount.IsPositive() {
		return nil, apperror.ErrRefundExceedsOriginal()
	}

	var account *domain.CurrencyAccount
	for _, a := range wallet.CurrencyAccounts {
		if a.ID == origTxn.CurrencyAccountID {
			account = a
			break
		}
	}
	if account == nil {
		return nil, apperror.ErrNotFound("currency account")
	}

	reason := req.Reason
	if reason == "" {
		reason = "Refund of " + origTxn.TransactionNumber
	}
	refundTxn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:             wallet.ID,
		CurrencyAccountID:    account.ID,
		UserID:               wallet.UserID,
		Amount:               refundAmount,
		Direction:            domain.DirectionIn,
		Type:                 domain.TypeRefund,
		Description:          reason,
		RelatedTransactionID: &origTxn.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := account.ProcessRefund(refundTxn); err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, refundTxn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund transaction: %w", err))
	}

	events := append(wallet.PullEvents(), refundTxn.PullEvents()...)
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("refund_tx", refundTxn.TransactionNumber).
		Str("original_tx", origTxn.TransactionNumber).
		Str("amount", refundAmount.String()).
		Msg("refund processed")

	return refundTxn, nil
}
