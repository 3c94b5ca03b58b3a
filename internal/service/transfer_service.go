package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
)

// TransferServiceImpl implements ports.TransferService. A transfer produces
// three linked ledger entries inside one database transaction: the sender's
// outbound leg, the fee charged to the sender, and the receiver's inbound leg.
type TransferServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	outbox     ports.EventOutboxRepository
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	fees       TransferFeeSchedule
	policy     domain.WalletPolicy
	dailyLimit decimal.Decimal
	log        zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	fees TransferFeeSchedule,
	policy domain.WalletPolicy,
	dailyLimit int64,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		outbox:     outbox,
		transactor: transactor,
		publisher:  publisher,
		fees:       fees,
		policy:     policy,
		dailyLimit: decimal.NewFromInt(dailyLimit),
		log:        log,
	}
}

// Transfer moves funds between two wallets. Both wallet rows are locked in
// ascending ID order so two opposing transfers can never deadlock.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SenderUserID == req.ReceiverUserID {
		return nil, apperror.ErrSelfTransfer()
	}

	senderWalletID, err := s.resolveWalletID(ctx, req.SenderUserID)
	if err != nil {
		return nil, err
	}
	receiverWalletID, err := s.resolveWalletID(ctx, req.ReceiverUserID)
	if err != nil {
		return nil, err
	}

	fee := s.fees.FeeFor(req.Amount)
	total, err := req.Amount.Add(fee)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	sender, receiver, err := s.lockBothWallets(ctx, dbTx, senderWalletID, receiverWalletID)
	if err != nil {
		return nil, err
	}

	senderAccount := sender.GetCurrencyAccount(req.Amount.Currency)
	if senderAccount == nil {
		return nil, apperror.ErrNotFound("sender currency account")
	}
	if !senderAccount.HasSufficientBalance(total) {
		return nil, apperror.ErrInsufficientBalance()
	}
	if err := s.checkDailyLimit(ctx, senderAccount, total.Value); err != nil {
		return nil, err
	}

	receiverAccount, err := receiver.CreateCurrencyAccount(req.Amount.Currency, s.policy)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Wallet transfer"
	}

	outTxn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:          sender.ID,
		CurrencyAccountID: senderAccount.ID,
		UserID:            sender.UserID,
		Amount:            req.Amount,
		Direction:         domain.DirectionOut,
		Type:              domain.TypeTransfer,
		Description:       description,
	})
	if err != nil {
		return nil, err
	}

	inTxn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:             receiver.ID,
		CurrencyAccountID:    receiverAccount.ID,
		UserID:               receiver.UserID,
		Amount:               req.Amount,
		Direction:            domain.DirectionIn,
		Type:                 domain.TypeTransfer,
		Description:          description,
		RelatedTransactionID: &outTxn.ID,
	})
	if err != nil {
		return nil, err
	}
	outTxn.SetRelatedTransaction(inTxn.ID)

	// A standalone fee entry is only recorded when the schedule charges one.
	var feeTxn *domain.Transaction
	if fee.IsPositive() {
		feeTxn, err = domain.NewTransaction(domain.TransactionSpec{
			WalletID:             sender.ID,
			CurrencyAccountID:    senderAccount.ID,
			UserID:               sender.UserID,
			Amount:               fee,
			Direction:            domain.DirectionOut,
			Type:                 domain.TypeFee,
			Description:          "Transfer fee for " + outTxn.TransactionNumber,
			RelatedTransactionID: &outTxn.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := senderAccount.ProcessTransfer(outTxn); err != nil {
		return nil, err
	}
	if feeTxn != nil {
		if err := senderAccount.ProcessFee(feeTxn); err != nil {
			return nil, err
		}
	}
	if err := receiverAccount.ProcessTransfer(inTxn); err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, sender); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save sender wallet: %w", err))
	}
	if err := s.walletRepo.Save(ctx, dbTx, receiver); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save receiver wallet: %w", err))
	}
	txns := []*domain.Transaction{outTxn, inTxn}
	if feeTxn != nil {
		txns = append(txns, feeTxn)
	}
	for _, txn := range txns {
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
	}

	events := append(sender.PullEvents(), receiver.PullEvents()...)
	for _, txn := range txns {
		events = append(events, txn.PullEvents()...)
	}
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("out_tx", outTxn.TransactionNumber).
		Str("in_tx", inTxn.TransactionNumber).
		Str("amount", req.Amount.String()).
		Str("fee", fee.String()).
		Msg("transfer completed")

	return &ports.TransferResult{
		OutTransaction: outTxn,
		InTransaction:  inTxn,
		FeeTransaction: feeTxn,
		Fee:            fee,
	}, nil
}

func (s *TransferServiceImpl) resolveWalletID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return uuid.Nil, apperror.ErrNotFound("wallet")
	}
	return wallet.ID, nil
}

// lockBothWallets acquires both row locks in ascending wallet-ID order and
// returns them as (sender, receiver) regardless of lock order.
func (s *TransferServiceImpl) lockBothWallets(ctx context.Context, dbTx pgx.Tx, senderID, receiverID uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := senderID, receiverID
	if bytes.Compare(receiverID[:], senderID[:]) < 0 {
		first, second = receiverID, senderID
	}

	firstWallet, err := s.lockWalletByID(ctx, dbTx, first)
	if err != nil {
		return nil, nil, err
	}
	secondWallet, err := s.lockWalletByID(ctx, dbTx, second)
	if err != nil {
		return nil, nil, err
	}

	if firstWallet.ID == senderID {
		return firstWallet, secondWallet, nil
	}
	return secondWallet, firstWallet, nil
}

func (s *TransferServiceImpl) lockWalletByID(ctx context.Context, dbTx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

func (s *TransferServiceImpl) checkDailyLimit(ctx context.Context, account *domain.CurrencyAccount, debit decimal.Decimal) error {
	if s.dailyLimit.IsZero() {
		return nil
	}
	spent, err := s.txRepo.SumDailyOutflow(ctx, account.ID, time.Now().UTC())
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum daily outflow: %w", err))
	}
	if spent.Add(debit).GreaterThan(s.dailyLimit) {
		return apperror.ErrDailyLimitExceeded()
	}
	return nil
}
