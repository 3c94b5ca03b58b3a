package service

import (
	"context"
	"encoding/json"
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

// callbackTTL is how long a reconciled callback result stays cached for
// duplicate gateway deliveries.
const callbackTTL = 24 * time.Hour

// callbackStatusOK is the gateway's success marker in the return redirect.
const callbackStatusOK = "OK"

// amountTolerance absorbs sub-unit rounding differences between the reserved
// and the verified amount.
var amountTolerance = decimal.RequireFromString("0.01")

// DepositServiceImpl implements ports.DepositService.
type DepositServiceImpl struct {
	walletRepo    ports.WalletRepository
	txRepo        ports.TransactionRepository
	outbox        ports.EventOutboxRepository
	callbackCache ports.CallbackCache
	gateway       ports.PaymentGatewayClient
	transactor    ports.DBTransactor
	publisher     ports.EventPublisher
	policy        domain.WalletPolicy
	log           zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	callbackCache ports.CallbackCache,
	gateway ports.PaymentGatewayClient,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	policy domain.WalletPolicy,
	log zerolog.Logger,
) *DepositServiceImpl {
	return &DepositServiceImpl{
		walletRepo:    walletRepo,
		txRepo:        txRepo,
		outbox:        outbox,
		callbackCache: callbackCache,
		gateway:       gateway,
		transactor:    transactor,
		publisher:     publisher,
		policy:        policy,
		log:           log,
	}
}

// DirectDeposit credits a wallet immediately, without a gateway round trip.
// Used by trusted internal callers (settlement jobs, support tooling).
func (s *DepositServiceImpl) DirectDeposit(ctx context.Context, req ports.DirectDepositRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}

	account, err := wallet.CreateCurrencyAccount(req.Amount.Currency, s.policy)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Direct deposit"
	}
	txn, err := account.CreateDepositTransaction(req.Amount, description, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if err := account.ProcessDeposit(txn); err != nil {
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
		Str("wallet_id", wallet.ID.String()).
		Str("amount", txn.Amount.String()).
		Msg("direct deposit processed")

	return txn, nil
}

// InitiateGatewayDeposit reserves a payment with the gateway and records the
// pending deposit awaiting the callback. The gateway is called before any row
// is locked so a slow provider never holds a wallet lock.
func (s *DepositServiceImpl) InitiateGatewayDeposit(ctx context.Context, req ports.GatewayDepositRequest) (*ports.GatewayDepositResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	description := req.Description
	if description == "" {
		description = "Wallet deposit via payment gateway"
	}

	gwResp, err := s.gateway.CreatePayment(ctx, ports.GatewayPaymentRequest{
		Amount:      req.Amount,
		Description: description,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, apperror.ErrGatewayFailure(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.lockWallet(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, err
	}
	account, err := wallet.CreateCurrencyAccount(req.Amount.Currency, s.policy)
	if err != nil {
		return nil, err
	}

	txn, err := account.CreateDepositTransaction(req.Amount, description, gwResp.Authority)
	if err != nil {
		return nil, err
	}

	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_number", txn.TransactionNumber).
		Str("authority", gwResp.Authority).
		Str("amount", txn.Amount.String()).
		Msg("gateway deposit initiated")

	return &ports.GatewayDepositResult{
		Transaction: txn,
		Authority:   gwResp.Authority,
		PaymentURL:  gwResp.PaymentURL,
	}, nil
}

// ProcessPaymentCallback reconciles the gateway's return redirect against the
// pending transaction. Duplicate deliveries are answered from cache or detected
// by the transaction already being completed; neither moves money twice.
func (s *DepositServiceImpl) ProcessPaymentCallback(ctx context.Context, req ports.PaymentCallbackRequest) (*ports.CallbackResult, error) {
	if req.Authority == "" {
		return nil, apperror.Validation("authority is required")
	}

	cacheKey := "callback:" + req.Authority
	cached, err := s.callbackCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("authority", req.Authority).Msg("callback cache check failed, falling through to DB")
	}
	if cached != nil {
		var result ports.CallbackResult
		if err := json.Unmarshal(cached, &result); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("unmarshal cached callback: %w", err))
		}
		result.AlreadyProcessed = true
		return &result, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByPaymentReference(ctx, req.Authority)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find transaction by authority: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction for authority")
	}

	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, txn.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	// Re-read under the lock: a concurrent delivery may have completed it.
	txn, err = s.txRepo.GetByIDForUpdate(ctx, dbTx, txn.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn.Status == domain.StatusCompleted {
		return &ports.CallbackResult{
			Transaction:      txn,
			ReferenceID:      txn.PaymentReferenceID,
			AlreadyProcessed: true,
		}, nil
	}
	if txn.Status == domain.StatusFailed {
		return nil, apperror.ErrInvalidOperation("transaction has already failed")
	}

	if req.Status != callbackStatusOK {
		return nil, s.failCallback(ctx, dbTx, txn, "payment cancelled or rejected at gateway",
			apperror.ErrGatewayFailure(fmt.Sprintf("callback status %q", req.Status)))
	}

	verify, err := s.gateway.VerifyPayment(ctx, req.Authority, txn.Amount)
	if err != nil {
		return nil, s.failCallback(ctx, dbTx, txn, "gateway verification failed", apperror.ErrVerificationFailed(err.Error()))
	}

	diff := verify.Amount.Value.Sub(txn.Amount.Value).Abs()
	if verify.Amount.Currency != txn.Amount.Currency || diff.GreaterThan(amountTolerance) {
		return nil, s.failCallback(ctx, dbTx, txn,
			fmt.Sprintf("verified amount %s does not match expected %s", verify.Amount.String(), txn.Amount.String()),
			apperror.ErrAmountMismatch())
	}

	account := s.findAccount(wallet, txn)
	if account == nil {
		return nil, apperror.ErrNotFound("currency account")
	}

	switch txn.Direction {
	case domain.DirectionIn:
		// Gateway-funded deposit: money enters the wallet now.
		if err := account.ProcessDeposit(txn); err != nil {
			return nil, err
		}
		if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("save wallet: %w", err))
		}
	default:
		// Gateway-funded purchase: funds flowed through the provider, the
		// wallet balance is untouched.
		txn.MarkAsCompleted()
	}

	if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update transaction: %w", err))
	}

	events := append(wallet.PullEvents(), txn.PullEvents()...)
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	result := &ports.CallbackResult{
		Transaction: txn,
		ReferenceID: verify.ReferenceID,
	}
	if respJSON, err := json.Marshal(result); err == nil {
		if err := s.callbackCache.Set(ctx, cacheKey, respJSON, callbackTTL); err != nil {
			s.log.Warn().Err(err).Str("authority", req.Authority).Msg("failed to cache callback result")
		}
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Info().
		Str("tx_number", txn.TransactionNumber).
		Str("authority", req.Authority).
		Str("reference", verify.ReferenceID).
		Msg("payment callback reconciled")

	return result, nil
}

// failCallback marks the transaction failed and commits that terminal state
// before surfacing the business error to the caller.
func (s *DepositServiceImpl) failCallback(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, reason string, cause error) error {
	if err := txn.MarkAsFailed(reason); err != nil {
		return err
	}
	if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
		return apperror.InternalError(fmt.Errorf("update failed transaction: %w", err))
	}
	events := txn.PullEvents()
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)

	s.log.Warn().
		Str("tx_number", txn.TransactionNumber).
		Str("reason", reason).
		Msg("payment callback failed")

	return cause
}

func (s *DepositServiceImpl) findAccount(wallet *domain.Wallet, txn *domain.Transaction) *domain.CurrencyAccount {
	for _, a := range wallet.CurrencyAccounts {
		if a.ID == txn.CurrencyAccountID {
			return a
		}
	}
	return nil
}

func (s *DepositServiceImpl) lockWallet(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}
