package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
)

// PurchaseServiceImpl implements ports.PurchaseService. It routes each
// purchase across wallet balance, the payment gateway and credit lines:
// full balance pays from the wallet, no balance goes entirely through the
// gateway, partial balance splits between the two, and UseCredit charges the
// wallet's credit line instead.
type PurchaseServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	outbox     ports.EventOutboxRepository
	gateway    ports.PaymentGatewayClient
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	dailyLimit decimal.Decimal
	log        zerolog.Logger
}

// NewPurchaseService creates a new PurchaseServiceImpl. dailyLimit caps a
// currency account's completed outflow per UTC day; zero disables the cap.
func NewPurchaseService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	outbox ports.EventOutboxRepository,
	gateway ports.PaymentGatewayClient,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	dailyLimit int64,
	log zerolog.Logger,
) *PurchaseServiceImpl {
	return &PurchaseServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		outbox:     outbox,
		gateway:    gateway,
		transactor: transactor,
		publisher:  publisher,
		dailyLimit: decimal.NewFromInt(dailyLimit),
		log:        log,
	}
}

// Purchase routes and executes a purchase.
func (s *PurchaseServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	// Defaulted before any routing so the gateway is never asked to reserve a
	// payment for a request the ledger would then reject.
	if req.Description == "" {
		req.Description = "Purchase"
	}

	if req.UseCredit {
		return s.purchaseOnCredit(ctx, req)
	}

	// Routing decision from an unlocked read; the chosen split is re-checked
	// under the wallet lock before any balance mutates.
	wallet, err := s.walletRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	available := decimal.Zero
	if account := wallet.GetCurrencyAccount(req.Amount.Currency); account != nil && account.IsActive {
		available = account.Balance.Value
	}

	if available.GreaterThanOrEqual(req.Amount.Value) {
		return s.purchaseFromWallet(ctx, req)
	}

	walletPortion := domain.NewMoney(available, req.Amount.Currency)
	if walletPortion.IsNegative() {
		walletPortion = domain.ZeroMoney(req.Amount.Currency)
	}
	gatewayPortion, err := req.Amount.Subtract(walletPortion)
	if err != nil {
		return nil, err
	}
	return s.purchaseViaGateway(ctx, req, walletPortion, gatewayPortion)
}

// purchaseFromWallet executes a purchase fully covered by wallet balance.
func (s *PurchaseServiceImpl) purchaseFromWallet(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, account, err := s.lockWalletAndAccount(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkDailyLimit(ctx, account, req.Amount.Value); err != nil {
		return nil, err
	}

	txn, err := account.CreatePurchaseTransaction(req.Amount, req.Description, req.OrderContext)
	if err != nil {
		return nil, err
	}
	if err := account.ProcessPurchase(txn); err != nil {
		return nil, err
	}

	if err := s.persistAndCommit(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_number", txn.TransactionNumber).
		Str("amount", txn.Amount.String()).
		Str("mode", string(ports.PurchaseModeWallet)).
		Msg("purchase completed from wallet")

	return &ports.PurchaseResult{
		Mode:         ports.PurchaseModeWallet,
		Transactions: []*domain.Transaction{txn},
	}, nil
}

// purchaseViaGateway executes a purchase where some or all of the amount is
// collected by the gateway. The gateway reservation happens before the wallet
// is locked or debited, so a gateway failure never leaves a partial debit.
func (s *PurchaseServiceImpl) purchaseViaGateway(ctx context.Context, req ports.PurchaseRequest, walletPortion, gatewayPortion domain.Money) (*ports.PurchaseResult, error) {
	gwResp, err := s.gateway.CreatePayment(ctx, ports.GatewayPaymentRequest{
		Amount:      gatewayPortion,
		Description: req.Description,
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

	wallet, account, err := s.lockWalletAndAccount(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	transactions := make([]*domain.Transaction, 0, 2)
	var walletTxn *domain.Transaction

	if walletPortion.IsPositive() {
		if err := s.checkDailyLimit(ctx, account, walletPortion.Value); err != nil {
			return nil, err
		}
		// The split was computed from an unlocked read; the balance must
		// still cover it now that the row is locked.
		walletTxn, err = account.CreatePurchaseTransaction(walletPortion, req.Description, req.OrderContext)
		if err != nil {
			return nil, err
		}
		if err := account.ProcessPurchase(walletTxn); err != nil {
			return nil, err
		}
		transactions = append(transactions, walletTxn)
	}

	gatewayTxn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:           wallet.ID,
		CurrencyAccountID:  account.ID,
		UserID:             wallet.UserID,
		Amount:             gatewayPortion,
		Direction:          domain.DirectionOut,
		Type:               domain.TypePurchase,
		Description:        req.Description,
		OrderContext:       req.OrderContext,
		PaymentReferenceID: gwResp.Authority,
	})
	if err != nil {
		return nil, err
	}
	if walletTxn != nil {
		gatewayTxn.SetRelatedTransaction(walletTxn.ID)
	}
	transactions = append(transactions, gatewayTxn)

	if err := s.persistAndCommit(ctx, dbTx, wallet, transactions...); err != nil {
		return nil, err
	}

	mode := ports.PurchaseModeGateway
	if walletTxn != nil {
		mode = ports.PurchaseModeMixed
	}

	s.log.Info().
		Str("tx_number", gatewayTxn.TransactionNumber).
		Str("authority", gwResp.Authority).
		Str("wallet_portion", walletPortion.String()).
		Str("gateway_portion", gatewayPortion.String()).
		Str("mode", string(mode)).
		Msg("purchase routed through gateway")

	return &ports.PurchaseResult{
		Mode:          mode,
		Transactions:  transactions,
		GatewayAmount: &gatewayPortion,
		Authority:     gwResp.Authority,
		PaymentURL:    gwResp.PaymentURL,
	}, nil
}

// purchaseOnCredit charges the wallet's active credit line. The balance is
// untouched; the debt is settled later through credit settlement.
func (s *PurchaseServiceImpl) purchaseOnCredit(ctx context.Context, req ports.PurchaseRequest) (*ports.PurchaseResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, account, err := s.lockWalletAndAccount(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	credit := wallet.GetActiveCredit()
	if credit == nil {
		return nil, apperror.ErrNotFound("credit line")
	}
	if err := credit.UseCredit(req.Amount); err != nil {
		return nil, err
	}

	dueDate := credit.DueDate
	txn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:          wallet.ID,
		CurrencyAccountID: account.ID,
		UserID:            wallet.UserID,
		Amount:            req.Amount,
		Direction:         domain.DirectionOut,
		Type:              domain.TypePurchase,
		Description:       req.Description,
		OrderContext:      req.OrderContext,
		IsCredit:          true,
		DueDate:           &dueDate,
	})
	if err != nil {
		return nil, err
	}
	txn.MarkAsCompleted()

	if err := s.persistAndCommit(ctx, dbTx, wallet, txn); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tx_number", txn.TransactionNumber).
		Str("credit_id", credit.ID.String()).
		Str("amount", txn.Amount.String()).
		Time("due_date", dueDate).
		Msg("purchase charged to credit line")

	return &ports.PurchaseResult{
		Mode:         ports.PurchaseModeCredit,
		Transactions: []*domain.Transaction{txn},
	}, nil
}

func (s *PurchaseServiceImpl) lockWalletAndAccount(ctx context.Context, dbTx pgx.Tx, req ports.PurchaseRequest) (*domain.Wallet, *domain.CurrencyAccount, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, nil, apperror.ErrNotFound("wallet")
	}
	account := wallet.GetCurrencyAccount(req.Amount.Currency)
	if account == nil {
		return nil, nil, apperror.ErrNotFound("currency account")
	}
	return wallet, account, nil
}

func (s *PurchaseServiceImpl) checkDailyLimit(ctx context.Context, account *domain.CurrencyAccount, debit decimal.Decimal) error {
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

func (s *PurchaseServiceImpl) persistAndCommit(ctx context.Context, dbTx pgx.Tx, wallet *domain.Wallet, txns ...*domain.Transaction) error {
	if err := s.walletRepo.Save(ctx, dbTx, wallet); err != nil {
		return apperror.InternalError(fmt.Errorf("save wallet: %w", err))
	}
	events := wallet.PullEvents()
	for _, txn := range txns {
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		events = append(events, txn.PullEvents()...)
	}
	if err := s.outbox.Append(ctx, dbTx, events); err != nil {
		return apperror.InternalError(fmt.Errorf("append outbox: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	publishEvents(ctx, s.log, s.publisher, events)
	return nil
}
