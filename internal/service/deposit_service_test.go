package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/internal/core/ports/mocks"
)

type depositTestDeps struct {
	svc        *DepositServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	outbox     *mocks.MockEventOutboxRepository
	cache      *mocks.MockCallbackCache
	gateway    *mocks.MockPaymentGatewayClient
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupDepositService(t *testing.T) *depositTestDeps {
	ctrl := gomock.NewController(t)
	d := &depositTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		outbox:     mocks.NewMockEventOutboxRepository(ctrl),
		cache:      mocks.NewMockCallbackCache(ctrl),
		gateway:    mocks.NewMockPaymentGatewayClient(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewDepositService(
		d.walletRepo, d.txRepo, d.outbox, d.cache, d.gateway, d.transactor, nil,
		testWalletPolicy(), zerolog.Nop(),
	)
	return d
}

// pendingGatewayDeposit builds a wallet with a pending inbound deposit awaiting
// the gateway callback for the given authority.
func pendingGatewayDeposit(t *testing.T, userID uuid.UUID, amount int64, authority string) (*domain.Wallet, *domain.CurrencyAccount, *domain.Transaction) {
	t.Helper()
	w, account := fundedWallet(t, userID, 0)
	txn, err := account.CreateDepositTransaction(domain.NewMoneyFromInt(amount, domain.CurrencyIRR), "gateway deposit", authority)
	require.NoError(t, err)
	txn.PullEvents()
	return w, account, txn
}

func TestDepositService_DirectDeposit(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account := fundedWallet(t, userID, 10000)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().Save(ctx, tx, wallet).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.DirectDeposit(ctx, ports.DirectDepositRequest{
		UserID:      userID,
		Amount:      domain.NewMoneyFromInt(50000, domain.CurrencyIRR),
		Description: "payroll settlement",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, txn.Status)
	assert.Equal(t, domain.DirectionIn, txn.Direction)
	assert.True(t, account.Balance.Value.Equal(decimal.NewFromInt(60000)))
}

func TestDepositService_DirectDeposit_CreatesMissingAccount(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, err := domain.NewWallet(userID)
	require.NoError(t, err)
	wallet.PullEvents()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().Save(ctx, tx, wallet).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	_, err = d.svc.DirectDeposit(ctx, ports.DirectDepositRequest{
		UserID: userID,
		Amount: domain.NewMoneyFromInt(50000, domain.CurrencyUSD),
	})
	require.NoError(t, err)

	account := wallet.GetCurrencyAccount(domain.CurrencyUSD)
	require.NotNil(t, account)
	assert.True(t, account.Balance.Value.Equal(decimal.NewFromInt(50000)))
}

func TestDepositService_DirectDeposit_InvalidAmount(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.DirectDeposit(context.Background(), ports.DirectDepositRequest{
		UserID: uuid.New(),
		Amount: domain.ZeroMoney(domain.CurrencyIRR),
	})
	assert.Error(t, err)
}

func TestDepositService_InitiateGatewayDeposit(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account := fundedWallet(t, userID, 0)
	tx := &mockTx{}

	d.gateway.EXPECT().CreatePayment(ctx, gomock.Any()).Return(
		&ports.GatewayPaymentResponse{Authority: "A000012345", PaymentURL: "https://gateway.example/pay/A000012345"}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(wallet, nil)
	d.walletRepo.EXPECT().Save(ctx, tx, wallet).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	result, err := d.svc.InitiateGatewayDeposit(ctx, ports.GatewayDepositRequest{
		UserID:      userID,
		Amount:      domain.NewMoneyFromInt(75000, domain.CurrencyIRR),
		CallbackURL: "https://shop.example/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "A000012345", result.Authority)
	assert.Equal(t, "https://gateway.example/pay/A000012345", result.PaymentURL)
	assert.Equal(t, domain.StatusPending, result.Transaction.Status)
	assert.Equal(t, "A000012345", result.Transaction.PaymentReferenceID)
	assert.True(t, account.Balance.Value.IsZero(), "balance must not move before the callback")
}

func TestDepositService_InitiateGatewayDeposit_GatewayDown(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.gateway.EXPECT().CreatePayment(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := d.svc.InitiateGatewayDeposit(ctx, ports.GatewayDepositRequest{
		UserID: uuid.New(),
		Amount: domain.NewMoneyFromInt(75000, domain.CurrencyIRR),
	})
	assert.Error(t, err)
}

func TestDepositService_ProcessPaymentCallback_Success(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account, txn := pendingGatewayDeposit(t, userID, 75000, "A000012345")
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, "callback:A000012345").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000012345").Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.gateway.EXPECT().VerifyPayment(ctx, "A000012345", txn.Amount).Return(
		&ports.GatewayVerifyResponse{ReferenceID: "REF-777", Amount: txn.Amount}, nil)
	d.walletRepo.EXPECT().Save(ctx, tx, wallet).Return(nil)
	d.txRepo.EXPECT().Update(ctx, tx, txn).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, "callback:A000012345", gomock.Any(), callbackTTL).Return(nil)

	result, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000012345",
		Status:    "OK",
	})
	require.NoError(t, err)

	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, "REF-777", result.ReferenceID)
	assert.Equal(t, domain.StatusCompleted, result.Transaction.Status)
	assert.True(t, account.Balance.Value.Equal(decimal.NewFromInt(75000)))
}

func TestDepositService_ProcessPaymentCallback_CachedDuplicate(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	cached, err := json.Marshal(&ports.CallbackResult{ReferenceID: "REF-777"})
	require.NoError(t, err)
	d.cache.EXPECT().Get(ctx, "callback:A000012345").Return(cached, nil)

	result, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000012345",
		Status:    "OK",
	})
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, "REF-777", result.ReferenceID)
}

func TestDepositService_ProcessPaymentCallback_AlreadyCompletedUnderLock(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account, txn := pendingGatewayDeposit(t, userID, 75000, "A000012345")
	require.NoError(t, account.ProcessDeposit(txn))
	txn.PullEvents()
	wallet.PullEvents()
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, "callback:A000012345").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000012345").Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)

	result, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000012345",
		Status:    "OK",
	})
	require.NoError(t, err)

	assert.True(t, result.AlreadyProcessed)
	assert.True(t, account.Balance.Value.Equal(decimal.NewFromInt(75000)), "duplicate delivery must not double-credit")
}

func TestDepositService_ProcessPaymentCallback_GatewayRejected(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account, txn := pendingGatewayDeposit(t, userID, 75000, "A000012345")
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, "callback:A000012345").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000012345").Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.txRepo.EXPECT().Update(ctx, tx, txn).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	_, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000012345",
		Status:    "NOK",
	})
	assert.Error(t, err)
	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.True(t, account.Balance.Value.IsZero())
}

func TestDepositService_ProcessPaymentCallback_AmountMismatch(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account, txn := pendingGatewayDeposit(t, userID, 75000, "A000012345")
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, "callback:A000012345").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000012345").Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.gateway.EXPECT().VerifyPayment(ctx, "A000012345", txn.Amount).Return(
		&ports.GatewayVerifyResponse{ReferenceID: "REF-777", Amount: domain.NewMoneyFromInt(70000, domain.CurrencyIRR)}, nil)
	d.txRepo.EXPECT().Update(ctx, tx, txn).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)

	_, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000012345",
		Status:    "OK",
	})
	assert.Error(t, err)
	assert.Equal(t, domain.StatusFailed, txn.Status)
	assert.True(t, account.Balance.Value.IsZero())
}

func TestDepositService_ProcessPaymentCallback_OutboundLegCompletesWithoutCredit(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet, account := fundedWallet(t, userID, 0)
	// A gateway-funded purchase leg: outbound, pending, awaiting the callback.
	txn, err := domain.NewTransaction(domain.TransactionSpec{
		WalletID:           wallet.ID,
		CurrencyAccountID:  account.ID,
		UserID:             userID,
		Amount:             domain.NewMoneyFromInt(30000, domain.CurrencyIRR),
		Direction:          domain.DirectionOut,
		Type:               domain.TypePurchase,
		Description:        "order",
		PaymentReferenceID: "A000055555",
	})
	require.NoError(t, err)
	txn.PullEvents()
	tx := &mockTx{}

	d.cache.EXPECT().Get(ctx, "callback:A000055555").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000055555").Return(txn, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.txRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(txn, nil)
	d.gateway.EXPECT().VerifyPayment(ctx, "A000055555", txn.Amount).Return(
		&ports.GatewayVerifyResponse{ReferenceID: "REF-888", Amount: txn.Amount}, nil)
	d.txRepo.EXPECT().Update(ctx, tx, txn).Return(nil)
	d.outbox.EXPECT().Append(ctx, tx, gomock.Any()).Return(nil)
	d.cache.EXPECT().Set(ctx, "callback:A000055555", gomock.Any(), callbackTTL).Return(nil)

	result, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000055555",
		Status:    "OK",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, result.Transaction.Status)
	assert.True(t, account.Balance.Value.IsZero(), "funds moved through the provider, not the wallet")
}

func TestDepositService_ProcessPaymentCallback_UnknownAuthority(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	d.cache.EXPECT().Get(ctx, "callback:A000000000").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByPaymentReference(ctx, "A000000000").Return(nil, nil)

	_, err := d.svc.ProcessPaymentCallback(ctx, ports.PaymentCallbackRequest{
		Authority: "A000000000",
		Status:    "OK",
	})
	assert.Error(t, err)
}
