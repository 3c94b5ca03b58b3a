package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "wallet-ledger-engine/internal/adapter/http/handler"
	redisStorage "wallet-ledger-engine/internal/adapter/storage/redis"
	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/service"
	"wallet-ledger-engine/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the real HTTP layer, services, and Redis adapters (against
// miniredis) over in-memory storage. Only PostgreSQL is replaced.
type testApp struct {
	server  *httptest.Server
	gateway *fakeGateway
	outbox  *inMemoryOutbox
}

func newTestApp(t *testing.T, withRateLimit bool) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.New("error", false)

	callbackCache := redisStorage.NewCallbackCache(rdb)
	eventPublisher := redisStorage.NewEventPublisher(rdb, log)

	walletRepo := newInMemoryWalletRepo()
	txRepo := newInMemoryTransactionRepo()
	outbox := newInMemoryOutbox()
	transactor := newMemTransactor()
	gw := newFakeGateway()

	tokenSvc := service.NewJWTTokenService("integration-test-secret-0123456789", 24*time.Hour, "wallet-ledger-engine")

	policy := domain.WalletPolicy{
		MaxCurrencyAccounts: 5,
		MaxBankAccounts:     10,
		SupportedCurrencies: []domain.Currency{domain.CurrencyIRR, domain.CurrencyUSD, domain.CurrencyEUR},
	}
	fees := service.NewTransferFeeSchedule(0.5, 1000, 50000)
	const dailyLimit = int64(500_000_000)

	walletSvc := service.NewWalletService(walletRepo, txRepo, outbox, transactor, eventPublisher, policy, log)
	depositSvc := service.NewDepositService(walletRepo, txRepo, outbox, callbackCache, gw, transactor, eventPublisher, policy, log)
	purchaseSvc := service.NewPurchaseService(walletRepo, txRepo, outbox, gw, transactor, eventPublisher, dailyLimit, log)
	transferSvc := service.NewTransferService(walletRepo, txRepo, outbox, transactor, eventPublisher, fees, policy, dailyLimit, log)
	refundSvc := service.NewRefundService(walletRepo, txRepo, outbox, transactor, eventPublisher, log)
	withdrawalSvc := service.NewWithdrawalService(walletRepo, txRepo, outbox, transactor, eventPublisher, dailyLimit, log)

	deps := httpHandler.RouterDeps{
		WalletSvc:     walletSvc,
		DepositSvc:    depositSvc,
		PurchaseSvc:   purchaseSvc,
		TransferSvc:   transferSvc,
		RefundSvc:     refundSvc,
		WithdrawalSvc: withdrawalSvc,
		TokenSvc:      tokenSvc,
		Logger:        log,
	}
	if withRateLimit {
		deps.RateLimiter = redisStorage.NewRateLimitStore(rdb)
	}

	server := httptest.NewServer(httpHandler.SetupRouter(deps))
	t.Cleanup(server.Close)

	return &testApp{server: server, gateway: gw, outbox: outbox}
}

// do sends a JSON request and returns the status code plus the decoded
// response envelope.
func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var envelope map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
	}
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "expected data object in %v", envelope)
	return d
}

func (a *testApp) issueToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]any{"user_id": userID.String()})
	require.Equal(t, http.StatusOK, status)
	token, ok := data(t, env)["token"].(string)
	require.True(t, ok)
	return token
}

// newFundedUser creates a wallet with an IRR account holding the given amount.
func (a *testApp) newFundedUser(t *testing.T, amount string) (uuid.UUID, string) {
	t.Helper()
	userID := uuid.New()
	token := a.issueToken(t, userID)

	status, _ := a.do(t, http.MethodPost, "/api/v1/wallets", token, nil)
	require.Equal(t, http.StatusCreated, status)

	if amount != "0" {
		status, _ = a.do(t, http.MethodPost, "/api/v1/deposits/direct", token, map[string]any{
			"amount":   amount,
			"currency": "IRR",
		})
		require.Equal(t, http.StatusCreated, status)
	} else {
		status, _ = a.do(t, http.MethodPost, "/api/v1/wallets/me/accounts", token, map[string]any{"currency": "IRR"})
		require.Equal(t, http.StatusCreated, status)
	}
	return userID, token
}

// balance reads the wallet and returns the balance string of the account in
// the given currency.
func (a *testApp) balance(t *testing.T, token, currency string) string {
	t.Helper()
	status, env := a.do(t, http.MethodGet, "/api/v1/wallets/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	accounts, ok := data(t, env)["currency_accounts"].([]any)
	require.True(t, ok)
	for _, raw := range accounts {
		acc := raw.(map[string]any)
		if acc["currency"] == currency {
			return acc["balance"].(string)
		}
	}
	t.Fatalf("no %s account found", currency)
	return ""
}

func TestWalletLifecycle(t *testing.T) {
	app := newTestApp(t, false)
	userID := uuid.New()
	token := app.issueToken(t, userID)

	// Unauthenticated requests are rejected.
	status, _ := app.do(t, http.MethodPost, "/api/v1/wallets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := app.do(t, http.MethodPost, "/api/v1/wallets", token, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, userID.String(), data(t, env)["user_id"])

	// One wallet per user.
	status, _ = app.do(t, http.MethodPost, "/api/v1/wallets", token, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/wallets/me/accounts", token, map[string]any{"currency": "usd"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "USD", data(t, env)["currency"])
	assert.Equal(t, "0", data(t, env)["balance"])

	status, env = app.do(t, http.MethodPost, "/api/v1/wallets/me/bank-accounts", token, map[string]any{
		"bank_name":      "Mellat",
		"account_number": "1234567890",
		"card_number":    "6037991234567893",
		"holder_name":    "Test Holder",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.NotContains(t, data(t, env)["account_number"], "123456")

	status, _ = app.do(t, http.MethodPost, "/api/v1/deposits/direct", token, map[string]any{
		"amount":   "250000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "250000", app.balance(t, token, "IRR"))

	status, env = app.do(t, http.MethodGet, "/api/v1/transactions", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, data(t, env)["total"])
}

func TestGatewayDepositCallbackFlow(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "0")

	status, env := app.do(t, http.MethodPost, "/api/v1/deposits", token, map[string]any{
		"amount":   "500000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	d := data(t, env)
	authority := d["authority"].(string)
	assert.NotEmpty(t, authority)
	assert.Contains(t, d["payment_url"], authority)

	// Funds only move after the callback.
	assert.Equal(t, "0", app.balance(t, token, "IRR"))

	callbackPath := fmt.Sprintf("/api/v1/payments/callback?Authority=%s&Status=OK", authority)
	status, env = app.do(t, http.MethodGet, callbackPath, "", nil)
	require.Equal(t, http.StatusOK, status)
	d = data(t, env)
	assert.Equal(t, false, d["already_processed"])
	assert.Equal(t, "REF-"+authority, d["reference_id"])
	assert.Equal(t, "500000", app.balance(t, token, "IRR"))

	// A duplicate delivery is answered without a second credit.
	status, env = app.do(t, http.MethodGet, callbackPath, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, data(t, env)["already_processed"])
	assert.Equal(t, "500000", app.balance(t, token, "IRR"))
}

func TestCallbackRejectedPayment(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "0")

	status, env := app.do(t, http.MethodPost, "/api/v1/deposits", token, map[string]any{
		"amount":   "100000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	authority := data(t, env)["authority"].(string)

	status, _ = app.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/payments/callback?Authority=%s&Status=NOK", authority), "", nil)
	assert.GreaterOrEqual(t, status, 400)
	assert.Equal(t, "0", app.balance(t, token, "IRR"))

	// The transaction is now terminal; a late OK cannot revive it.
	status, _ = app.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/payments/callback?Authority=%s&Status=OK", authority), "", nil)
	assert.GreaterOrEqual(t, status, 400)
	assert.Equal(t, "0", app.balance(t, token, "IRR"))
}

func TestPurchaseRouting(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "300000")

	// Fully covered by balance.
	status, env := app.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"amount":      "200000",
		"currency":    "IRR",
		"description": "order 1",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "WALLET", data(t, env)["mode"])
	assert.Equal(t, "100000", app.balance(t, token, "IRR"))

	// Balance covers part of it; the rest goes through the gateway.
	status, env = app.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"amount":      "250000",
		"currency":    "IRR",
		"description": "order 2",
	})
	require.Equal(t, http.StatusCreated, status)
	d := data(t, env)
	assert.Equal(t, "MIXED", d["mode"])
	assert.Equal(t, "150000", *jsonString(d, "gateway_amount"))
	authority := d["authority"].(string)
	require.NotEmpty(t, authority)
	assert.Equal(t, "0", app.balance(t, token, "IRR"))

	// Callback settles the gateway leg without touching the balance.
	status, _ = app.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/payments/callback?Authority=%s&Status=OK", authority), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0", app.balance(t, token, "IRR"))

	// Empty balance routes the whole amount through the gateway.
	status, env = app.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"amount":      "80000",
		"currency":    "IRR",
		"description": "order 3",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "GATEWAY", data(t, env)["mode"])
}

func TestRefundFlow(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "500000")

	status, env := app.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"amount":      "200000",
		"currency":    "IRR",
		"description": "refundable order",
	})
	require.Equal(t, http.StatusCreated, status)
	txns := data(t, env)["transactions"].([]any)
	require.Len(t, txns, 1)
	originalID := txns[0].(map[string]any)["id"].(string)

	status, _ = app.do(t, http.MethodPost, "/api/v1/refunds", token, map[string]any{
		"original_transaction_id": originalID,
		"amount":                  "50000",
		"currency":                "IRR",
		"reason":                  "partial return",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "350000", app.balance(t, token, "IRR"))

	// Cumulative refunds can never exceed the original amount.
	status, _ = app.do(t, http.MethodPost, "/api/v1/refunds", token, map[string]any{
		"original_transaction_id": originalID,
		"amount":                  "200000",
		"currency":                "IRR",
		"reason":                  "too much",
	})
	assert.GreaterOrEqual(t, status, 400)
	assert.Equal(t, "350000", app.balance(t, token, "IRR"))

	// Omitting the amount refunds the remainder.
	status, env = app.do(t, http.MethodPost, "/api/v1/refunds", token, map[string]any{
		"original_transaction_id": originalID,
		"reason":                  "full return",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "150000", data(t, env)["amount"])
	assert.Equal(t, "500000", app.balance(t, token, "IRR"))
}

func TestTransferWithFee(t *testing.T) {
	app := newTestApp(t, false)
	senderID, senderToken := app.newFundedUser(t, "2000000")
	_, receiverToken := app.newFundedUser(t, "0")

	status, env := app.do(t, http.MethodGet, "/api/v1/wallets/me", receiverToken, nil)
	require.Equal(t, http.StatusOK, status)
	receiverUserID := data(t, env)["user_id"].(string)

	status, env = app.do(t, http.MethodPost, "/api/v1/transfers", senderToken, map[string]any{
		"receiver_user_id": receiverUserID,
		"amount":           "1000000",
		"currency":         "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	d := data(t, env)
	// 0.5% of 1,000,000, within the min/max clamp.
	assert.Equal(t, "5000", d["fee"])

	assert.Equal(t, "995000", app.balance(t, senderToken, "IRR"))
	assert.Equal(t, "1000000", app.balance(t, receiverToken, "IRR"))

	// Transfers to yourself are refused.
	status, _ = app.do(t, http.MethodPost, "/api/v1/transfers", senderToken, map[string]any{
		"receiver_user_id": senderID.String(),
		"amount":           "1000",
		"currency":         "IRR",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWithdrawalFlow(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "400000")

	status, env := app.do(t, http.MethodPost, "/api/v1/wallets/me/bank-accounts", token, map[string]any{
		"bank_name":      "Melli",
		"account_number": "9876543210",
	})
	require.Equal(t, http.StatusCreated, status)
	bankID := data(t, env)["id"].(string)

	// Unverified accounts cannot receive payouts.
	status, _ = app.do(t, http.MethodPost, "/api/v1/withdrawals", token, map[string]any{
		"amount":   "100000",
		"currency": "IRR",
	})
	assert.GreaterOrEqual(t, status, 400)
	assert.Equal(t, "400000", app.balance(t, token, "IRR"))

	status, _ = app.do(t, http.MethodPost, "/api/v1/wallets/me/bank-accounts/"+bankID+"/verify", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/withdrawals", token, map[string]any{
		"amount":   "100000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "WITHDRAWAL", data(t, env)["type"])
	assert.Equal(t, "300000", app.balance(t, token, "IRR"))
}

func TestCreditPurchaseAndSettlement(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "0")

	dueDate := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	status, _ := app.do(t, http.MethodPost, "/api/v1/wallets/me/credits", token, map[string]any{
		"credit_limit": "1000000",
		"currency":     "IRR",
		"due_date":     dueDate,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := app.do(t, http.MethodPost, "/api/v1/purchases", token, map[string]any{
		"amount":      "300000",
		"currency":    "IRR",
		"description": "credit order",
		"use_credit":  true,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "CREDIT", data(t, env)["mode"])
	// Credit purchases never touch the balance.
	assert.Equal(t, "0", app.balance(t, token, "IRR"))

	// Fund the wallet and settle the debt.
	status, _ = app.do(t, http.MethodPost, "/api/v1/deposits/direct", token, map[string]any{
		"amount":   "400000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env = app.do(t, http.MethodPost, "/api/v1/wallets/me/credits/settle", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CREDIT_SETTLEMENT", data(t, env)["type"])
	assert.Equal(t, "300000", data(t, env)["amount"])
	assert.Equal(t, "100000", app.balance(t, token, "IRR"))
}

func TestRateLimitEnforced(t *testing.T) {
	app := newTestApp(t, true)
	userID := uuid.New()
	token := app.issueToken(t, userID)

	// Withdrawals carry the tightest per-minute budget. Invalid bodies still
	// consume it since the limiter runs before validation.
	var lastStatus int
	for i := 0; i < 11; i++ {
		lastStatus, _ = app.do(t, http.MethodPost, "/api/v1/withdrawals", token, map[string]any{})
	}
	assert.Equal(t, http.StatusTooManyRequests, lastStatus)
}

// jsonString fetches an optional string field as a pointer.
func jsonString(m map[string]any, key string) *string {
	if v, ok := m[key].(string); ok {
		return &v
	}
	return nil
}
