package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentTransfers_NoOverspend fires many transfers at once against a
// balance that covers only a few of them. The wallet lock must hold the
// invariant: the sender can never go negative, and every unit leaving the
// sender shows up at the receiver or as a fee.
func TestConcurrentTransfers_NoOverspend(t *testing.T) {
	app := newTestApp(t, false)
	_, senderToken := app.newFundedUser(t, "1000000")
	receiverID, receiverToken := app.newFundedUser(t, "0")

	const (
		workers  = 50
		amount   = 100000
		fee      = 1000 // min clamp applies at this amount
		perTotal = amount + fee
	)

	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := app.do(t, http.MethodPost, "/api/v1/transfers", senderToken, map[string]any{
				"receiver_user_id": receiverID.String(),
				"amount":           fmt.Sprintf("%d", amount),
				"currency":         "IRR",
			})
			if status == http.StatusCreated {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 1,000,000 / 101,000 per transfer: at most 9 can clear.
	require.Greater(t, successes, int64(0))
	require.LessOrEqual(t, successes, int64(9))

	senderBalance := decimal.RequireFromString(app.balance(t, senderToken, "IRR"))
	receiverBalance := decimal.RequireFromString(app.balance(t, receiverToken, "IRR"))

	assert.True(t, senderBalance.Equal(decimal.NewFromInt(1000000-successes*perTotal)),
		"sender balance %s for %d successes", senderBalance, successes)
	assert.True(t, receiverBalance.Equal(decimal.NewFromInt(successes*amount)),
		"receiver balance %s for %d successes", receiverBalance, successes)

	// Conservation: what left the sender equals what arrived plus fees.
	moved := decimal.NewFromInt(1000000).Sub(senderBalance)
	assert.True(t, moved.Equal(receiverBalance.Add(decimal.NewFromInt(successes*fee))))
}

// TestConcurrentDirectDeposits_ExactSum verifies no deposit is lost or applied
// twice when many land on the same account at once.
func TestConcurrentDirectDeposits_ExactSum(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "0")

	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status, _ := app.do(t, http.MethodPost, "/api/v1/deposits/direct", token, map[string]any{
				"amount":       "10000",
				"currency":     "IRR",
				"reference_id": fmt.Sprintf("batch-%d", n),
			})
			assert.Equal(t, http.StatusCreated, status)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "500000", app.balance(t, token, "IRR"))
}

// TestConcurrentCallbacks_CreditedOnce delivers the same gateway callback many
// times in parallel. Exactly one delivery moves money; the rest are answered
// as duplicates.
func TestConcurrentCallbacks_CreditedOnce(t *testing.T) {
	app := newTestApp(t, false)
	_, token := app.newFundedUser(t, "0")

	status, env := app.do(t, http.MethodPost, "/api/v1/deposits", token, map[string]any{
		"amount":   "750000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, status)
	authority := data(t, env)["authority"].(string)
	callbackPath := fmt.Sprintf("/api/v1/payments/callback?Authority=%s&Status=OK", authority)

	const workers = 20

	var wg sync.WaitGroup
	var mu sync.Mutex
	firstDeliveries := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, env := app.do(t, http.MethodGet, callbackPath, "", nil)
			assert.Equal(t, http.StatusOK, status)
			if data(t, env)["already_processed"] == false {
				mu.Lock()
				firstDeliveries++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firstDeliveries)
	assert.Equal(t, "750000", app.balance(t, token, "IRR"))
}

// TestConcurrentAccountCreation_SingleAccount checks that racing requests to
// open the same currency account converge on one account.
func TestConcurrentAccountCreation_SingleAccount(t *testing.T) {
	app := newTestApp(t, false)
	userID := uuid.New()
	token := app.issueToken(t, userID)

	status, _ := app.do(t, http.MethodPost, "/api/v1/wallets", token, nil)
	require.Equal(t, http.StatusCreated, status)

	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := app.do(t, http.MethodPost, "/api/v1/wallets/me/accounts", token, map[string]any{"currency": "EUR"})
			assert.Equal(t, http.StatusCreated, status)
		}()
	}
	wg.Wait()

	status, env := app.do(t, http.MethodGet, "/api/v1/wallets/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	accounts := data(t, env)["currency_accounts"].([]any)
	eur := 0
	for _, raw := range accounts {
		if raw.(map[string]any)["currency"] == "EUR" {
			eur++
		}
	}
	assert.Equal(t, 1, eur)
}
