package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"wallet-ledger-engine/internal/core/domain"
)

// mockTx implements pgx.Tx for testing.
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func testWalletPolicy() domain.WalletPolicy {
	return domain.WalletPolicy{
		MaxCurrencyAccounts: 5,
		MaxBankAccounts:     10,
		SupportedCurrencies: []domain.Currency{domain.CurrencyIRR, domain.CurrencyUSD},
	}
}

// fundedWallet builds a wallet whose IRR account holds the given balance,
// with all construction events drained.
func fundedWallet(t *testing.T, userID uuid.UUID, balance int64) (*domain.Wallet, *domain.CurrencyAccount) {
	t.Helper()
	w, err := domain.NewWallet(userID)
	require.NoError(t, err)
	account, err := w.CreateCurrencyAccount(domain.CurrencyIRR, testWalletPolicy())
	require.NoError(t, err)
	if balance > 0 {
		txn, err := account.CreateDepositTransaction(domain.NewMoneyFromInt(balance, domain.CurrencyIRR), "seed", "")
		require.NoError(t, err)
		require.NoError(t, account.ProcessDeposit(txn))
		txn.PullEvents()
	}
	w.PullEvents()
	return w, account
}
