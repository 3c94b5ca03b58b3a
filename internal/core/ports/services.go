package ports

import (
	"context"
	"time"

	"wallet-ledger-engine/internal/core/domain"

	"github.com/google/uuid"
)

// WalletService manages the wallet aggregate lifecycle and its attachments.
type WalletService interface {
	CreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	CreateCurrencyAccount(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.CurrencyAccount, error)
	AddBankAccount(ctx context.Context, req AddBankAccountRequest) (*domain.BankAccount, error)
	RemoveBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) error
	VerifyBankAccount(ctx context.Context, userID, bankAccountID uuid.UUID) error
	AssignCredit(ctx context.Context, req AssignCreditRequest) (*domain.Credit, error)
	SettleCredit(ctx context.Context, userID uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// AddBankAccountRequest holds validated input for attaching a bank account.
type AddBankAccountRequest struct {
	UserID        uuid.UUID
	BankName      string
	AccountNumber string
	CardNumber    string
	ShabaNumber   string
	HolderName    string
}

// AssignCreditRequest holds validated input for granting a credit line.
type AssignCreditRequest struct {
	UserID      uuid.UUID
	CreditLimit domain.Money
	DueDate     time.Time
	Description string
}

// DepositService funds currency accounts, either directly (trusted internal
// callers) or through the payment gateway redirect flow.
type DepositService interface {
	DirectDeposit(ctx context.Context, req DirectDepositRequest) (*domain.Transaction, error)
	InitiateGatewayDeposit(ctx context.Context, req GatewayDepositRequest) (*GatewayDepositResult, error)
	ProcessPaymentCallback(ctx context.Context, req PaymentCallbackRequest) (*CallbackResult, error)
}

// DirectDepositRequest credits a wallet without a gateway round trip.
type DirectDepositRequest struct {
	UserID      uuid.UUID
	Amount      domain.Money
	Description string
	ReferenceID string
}

// GatewayDepositRequest starts a gateway-funded deposit.
type GatewayDepositRequest struct {
	UserID      uuid.UUID
	Amount      domain.Money
	Description string
	CallbackURL string
}

// GatewayDepositResult carries the redirect data for a pending deposit.
type GatewayDepositResult struct {
	Transaction *domain.Transaction
	Authority   string
	PaymentURL  string
}

// PaymentCallbackRequest holds the gateway's return parameters.
type PaymentCallbackRequest struct {
	Authority string
	Status    string
}

// CallbackResult reports the outcome of callback reconciliation.
type CallbackResult struct {
	Transaction *domain.Transaction
	ReferenceID string
	// AlreadyProcessed is true when the callback was a duplicate delivery and
	// the transaction had been completed earlier.
	AlreadyProcessed bool
}

// PurchaseMode identifies which funding path a purchase took.
type PurchaseMode string

const (
	PurchaseModeWallet  PurchaseMode = "WALLET"
	PurchaseModeGateway PurchaseMode = "GATEWAY"
	PurchaseModeMixed   PurchaseMode = "MIXED"
	PurchaseModeCredit  PurchaseMode = "CREDIT"
)

// PurchaseService routes purchases across wallet balance, the payment gateway
// and credit lines.
type PurchaseService interface {
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}

// PurchaseRequest holds validated input for a purchase.
type PurchaseRequest struct {
	UserID       uuid.UUID
	Amount       domain.Money
	Description  string
	OrderContext string
	// UseCredit forces the credit path instead of balance/gateway routing.
	UseCredit   bool
	CallbackURL string
}

// PurchaseResult reports the routing decision and resulting transactions.
type PurchaseResult struct {
	Mode         PurchaseMode
	Transactions []*domain.Transaction
	// GatewayAmount, Authority and PaymentURL are set for GATEWAY and MIXED
	// purchases, where part or all of the amount awaits gateway confirmation.
	GatewayAmount *domain.Money
	Authority     string
	PaymentURL    string
}

// TransferService moves funds between two wallets atomically.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// TransferRequest holds validated input for a wallet-to-wallet transfer.
type TransferRequest struct {
	SenderUserID   uuid.UUID
	ReceiverUserID uuid.UUID
	Amount         domain.Money
	Description    string
}

// TransferResult carries the three linked ledger entries of a transfer.
type TransferResult struct {
	OutTransaction *domain.Transaction
	InTransaction  *domain.Transaction
	FeeTransaction *domain.Transaction
	Fee            domain.Money
}

// RefundService reverses completed outbound transactions.
type RefundService interface {
	Refund(ctx context.Context, req RefundRequest) (*domain.Transaction, error)
}

// RefundRequest holds validated input for a refund. A nil Amount refunds the
// remaining refundable balance of the original transaction.
type RefundRequest struct {
	UserID                uuid.UUID
	OriginalTransactionID uuid.UUID
	Amount                *domain.Money
	Reason                string
}

// WithdrawalService moves wallet balance out to a verified bank account.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*domain.Transaction, error)
}

// WithdrawalRequest holds validated input for a withdrawal. A nil
// BankAccountID targets the wallet's default bank account.
type WithdrawalRequest struct {
	UserID        uuid.UUID
	Amount        domain.Money
	BankAccountID *uuid.UUID
	Description   string
}

// TokenService issues and validates the bearer tokens that identify wallet owners.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// CallbackCache is the Redis-layer duplicate-delivery check for gateway
// callbacks (fast path before hitting the database).
type CallbackCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
