package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is a domain event collected on an aggregate during a use case and
// flushed by the unit of work after a successful commit. Publication failure
// never rolls back the committed mutation.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

type baseEvent struct {
	At time.Time `json:"occurred_at"`
}

func (e baseEvent) OccurredAt() time.Time { return e.At }

func newBaseEvent() baseEvent { return baseEvent{At: time.Now().UTC()} }

// WalletCreatedEvent is emitted once when a wallet is created for a user.
type WalletCreatedEvent struct {
	baseEvent
	WalletID uuid.UUID `json:"wallet_id"`
	UserID   uuid.UUID `json:"user_id"`
}

func (WalletCreatedEvent) EventName() string { return "wallet.created" }

// CurrencyAccountCreatedEvent is emitted when a wallet opens a new currency account.
type CurrencyAccountCreatedEvent struct {
	baseEvent
	WalletID  uuid.UUID `json:"wallet_id"`
	AccountID uuid.UUID `json:"account_id"`
	Currency  Currency  `json:"currency"`
}

func (CurrencyAccountCreatedEvent) EventName() string { return "wallet.account_created" }

// WalletDepositedEvent is emitted when a deposit is applied to an account.
type WalletDepositedEvent struct {
	baseEvent
	WalletID           uuid.UUID       `json:"wallet_id"`
	AccountID          uuid.UUID       `json:"account_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           Currency        `json:"currency"`
	PaymentReferenceID string          `json:"payment_reference_id,omitempty"`
}

func (WalletDepositedEvent) EventName() string { return "wallet.deposited" }

// WalletWithdrawnEvent is emitted when an outbound transaction debits an account.
type WalletWithdrawnEvent struct {
	baseEvent
	WalletID     uuid.UUID       `json:"wallet_id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency"`
	OrderContext string          `json:"order_context,omitempty"`
}

func (WalletWithdrawnEvent) EventName() string { return "wallet.withdrawn" }

// TransferInitiatedEvent is emitted on the sender side of a transfer.
type TransferInitiatedEvent struct {
	baseEvent
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	Reference     string          `json:"reference"`
}

func (TransferInitiatedEvent) EventName() string { return "transfer.initiated" }

// TransferCompletedEvent is emitted on the receiver side of a transfer.
type TransferCompletedEvent struct {
	baseEvent
	RelatedTransactionID uuid.UUID       `json:"related_transaction_id"`
	TransactionID        uuid.UUID       `json:"transaction_id"`
	WalletID             uuid.UUID       `json:"wallet_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             Currency        `json:"currency"`
	NewBalance           decimal.Decimal `json:"new_balance"`
}

func (TransferCompletedEvent) EventName() string { return "transfer.completed" }

// RefundCompletedEvent is emitted when a refund is applied to an account.
type RefundCompletedEvent struct {
	baseEvent
	OriginalTransactionID uuid.UUID       `json:"original_transaction_id"`
	RefundTransactionID   uuid.UUID       `json:"refund_transaction_id"`
	WalletID              uuid.UUID       `json:"wallet_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              Currency        `json:"currency"`
	NewBalance            decimal.Decimal `json:"new_balance"`
}

func (RefundCompletedEvent) EventName() string { return "refund.completed" }

// CreditAssignedEvent is emitted when a credit line is granted to a wallet.
type CreditAssignedEvent struct {
	baseEvent
	WalletID    uuid.UUID       `json:"wallet_id"`
	UserID      uuid.UUID       `json:"user_id"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Currency    Currency        `json:"currency"`
	DueDate     time.Time       `json:"due_date"`
}

func (CreditAssignedEvent) EventName() string { return "credit.assigned" }

// BankAccountAddedEvent is emitted when a bank account is attached to a wallet.
type BankAccountAddedEvent struct {
	baseEvent
	WalletID      uuid.UUID `json:"wallet_id"`
	BankAccountID uuid.UUID `json:"bank_account_id"`
	BankName      string    `json:"bank_name"`
}

func (BankAccountAddedEvent) EventName() string { return "wallet.bank_account_added" }

// TransactionCompletedEvent carries the amount/currency/description and
// references external subscribers rely on for balance-change notification.
type TransactionCompletedEvent struct {
	baseEvent
	TransactionID      uuid.UUID            `json:"transaction_id"`
	TransactionNumber  string               `json:"transaction_number"`
	WalletID           uuid.UUID            `json:"wallet_id"`
	UserID             uuid.UUID            `json:"user_id"`
	Amount             decimal.Decimal      `json:"amount"`
	Currency           Currency             `json:"currency"`
	Direction          TransactionDirection `json:"direction"`
	Type               TransactionType      `json:"type"`
	Description        string               `json:"description"`
	PaymentReferenceID string               `json:"payment_reference_id,omitempty"`
	OrderContext       string               `json:"order_context,omitempty"`
}

func (TransactionCompletedEvent) EventName() string { return "transaction.completed" }

// TransactionFailedEvent is emitted when a transaction reaches the Failed state.
type TransactionFailedEvent struct {
	baseEvent
	TransactionID uuid.UUID `json:"transaction_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Reason        string    `json:"reason"`
}

func (TransactionFailedEvent) EventName() string { return "transaction.failed" }
