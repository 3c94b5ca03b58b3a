package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wallet-ledger-engine/pkg/apperror"
)

// TransactionDirection tells whether a transaction credits or debits its account.
type TransactionDirection string

const (
	DirectionIn  TransactionDirection = "IN"
	DirectionOut TransactionDirection = "OUT"
)

// TransactionType is the business meaning of a money movement.
type TransactionType string

const (
	TypeDeposit          TransactionType = "DEPOSIT"
	TypeWithdrawal       TransactionType = "WITHDRAWAL"
	TypePurchase         TransactionType = "PURCHASE"
	TypeRefund           TransactionType = "REFUND"
	TypeTransfer         TransactionType = "TRANSFER"
	TypeFee              TransactionType = "FEE"
	TypeCreditSettlement TransactionType = "CREDIT_SETTLEMENT"
)

// TransactionStatus is the lifecycle state. Transitions are monotonic:
// Pending -> Completed | Failed, and Completed is terminal.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusFailed     TransactionStatus = "FAILED"
)

// refundWindow is how long after processing an outbound transaction stays refundable.
const refundWindow = 30 * 24 * time.Hour

const maxDescriptionLen = 500

// allowedTypes maps each direction to its valid transaction types. The single
// constructor validates against this table instead of one factory per type.
var allowedTypes = map[TransactionDirection]map[TransactionType]bool{
	DirectionIn: {
		TypeDeposit:  true,
		TypeRefund:   true,
		TypeTransfer: true,
	},
	DirectionOut: {
		TypePurchase:         true,
		TypeWithdrawal:       true,
		TypeTransfer:         true,
		TypeFee:              true,
		TypeCreditSettlement: true,
	},
}

// Transaction is one directional, typed money movement. Created once, mutated
// only through its lifecycle methods, never deleted.
type Transaction struct {
	ID                   uuid.UUID            `json:"id"`
	TransactionNumber    string               `json:"transaction_number"`
	WalletID             uuid.UUID            `json:"wallet_id"`
	CurrencyAccountID    uuid.UUID            `json:"currency_account_id"`
	UserID               uuid.UUID            `json:"user_id"`
	Amount               Money                `json:"amount"`
	Direction            TransactionDirection `json:"direction"`
	Type                 TransactionType      `json:"type"`
	Status               TransactionStatus    `json:"status"`
	Description          string               `json:"description"`
	IsCredit             bool                 `json:"is_credit"`
	DueDate              *time.Time           `json:"due_date,omitempty"`
	PaymentReferenceID   string               `json:"payment_reference_id,omitempty"`
	RelatedTransactionID *uuid.UUID           `json:"related_transaction_id,omitempty"`
	OrderContext         string               `json:"order_context,omitempty"`
	TransactionDate      time.Time            `json:"transaction_date"`
	ProcessedAt          *time.Time           `json:"processed_at,omitempty"`

	events []Event
}

// TransactionSpec is the input to NewTransaction.
type TransactionSpec struct {
	WalletID             uuid.UUID
	CurrencyAccountID    uuid.UUID
	UserID               uuid.UUID
	Amount               Money
	Direction            TransactionDirection
	Type                 TransactionType
	Description          string
	IsCredit             bool
	DueDate              *time.Time
	PaymentReferenceID   string
	RelatedTransactionID *uuid.UUID
	OrderContext         string
}

// NewTransaction validates the spec and returns a Pending transaction.
// Violations fail here, before any account is touched.
func NewTransaction(spec TransactionSpec) (*Transaction, error) {
	if spec.WalletID == uuid.Nil {
		return nil, apperror.Validation("wallet id is required")
	}
	if spec.CurrencyAccountID == uuid.Nil {
		return nil, apperror.Validation("currency account id is required")
	}
	if spec.UserID == uuid.Nil {
		return nil, apperror.Validation("user id is required")
	}
	if !spec.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	desc := strings.TrimSpace(spec.Description)
	if desc == "" {
		return nil, apperror.Validation("description is required")
	}
	if len(desc) > maxDescriptionLen {
		return nil, apperror.Validation(fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLen))
	}
	if !allowedTypes[spec.Direction][spec.Type] {
		return nil, apperror.Validation(fmt.Sprintf("transaction type %s is not valid for direction %s", spec.Type, spec.Direction))
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:                   uuid.New(),
		TransactionNumber:    GenerateTransactionNumber(now),
		WalletID:             spec.WalletID,
		CurrencyAccountID:    spec.CurrencyAccountID,
		UserID:               spec.UserID,
		Amount:               spec.Amount,
		Direction:            spec.Direction,
		Type:                 spec.Type,
		Status:               StatusPending,
		Description:          desc,
		IsCredit:             spec.IsCredit,
		DueDate:              spec.DueDate,
		PaymentReferenceID:   spec.PaymentReferenceID,
		RelatedTransactionID: spec.RelatedTransactionID,
		OrderContext:         spec.OrderContext,
		TransactionDate:      now,
	}, nil
}

// GenerateTransactionNumber builds the globally unique, human-readable number
// carried by every transaction, distinct from its identifier.
func GenerateTransactionNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("TXN-%s-%s", at.Format("20060102"), suffix)
}

// MarkAsCompleted moves the transaction to Completed and records ProcessedAt.
// Completing an already-completed transaction is a no-op.
func (t *Transaction) MarkAsCompleted() {
	if t.Status == StatusCompleted {
		return
	}
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.ProcessedAt = &now

	t.events = append(t.events, TransactionCompletedEvent{
		baseEvent:          newBaseEvent(),
		TransactionID:      t.ID,
		TransactionNumber:  t.TransactionNumber,
		WalletID:           t.WalletID,
		UserID:             t.UserID,
		Amount:             t.Amount.Value,
		Currency:           t.Amount.Currency,
		Direction:          t.Direction,
		Type:               t.Type,
		Description:        t.Description,
		PaymentReferenceID: t.PaymentReferenceID,
		OrderContext:       t.OrderContext,
	})
}

// MarkAsFailed moves the transaction to Failed, appending the reason to the
// description so failure context is never silently dropped. A Completed
// transaction can never become Failed.
func (t *Transaction) MarkAsFailed(reason string) error {
	if t.Status == StatusCompleted {
		return apperror.ErrInvalidTransition("cannot fail a completed transaction")
	}
	now := time.Now().UTC()
	t.Status = StatusFailed
	t.ProcessedAt = &now
	if strings.TrimSpace(reason) != "" {
		t.Description = fmt.Sprintf("%s - Failed: %s", t.Description, reason)
	}

	t.events = append(t.events, TransactionFailedEvent{
		baseEvent:     newBaseEvent(),
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		Reason:        reason,
	})
	return nil
}

// SetPaymentReference attaches the gateway authority to a pending transaction.
func (t *Transaction) SetPaymentReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperror.Validation("payment reference cannot be empty")
	}
	t.PaymentReferenceID = ref
	return nil
}

// SetRelatedTransaction links this transaction to its counterpart (transfers, fees, refunds).
func (t *Transaction) SetRelatedTransaction(id uuid.UUID) {
	t.RelatedTransactionID = &id
}

// IsTerminal reports whether the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// IsRefundable reports whether this transaction can be refunded: completed,
// outbound, not itself a refund, and processed within the refund window.
func (t *Transaction) IsRefundable() bool {
	return t.Status == StatusCompleted &&
		t.Direction == DirectionOut &&
		t.Type != TypeRefund &&
		t.ProcessedAt != nil &&
		t.ProcessedAt.After(time.Now().UTC().Add(-refundWindow))
}

// PullEvents drains and returns events collected on this transaction.
func (t *Transaction) PullEvents() []Event {
	evts := t.events
	t.events = nil
	return evts
}
