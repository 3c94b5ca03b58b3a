package domain

import (
	"time"

	"github.com/google/uuid"

	"wallet-ledger-engine/pkg/apperror"
)

// CurrencyAccount is a single-currency balance ledger within a wallet.
// Balance mutates only through processing a Transaction that targets it.
type CurrencyAccount struct {
	ID        uuid.UUID `json:"id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	UserID    uuid.UUID `json:"user_id"`
	Currency  Currency  `json:"currency"`
	Balance   Money     `json:"balance"`
	IsActive  bool      `json:"is_active"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	events []Event
}

// NewCurrencyAccount creates an active zero-balance account for a wallet.
func NewCurrencyAccount(walletID, userID uuid.UUID, currency Currency) (*CurrencyAccount, error) {
	if walletID == uuid.Nil {
		return nil, apperror.Validation("wallet id is required")
	}
	now := time.Now().UTC()
	return &CurrencyAccount{
		ID:        uuid.New(),
		WalletID:  walletID,
		UserID:    userID,
		Currency:  currency,
		Balance:   ZeroMoney(currency),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CreateDepositTransaction builds a pending inbound Deposit transaction
// targeting this account.
func (a *CurrencyAccount) CreateDepositTransaction(amount Money, description, paymentReferenceID string) (*Transaction, error) {
	if err := a.ensureActive(); err != nil {
		return nil, err
	}
	if err := a.validateAmount(amount); err != nil {
		return nil, err
	}
	return NewTransaction(TransactionSpec{
		WalletID:           a.WalletID,
		CurrencyAccountID:  a.ID,
		UserID:             a.UserID,
		Amount:             amount,
		Direction:          DirectionIn,
		Type:               TypeDeposit,
		Description:        description,
		PaymentReferenceID: paymentReferenceID,
	})
}

// CreatePurchaseTransaction builds a pending outbound Purchase transaction.
// The sufficiency check here is advisory; ProcessPurchase re-checks before mutating.
func (a *CurrencyAccount) CreatePurchaseTransaction(amount Money, description, orderContext string) (*Transaction, error) {
	if err := a.ensureActive(); err != nil {
		return nil, err
	}
	if err := a.validateAmount(amount); err != nil {
		return nil, err
	}
	if !a.HasSufficientBalance(amount) {
		return nil, apperror.ErrInsufficientBalance()
	}
	return NewTransaction(TransactionSpec{
		WalletID:          a.WalletID,
		CurrencyAccountID: a.ID,
		UserID:            a.UserID,
		Amount:            amount,
		Direction:         DirectionOut,
		Type:              TypePurchase,
		Description:       description,
		OrderContext:      orderContext,
	})
}

// CreateWithdrawalTransaction builds a pending outbound Withdrawal transaction
// for transfer to a real bank account.
func (a *CurrencyAccount) CreateWithdrawalTransaction(amount Money, description string) (*Transaction, error) {
	if err := a.ensureActive(); err != nil {
		return nil, err
	}
	if err := a.validateAmount(amount); err != nil {
		return nil, err
	}
	if !a.HasSufficientBalance(amount) {
		return nil, apperror.ErrInsufficientBalance()
	}
	return NewTransaction(TransactionSpec{
		WalletID:          a.WalletID,
		CurrencyAccountID: a.ID,
		UserID:            a.UserID,
		Amount:            amount,
		Direction:         DirectionOut,
		Type:              TypeWithdrawal,
		Description:       description,
	})
}

// ProcessDeposit applies an inbound deposit transaction: balance increases,
// the transaction completes, and a deposited event is recorded.
func (a *CurrencyAccount) ProcessDeposit(t *Transaction) error {
	if err := a.checkOwnership(t); err != nil {
		return err
	}
	if t.Direction != DirectionIn {
		return apperror.ErrInvalidOperation("only inbound transactions can be processed as deposits")
	}
	if t.Type != TypeDeposit {
		return apperror.ErrInvalidOperation("only deposit transactions can be processed as deposits")
	}
	if t.Status != StatusPending {
		return apperror.ErrInvalidOperation("only pending transactions can be processed")
	}
	if err := a.ensureActive(); err != nil {
		return err
	}

	newBalance, err := a.Balance.Add(t.Amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	t.MarkAsCompleted()

	a.events = append(a.events, WalletDepositedEvent{
		baseEvent:          newBaseEvent(),
		WalletID:           a.WalletID,
		AccountID:          a.ID,
		Amount:             t.Amount.Value,
		Currency:           a.Currency,
		PaymentReferenceID: t.PaymentReferenceID,
	})
	return nil
}

// ProcessPurchase applies an outbound purchase or withdrawal. Sufficiency is
// re-checked immediately before mutating: the account may already have been
// debited earlier in the same request.
func (a *CurrencyAccount) ProcessPurchase(t *Transaction) error {
	if err := a.checkOwnership(t); err != nil {
		return err
	}
	if t.Direction != DirectionOut {
		return apperror.ErrInvalidOperation("only outbound transactions can be processed as purchases")
	}
	if t.Status != StatusPending {
		return apperror.ErrInvalidOperation("only pending transactions can be processed")
	}
	if err := a.ensureActive(); err != nil {
		return err
	}
	if !a.HasSufficientBalance(t.Amount) {
		return apperror.ErrInsufficientBalance()
	}

	newBalance, err := a.Balance.Subtract(t.Amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	t.MarkAsCompleted()

	a.events = append(a.events, WalletWithdrawnEvent{
		baseEvent:    newBaseEvent(),
		WalletID:     a.WalletID,
		AccountID:    a.ID,
		Amount:       t.Amount.Value,
		Currency:     a.Currency,
		OrderContext: t.OrderContext,
	})
	return nil
}

// ProcessRefund applies an inbound refund transaction: balance increases.
func (a *CurrencyAccount) ProcessRefund(t *Transaction) error {
	if err := a.checkOwnership(t); err != nil {
		return err
	}
	if t.Type != TypeRefund {
		return apperror.ErrInvalidOperation("transaction must be a refund type")
	}
	if t.Status != StatusPending {
		return apperror.ErrInvalidOperation("only pending transactions can be processed")
	}
	if err := a.ensureActive(); err != nil {
		return err
	}

	newBalance, err := a.Balance.Add(t.Amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	t.MarkAsCompleted()

	var originalID uuid.UUID
	if t.RelatedTransactionID != nil {
		originalID = *t.RelatedTransactionID
	}
	a.events = append(a.events, RefundCompletedEvent{
		baseEvent:             newBaseEvent(),
		OriginalTransactionID: originalID,
		RefundTransactionID:   t.ID,
		WalletID:              a.WalletID,
		Amount:                t.Amount.Value,
		Currency:              a.Currency,
		NewBalance:            a.Balance.Value,
	})
	return nil
}

// ProcessTransfer applies one leg of a transfer. The outbound leg debits the
// sender, the inbound leg credits the receiver.
func (a *CurrencyAccount) ProcessTransfer(t *Transaction) error {
	if err := a.checkOwnership(t); err != nil {
		return err
	}
	if t.Type != TypeTransfer {
		return apperror.ErrInvalidOperation("only transfer transactions can be processed as transfers")
	}
	if t.Status != StatusPending {
		return apperror.ErrInvalidOperation("only pending transactions can be processed")
	}
	if err := a.ensureActive(); err != nil {
		return err
	}

	if t.Direction == DirectionOut {
		if !a.HasSufficientBalance(t.Amount) {
			return apperror.ErrInsufficientBalance()
		}
		newBalance, err := a.Balance.Subtract(t.Amount)
		if err != nil {
			return err
		}
		a.Balance = newBalance
	} else {
		newBalance, err := a.Balance.Add(t.Amount)
		if err != nil {
			return err
		}
		a.Balance = newBalance
	}
	a.UpdatedAt = time.Now().UTC()
	t.MarkAsCompleted()

	if t.Direction == DirectionOut {
		a.events = append(a.events, TransferInitiatedEvent{
			baseEvent:     newBaseEvent(),
			TransactionID: t.ID,
			WalletID:      a.WalletID,
			Amount:        t.Amount.Value,
			Currency:      a.Currency,
			Reference:     t.OrderContext,
		})
	} else {
		var relatedID uuid.UUID
		if t.RelatedTransactionID != nil {
			relatedID = *t.RelatedTransactionID
		}
		a.events = append(a.events, TransferCompletedEvent{
			baseEvent:            newBaseEvent(),
			RelatedTransactionID: relatedID,
			TransactionID:        t.ID,
			WalletID:             a.WalletID,
			Amount:               t.Amount.Value,
			Currency:             a.Currency,
			NewBalance:           a.Balance.Value,
		})
	}
	return nil
}

// ProcessFee applies an outbound fee transaction against the account.
func (a *CurrencyAccount) ProcessFee(t *Transaction) error {
	if err := a.checkOwnership(t); err != nil {
		return err
	}
	if t.Type != TypeFee {
		return apperror.ErrInvalidOperation("only fee transactions can be processed as fees")
	}
	if t.Status != StatusPending {
		return apperror.ErrInvalidOperation("only pending transactions can be processed")
	}
	if err := a.ensureActive(); err != nil {
		return err
	}
	if !a.HasSufficientBalance(t.Amount) {
		return apperror.ErrInsufficientBalance()
	}

	newBalance, err := a.Balance.Subtract(t.Amount)
	if err != nil {
		return err
	}
	a.Balance = newBalance
	a.UpdatedAt = time.Now().UTC()
	t.MarkAsCompleted()
	return nil
}

// HasSufficientBalance reports whether the account is usable and holds at
// least the given amount.
func (a *CurrencyAccount) HasSufficientBalance(amount Money) bool {
	return a.IsActive && !a.IsDeleted && a.Balance.GreaterThanOrEqual(amount)
}

// Activate re-enables the account.
func (a *CurrencyAccount) Activate() {
	a.IsActive = true
	a.UpdatedAt = time.Now().UTC()
}

// Deactivate disables the account; processing is rejected until reactivated.
func (a *CurrencyAccount) Deactivate() {
	a.IsActive = false
	a.UpdatedAt = time.Now().UTC()
}

// SoftDelete marks the account deleted. Deletion must never strand funds.
func (a *CurrencyAccount) SoftDelete() error {
	if a.Balance.IsPositive() {
		return apperror.ErrBalanceNotEmpty()
	}
	a.IsDeleted = true
	a.IsActive = false
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// PullEvents drains and returns events collected on this account.
func (a *CurrencyAccount) PullEvents() []Event {
	evts := a.events
	a.events = nil
	return evts
}

func (a *CurrencyAccount) checkOwnership(t *Transaction) error {
	if t == nil {
		return apperror.Validation("transaction is required")
	}
	if t.CurrencyAccountID != a.ID {
		return apperror.ErrInvalidOperation("transaction does not belong to this account")
	}
	return nil
}

func (a *CurrencyAccount) validateAmount(amount Money) error {
	if amount.Currency != a.Currency {
		return apperror.ErrCurrencyMismatch(string(a.Currency), string(amount.Currency))
	}
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

func (a *CurrencyAccount) ensureActive() error {
	if a.IsDeleted {
		return apperror.ErrInvalidOperation("account has been deleted")
	}
	if !a.IsActive {
		return apperror.ErrAccountInactive()
	}
	return nil
}
