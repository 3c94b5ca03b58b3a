package domain

import (
	"time"

	"github.com/google/uuid"

	"wallet-ledger-engine/pkg/apperror"
)

// WalletPolicy holds the configurable per-wallet limits. Concrete values come
// from configuration, not from the domain.
type WalletPolicy struct {
	MaxCurrencyAccounts int
	MaxBankAccounts     int
	SupportedCurrencies []Currency
}

// Supports reports whether the policy allows accounts in the given currency.
func (p WalletPolicy) Supports(currency Currency) bool {
	for _, c := range p.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// Wallet is the aggregate root owning a user's currency accounts, bank
// accounts and credit lines. One wallet per user; created once, never re-created.
type Wallet struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	IsActive         bool               `json:"is_active"`
	IsDeleted        bool               `json:"is_deleted"`
	CurrencyAccounts []*CurrencyAccount `json:"currency_accounts"`
	BankAccounts     []*BankAccount     `json:"bank_accounts"`
	Credits          []*Credit          `json:"credits"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`

	events []Event
}

// NewWallet creates an active wallet for a user.
func NewWallet(userID uuid.UUID) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, apperror.Validation("user id is required")
	}
	now := time.Now().UTC()
	w := &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.events = append(w.events, WalletCreatedEvent{
		baseEvent: newBaseEvent(),
		WalletID:  w.ID,
		UserID:    userID,
	})
	return w, nil
}

// CreateCurrencyAccount returns the existing active account for the currency,
// or creates one. Idempotent for an already-open currency.
func (w *Wallet) CreateCurrencyAccount(currency Currency, policy WalletPolicy) (*CurrencyAccount, error) {
	if err := w.ensureActive(); err != nil {
		return nil, err
	}

	if existing := w.GetCurrencyAccount(currency); existing != nil {
		return existing, nil
	}

	if !policy.Supports(currency) {
		return nil, apperror.ErrInvalidCurrency(string(currency))
	}
	if w.countActiveCurrencyAccounts() >= policy.MaxCurrencyAccounts {
		return nil, apperror.ErrAccountLimitExceeded(policy.MaxCurrencyAccounts)
	}

	account, err := NewCurrencyAccount(w.ID, w.UserID, currency)
	if err != nil {
		return nil, err
	}
	w.CurrencyAccounts = append(w.CurrencyAccounts, account)
	w.UpdatedAt = time.Now().UTC()

	w.events = append(w.events, CurrencyAccountCreatedEvent{
		baseEvent: newBaseEvent(),
		WalletID:  w.ID,
		AccountID: account.ID,
		Currency:  currency,
	})
	return account, nil
}

// GetCurrencyAccount returns the non-deleted account for the currency, or nil.
func (w *Wallet) GetCurrencyAccount(currency Currency) *CurrencyAccount {
	for _, a := range w.CurrencyAccounts {
		if a.Currency == currency && !a.IsDeleted {
			return a
		}
	}
	return nil
}

// AddBankAccount attaches a structurally valid bank account, rejecting
// duplicates among non-deleted accounts. The first account becomes default.
func (w *Wallet) AddBankAccount(bankName, accountNumber, cardNumber, shabaNumber, holderName string, policy WalletPolicy) (*BankAccount, error) {
	if err := w.ensureActive(); err != nil {
		return nil, err
	}
	if w.countActiveBankAccounts() >= policy.MaxBankAccounts {
		return nil, apperror.ErrAccountLimitExceeded(policy.MaxBankAccounts)
	}
	for _, b := range w.BankAccounts {
		if b.AccountNumber == accountNumber && !b.IsDeleted {
			return nil, apperror.ErrDuplicateBankAccount(accountNumber)
		}
	}

	account, err := NewBankAccount(w.ID, bankName, accountNumber, cardNumber, shabaNumber, holderName)
	if err != nil {
		return nil, err
	}
	w.BankAccounts = append(w.BankAccounts, account)
	w.UpdatedAt = time.Now().UTC()

	if w.countActiveBankAccounts() == 1 {
		if err := account.SetAsDefault(); err != nil {
			return nil, err
		}
	}

	w.events = append(w.events, BankAccountAddedEvent{
		baseEvent:     newBaseEvent(),
		WalletID:      w.ID,
		BankAccountID: account.ID,
		BankName:      account.BankName,
	})
	return account, nil
}

// RemoveBankAccount soft-deletes the account. If it was the default, the next
// active account is promoted.
func (w *Wallet) RemoveBankAccount(bankAccountID uuid.UUID) error {
	var target *BankAccount
	for _, b := range w.BankAccounts {
		if b.ID == bankAccountID && !b.IsDeleted {
			target = b
			break
		}
	}
	if target == nil {
		return apperror.ErrNotFound("bank account")
	}

	wasDefault := target.IsDefault
	target.SoftDelete()
	w.UpdatedAt = time.Now().UTC()

	if wasDefault {
		for _, b := range w.BankAccounts {
			if !b.IsDeleted && b.IsActive {
				return b.SetAsDefault()
			}
		}
	}
	return nil
}

// DefaultBankAccount returns the wallet's default bank account, or nil.
func (w *Wallet) DefaultBankAccount() *BankAccount {
	for _, b := range w.BankAccounts {
		if b.IsDefault && !b.IsDeleted {
			return b
		}
	}
	return nil
}

// GetActiveCredit returns the single active credit line, or nil.
func (w *Wallet) GetActiveCredit() *Credit {
	for _, c := range w.Credits {
		if c.Status == CreditStatusActive && !c.IsDeleted {
			return c
		}
	}
	return nil
}

// AssignCredit grants a credit line. A second concurrent active line is refused.
func (w *Wallet) AssignCredit(creditLimit Money, dueDate time.Time, description string) (*Credit, error) {
	if err := w.ensureActive(); err != nil {
		return nil, err
	}
	if w.GetActiveCredit() != nil {
		return nil, apperror.ErrActiveCreditExists()
	}

	credit, err := NewCredit(w.ID, creditLimit, dueDate, description)
	if err != nil {
		return nil, err
	}
	w.Credits = append(w.Credits, credit)
	w.UpdatedAt = time.Now().UTC()

	w.events = append(w.events, CreditAssignedEvent{
		baseEvent:   newBaseEvent(),
		WalletID:    w.ID,
		UserID:      w.UserID,
		CreditLimit: creditLimit.Value,
		Currency:    creditLimit.Currency,
		DueDate:     dueDate,
	})
	return credit, nil
}

// HasSufficientBalance reports whether the account in the given currency holds
// at least the amount.
func (w *Wallet) HasSufficientBalance(amount Money) bool {
	account := w.GetCurrencyAccount(amount.Currency)
	if account == nil {
		return false
	}
	return account.HasSufficientBalance(amount)
}

// Activate re-enables the wallet. Owned accounts are re-activated individually.
func (w *Wallet) Activate() {
	w.IsActive = true
	w.UpdatedAt = time.Now().UTC()
}

// Deactivate disables the wallet and cascades to owned accounts.
func (w *Wallet) Deactivate() {
	w.IsActive = false
	w.UpdatedAt = time.Now().UTC()

	for _, a := range w.CurrencyAccounts {
		if !a.IsDeleted {
			a.Deactivate()
		}
	}
	for _, b := range w.BankAccounts {
		if !b.IsDeleted {
			b.Deactivate()
		}
	}
}

// SoftDelete marks the wallet and owned accounts deleted. Refused while any
// currency account still holds a positive balance.
func (w *Wallet) SoftDelete() error {
	for _, a := range w.CurrencyAccounts {
		if !a.IsDeleted && a.Balance.IsPositive() {
			return apperror.ErrBalanceNotEmpty()
		}
	}

	w.IsDeleted = true
	w.IsActive = false
	w.UpdatedAt = time.Now().UTC()

	for _, a := range w.CurrencyAccounts {
		if !a.IsDeleted {
			if err := a.SoftDelete(); err != nil {
				return err
			}
		}
	}
	for _, b := range w.BankAccounts {
		if !b.IsDeleted {
			b.SoftDelete()
		}
	}
	return nil
}

// PullEvents drains events from the wallet and all owned currency accounts.
func (w *Wallet) PullEvents() []Event {
	evts := w.events
	w.events = nil
	for _, a := range w.CurrencyAccounts {
		evts = append(evts, a.PullEvents()...)
	}
	return evts
}

func (w *Wallet) countActiveCurrencyAccounts() int {
	n := 0
	for _, a := range w.CurrencyAccounts {
		if !a.IsDeleted {
			n++
		}
	}
	return n
}

func (w *Wallet) countActiveBankAccounts() int {
	n := 0
	for _, b := range w.BankAccounts {
		if !b.IsDeleted {
			n++
		}
	}
	return n
}

func (w *Wallet) ensureActive() error {
	if w.IsDeleted {
		return apperror.ErrInvalidOperation("wallet has been deleted")
	}
	if !w.IsActive {
		return apperror.ErrWalletInactive()
	}
	return nil
}
