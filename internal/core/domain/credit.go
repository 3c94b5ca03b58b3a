package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"wallet-ledger-engine/pkg/apperror"
)

// CreditStatus is the lifecycle state of a B2B credit line.
type CreditStatus string

const (
	CreditStatusActive  CreditStatus = "ACTIVE"
	CreditStatusOverdue CreditStatus = "OVERDUE"
	CreditStatusSettled CreditStatus = "SETTLED"
)

// Credit is a pre-approved spending limit settled later, independent of
// wallet balance.
type Credit struct {
	ID                      uuid.UUID    `json:"id"`
	WalletID                uuid.UUID    `json:"wallet_id"`
	CreditLimit             Money        `json:"credit_limit"`
	UsedCredit              Money        `json:"used_credit"`
	GrantedDate             time.Time    `json:"granted_date"`
	DueDate                 time.Time    `json:"due_date"`
	SettledDate             *time.Time   `json:"settled_date,omitempty"`
	Status                  CreditStatus `json:"status"`
	Description             string       `json:"description"`
	SettlementTransactionID *uuid.UUID   `json:"settlement_transaction_id,omitempty"`
	IsDeleted               bool         `json:"is_deleted"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// NewCredit grants a credit line with the given limit and due date.
func NewCredit(walletID uuid.UUID, creditLimit Money, dueDate time.Time, description string) (*Credit, error) {
	if walletID == uuid.Nil {
		return nil, apperror.Validation("wallet id is required")
	}
	if !creditLimit.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !dueDate.After(time.Now().UTC()) {
		return nil, apperror.Validation("credit due date must be in the future")
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperror.Validation("description is required")
	}

	now := time.Now().UTC()
	return &Credit{
		ID:          uuid.New(),
		WalletID:    walletID,
		CreditLimit: creditLimit,
		UsedCredit:  ZeroMoney(creditLimit.Currency),
		GrantedDate: now,
		DueDate:     dueDate,
		Status:      CreditStatusActive,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AvailableCredit returns the unused portion of the limit.
func (c *Credit) AvailableCredit() Money {
	remaining, err := c.CreditLimit.Subtract(c.UsedCredit)
	if err != nil {
		// Limit and usage always share a currency by construction.
		return ZeroMoney(c.CreditLimit.Currency)
	}
	return remaining
}

// CanUseCredit reports whether the line is active, not overdue, and holds
// enough available credit for the amount.
func (c *Credit) CanUseCredit(amount Money) bool {
	if c.Status != CreditStatusActive || c.IsDeleted {
		return false
	}
	if time.Now().UTC().After(c.DueDate) {
		return false
	}
	if amount.Currency != c.CreditLimit.Currency {
		return false
	}
	return c.AvailableCredit().GreaterThanOrEqual(amount)
}

// UseCredit consumes part of the credit line. Using credit past the due date
// fails and flips the line to Overdue.
func (c *Credit) UseCredit(amount Money) error {
	if amount.Currency != c.CreditLimit.Currency {
		return apperror.ErrCurrencyMismatch(string(c.CreditLimit.Currency), string(amount.Currency))
	}
	if c.Status != CreditStatusActive {
		return apperror.ErrInvalidOperation("credit line is not active")
	}
	if time.Now().UTC().After(c.DueDate) {
		c.Status = CreditStatusOverdue
		c.UpdatedAt = time.Now().UTC()
		return apperror.ErrCreditOverdue()
	}

	newUsed, err := c.UsedCredit.Add(amount)
	if err != nil {
		return err
	}
	if newUsed.Value.GreaterThan(c.CreditLimit.Value) {
		return apperror.ErrInsufficientCredit()
	}
	c.UsedCredit = newUsed
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Settle closes the credit line, recording the wallet transaction that paid it off.
func (c *Credit) Settle(settlementTransactionID uuid.UUID) error {
	if c.Status == CreditStatusSettled {
		return apperror.ErrInvalidOperation("credit line is already settled")
	}
	now := time.Now().UTC()
	c.Status = CreditStatusSettled
	c.SettledDate = &now
	c.SettlementTransactionID = &settlementTransactionID
	c.UpdatedAt = now
	return nil
}

// MarkOverdue flips an active line past its due date to Overdue.
func (c *Credit) MarkOverdue() {
	if c.Status == CreditStatusActive && time.Now().UTC().After(c.DueDate) {
		c.Status = CreditStatusOverdue
		c.UpdatedAt = time.Now().UTC()
	}
}
