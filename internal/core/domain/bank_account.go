package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"wallet-ledger-engine/pkg/apperror"
)

// BankAccount records a real bank destination for refunds and withdrawals.
// Raw numbers are stored; masked forms are computed on read.
type BankAccount struct {
	ID                uuid.UUID `json:"id"`
	WalletID          uuid.UUID `json:"wallet_id"`
	BankName          string    `json:"bank_name"`
	AccountNumber     string    `json:"account_number"`
	CardNumber        string    `json:"card_number,omitempty"`
	ShabaNumber       string    `json:"shaba_number,omitempty"`
	AccountHolderName string    `json:"account_holder_name,omitempty"`
	IsVerified        bool      `json:"is_verified"`
	IsDefault         bool      `json:"is_default"`
	IsActive          bool      `json:"is_active"`
	IsDeleted         bool      `json:"is_deleted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewBankAccount validates the account structurally and returns an active,
// unverified, non-default bank account.
func NewBankAccount(walletID uuid.UUID, bankName, accountNumber, cardNumber, shabaNumber, holderName string) (*BankAccount, error) {
	if walletID == uuid.Nil {
		return nil, apperror.Validation("wallet id is required")
	}
	if err := validateBankAccountInputs(bankName, accountNumber, cardNumber, shabaNumber); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &BankAccount{
		ID:                uuid.New(),
		WalletID:          walletID,
		BankName:          strings.TrimSpace(bankName),
		AccountNumber:     strings.TrimSpace(accountNumber),
		CardNumber:        strings.TrimSpace(cardNumber),
		ShabaNumber:       strings.TrimSpace(shabaNumber),
		AccountHolderName: strings.TrimSpace(holderName),
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// SetAsDefault marks the account as the wallet's default destination.
func (b *BankAccount) SetAsDefault() error {
	if !b.IsActive || b.IsDeleted {
		return apperror.ErrInvalidOperation("cannot set an inactive bank account as default")
	}
	b.IsDefault = true
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// UnsetAsDefault removes the default flag.
func (b *BankAccount) UnsetAsDefault() {
	b.IsDefault = false
	b.UpdatedAt = time.Now().UTC()
}

// Verify marks the account as verified for withdrawals.
func (b *BankAccount) Verify() error {
	if !b.IsActive || b.IsDeleted {
		return apperror.ErrInvalidOperation("cannot verify an inactive bank account")
	}
	b.IsVerified = true
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Activate re-enables the account.
func (b *BankAccount) Activate() {
	b.IsActive = true
	b.UpdatedAt = time.Now().UTC()
}

// Deactivate disables the account. A deactivated account cannot stay default.
func (b *BankAccount) Deactivate() {
	b.IsActive = false
	b.IsDefault = false
	b.UpdatedAt = time.Now().UTC()
}

// SoftDelete marks the account deleted.
func (b *BankAccount) SoftDelete() {
	b.IsDeleted = true
	b.IsActive = false
	b.IsDefault = false
	b.UpdatedAt = time.Now().UTC()
}

// MaskedAccountNumber returns the account number with all but the last four digits hidden.
func (b *BankAccount) MaskedAccountNumber() string {
	if len(b.AccountNumber) <= 4 {
		return b.AccountNumber
	}
	return "****" + b.AccountNumber[len(b.AccountNumber)-4:]
}

// MaskedCardNumber returns the card number with all but the last four digits hidden.
func (b *BankAccount) MaskedCardNumber() string {
	if len(b.CardNumber) <= 4 {
		return b.CardNumber
	}
	return "**** **** **** " + b.CardNumber[len(b.CardNumber)-4:]
}

func validateBankAccountInputs(bankName, accountNumber, cardNumber, shabaNumber string) error {
	bankName = strings.TrimSpace(bankName)
	accountNumber = strings.TrimSpace(accountNumber)
	cardNumber = strings.TrimSpace(cardNumber)
	shabaNumber = strings.TrimSpace(shabaNumber)

	if bankName == "" {
		return apperror.ErrInvalidBankAccount("bank name is required")
	}
	if len(bankName) > 100 {
		return apperror.ErrInvalidBankAccount("bank name cannot exceed 100 characters")
	}

	if accountNumber == "" {
		return apperror.ErrInvalidBankAccount("account number is required")
	}
	if !isDigits(accountNumber) {
		return apperror.ErrInvalidBankAccount("account number must contain only digits")
	}
	if len(accountNumber) < 10 || len(accountNumber) > 20 {
		return apperror.ErrInvalidBankAccount("account number must be between 10 and 20 digits")
	}

	if cardNumber != "" {
		if !isDigits(cardNumber) || len(cardNumber) != 16 {
			return apperror.ErrInvalidBankAccount("card number must be 16 digits")
		}
		if !isValidLuhn(cardNumber) {
			return apperror.ErrInvalidBankAccount("card number failed the check-digit test")
		}
	}

	if shabaNumber != "" {
		if !strings.HasPrefix(shabaNumber, "IR") || len(shabaNumber) != 26 {
			return apperror.ErrInvalidBankAccount("shaba number must start with IR and be 26 characters")
		}
		if !isDigits(shabaNumber[2:]) {
			return apperror.ErrInvalidBankAccount("shaba number is invalid")
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isValidLuhn runs the Luhn check-digit algorithm over a digit-only string.
func isValidLuhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
