package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----
// Rejected before any state change, reported to the caller verbatim.

func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_002", "Amount must be positive", http.StatusBadRequest)
}

func ErrInvalidCurrency(currency string) *AppError {
	return New("VAL_003", fmt.Sprintf("Currency %s is not supported", currency), http.StatusBadRequest)
}

func ErrInvalidBankAccount(message string) *AppError {
	return New("VAL_004", message, http.StatusBadRequest)
}

// ---- Not found (NF) ----

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Business rules (BIZ) ----
// Typed failures callers can branch on; ledger state is unchanged.

func ErrInsufficientBalance() *AppError {
	return New("BIZ_001", "Insufficient balance in currency account", http.StatusPaymentRequired)
}

func ErrWalletInactive() *AppError {
	return New("BIZ_002", "Wallet is not active", http.StatusUnprocessableEntity)
}

func ErrAccountInactive() *AppError {
	return New("BIZ_003", "Currency account is not active", http.StatusUnprocessableEntity)
}

func ErrDuplicateBankAccount(accountNumber string) *AppError {
	return New("BIZ_004", fmt.Sprintf("Bank account %s already exists", accountNumber), http.StatusConflict)
}

func ErrAccountLimitExceeded(limit int) *AppError {
	return New("BIZ_005", fmt.Sprintf("Cannot exceed maximum of %d accounts", limit), http.StatusUnprocessableEntity)
}

func ErrNotRefundable() *AppError {
	return New("BIZ_006", "Transaction is not refundable", http.StatusBadRequest)
}

func ErrRefundExceedsOriginal() *AppError {
	return New("BIZ_007", "Refund amount exceeds the refundable remainder of the original transaction", http.StatusBadRequest)
}

func ErrCreditOverdue() *AppError {
	return New("BIZ_008", "Credit line is overdue", http.StatusUnprocessableEntity)
}

func ErrInsufficientCredit() *AppError {
	return New("BIZ_009", "Insufficient available credit", http.StatusPaymentRequired)
}

func ErrActiveCreditExists() *AppError {
	return New("BIZ_010", "An active credit line already exists for this wallet", http.StatusConflict)
}

func ErrWalletExists() *AppError {
	return New("BIZ_011", "User already has a wallet", http.StatusConflict)
}

func ErrSelfTransfer() *AppError {
	return New("BIZ_012", "Cannot transfer to the same wallet", http.StatusBadRequest)
}

func ErrDailyLimitExceeded() *AppError {
	return New("BIZ_013", "Daily transaction limit exceeded", http.StatusUnprocessableEntity)
}

func ErrBalanceNotEmpty() *AppError {
	return New("BIZ_014", "Cannot delete while a positive balance remains", http.StatusUnprocessableEntity)
}

func ErrBankAccountNotVerified() *AppError {
	return New("BIZ_015", "Bank account is not verified", http.StatusUnprocessableEntity)
}

// ---- Invariant violations (INV) ----
// Programming/integrity faults; always raised, never swallowed.

func ErrCurrencyMismatch(want, got string) *AppError {
	return New("INV_001", fmt.Sprintf("Currency mismatch: %s vs %s", want, got), http.StatusInternalServerError)
}

func ErrInvalidTransition(message string) *AppError {
	return New("INV_002", message, http.StatusInternalServerError)
}

func ErrInvalidOperation(message string) *AppError {
	return New("INV_003", message, http.StatusInternalServerError)
}

// ---- Payment gateway (GW) ----

func ErrGatewayFailure(message string) *AppError {
	return New("GW_001", message, http.StatusBadGateway)
}

func ErrVerificationFailed(message string) *AppError {
	return New("GW_002", message, http.StatusBadRequest)
}

func ErrAmountMismatch() *AppError {
	return New("GW_003", "Verified amount does not match the recorded transaction amount", http.StatusBadRequest)
}

// ---- Identity (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Operation not permitted for this user", http.StatusForbidden)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
