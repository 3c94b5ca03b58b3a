package dto

// IssueTokenRequest is the request body for issuing a bearer token.
type IssueTokenRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// TokenResponse is the response body for a freshly issued token.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateAccountRequest is the request body for opening a currency account.
type CreateAccountRequest struct {
	Currency string `json:"currency" binding:"required,len=3"`
}

// AddBankAccountRequest is the request body for attaching a bank account.
type AddBankAccountRequest struct {
	BankName      string `json:"bank_name" binding:"required,min=2,max=100"`
	AccountNumber string `json:"account_number" binding:"required,min=5,max=30"`
	CardNumber    string `json:"card_number,omitempty"`
	ShabaNumber   string `json:"shaba_number,omitempty"`
	HolderName    string `json:"holder_name,omitempty"`
}

// DepositRequest is the request body for a gateway-funded deposit.
type DepositRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Description string `json:"description,omitempty"`
	CallbackURL string `json:"callback_url,omitempty" binding:"omitempty,safe_url"`
}

// DirectDepositRequest is the request body for a trusted internal deposit.
type DirectDepositRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty" binding:"omitempty,safe_id"`
}

// PurchaseRequest is the request body for a purchase.
type PurchaseRequest struct {
	Amount       string `json:"amount" binding:"required"`
	Currency     string `json:"currency" binding:"required,len=3"`
	Description  string `json:"description,omitempty"`
	OrderContext string `json:"order_context,omitempty"`
	UseCredit    bool   `json:"use_credit,omitempty"`
	CallbackURL  string `json:"callback_url,omitempty" binding:"omitempty,safe_url"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	ReceiverUserID string `json:"receiver_user_id" binding:"required,uuid"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required,len=3"`
	Description    string `json:"description,omitempty"`
}

// RefundRequest is the request body for a refund. Amount omitted means the
// remaining refundable balance of the original transaction.
type RefundRequest struct {
	OriginalTransactionID string  `json:"original_transaction_id" binding:"required,uuid"`
	Amount                *string `json:"amount,omitempty"`
	Currency              string  `json:"currency,omitempty" binding:"required_with=Amount,omitempty,len=3"`
	Reason                string  `json:"reason" binding:"required,max=500"`
}

// WithdrawalRequest is the request body for a withdrawal. BankAccountID
// omitted targets the default bank account.
type WithdrawalRequest struct {
	Amount        string  `json:"amount" binding:"required"`
	Currency      string  `json:"currency" binding:"required,len=3"`
	BankAccountID *string `json:"bank_account_id,omitempty" binding:"omitempty,uuid"`
	Description   string  `json:"description,omitempty"`
}

// AssignCreditRequest is the request body for granting a credit line.
type AssignCreditRequest struct {
	CreditLimit string `json:"credit_limit" binding:"required"`
	Currency    string `json:"currency" binding:"required,len=3"`
	DueDate     string `json:"due_date" binding:"required"` // RFC 3339
	Description string `json:"description,omitempty"`
}

// WalletResponse is the full wallet aggregate view.
type WalletResponse struct {
	ID               string                    `json:"id"`
	UserID           string                    `json:"user_id"`
	IsActive         bool                      `json:"is_active"`
	CurrencyAccounts []CurrencyAccountResponse `json:"currency_accounts"`
	BankAccounts     []BankAccountResponse     `json:"bank_accounts"`
	Credits          []CreditResponse          `json:"credits"`
	CreatedAt        string                    `json:"created_at"`
}

// CurrencyAccountResponse is a single currency account view.
type CurrencyAccountResponse struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	IsActive bool   `json:"is_active"`
}

// BankAccountResponse is a bank account view with masked numbers.
type BankAccountResponse struct {
	ID            string `json:"id"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"` // masked
	CardNumber    string `json:"card_number,omitempty"` // masked
	HolderName    string `json:"holder_name,omitempty"`
	IsVerified    bool   `json:"is_verified"`
	IsDefault     bool   `json:"is_default"`
}

// CreditResponse is a credit line view.
type CreditResponse struct {
	ID          string  `json:"id"`
	CreditLimit string  `json:"credit_limit"`
	UsedCredit  string  `json:"used_credit"`
	Currency    string  `json:"currency"`
	GrantedDate string  `json:"granted_date"`
	DueDate     string  `json:"due_date"`
	SettledDate *string `json:"settled_date,omitempty"`
	Status      string  `json:"status"`
}

// TransactionResponse is a single ledger entry view.
type TransactionResponse struct {
	ID                   string  `json:"id"`
	TransactionNumber    string  `json:"transaction_number"`
	Amount               string  `json:"amount"`
	Currency             string  `json:"currency"`
	Direction            string  `json:"direction"`
	Type                 string  `json:"type"`
	Status               string  `json:"status"`
	Description          string  `json:"description,omitempty"`
	IsCredit             bool    `json:"is_credit,omitempty"`
	DueDate              *string `json:"due_date,omitempty"`
	PaymentReferenceID   string  `json:"payment_reference_id,omitempty"`
	RelatedTransactionID *string `json:"related_transaction_id,omitempty"`
	OrderContext         string  `json:"order_context,omitempty"`
	TransactionDate      string  `json:"transaction_date"`
	ProcessedAt          *string `json:"processed_at,omitempty"`
}

// DepositInitResponse is the redirect data for a pending gateway deposit.
type DepositInitResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Authority   string              `json:"authority"`
	PaymentURL  string              `json:"payment_url"`
}

// PurchaseResponse reports the routing outcome of a purchase.
type PurchaseResponse struct {
	Mode          string                `json:"mode"`
	Transactions  []TransactionResponse `json:"transactions"`
	GatewayAmount *string               `json:"gateway_amount,omitempty"`
	Authority     string                `json:"authority,omitempty"`
	PaymentURL    string                `json:"payment_url,omitempty"`
}

// TransferResponse carries the linked entries of a transfer. FeeTransaction
// is absent when the fee schedule charged nothing.
type TransferResponse struct {
	OutTransaction TransactionResponse  `json:"out_transaction"`
	InTransaction  TransactionResponse  `json:"in_transaction"`
	FeeTransaction *TransactionResponse `json:"fee_transaction,omitempty"`
	Fee            string               `json:"fee"`
}

// CallbackResponse reports the outcome of gateway callback reconciliation.
type CallbackResponse struct {
	Transaction      TransactionResponse `json:"transaction"`
	ReferenceID      string              `json:"reference_id,omitempty"`
	AlreadyProcessed bool                `json:"already_processed"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}
