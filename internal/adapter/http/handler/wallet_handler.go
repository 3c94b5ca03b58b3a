package handler

import (
	"math"
	"strconv"
	"strings"
	"time"

	"wallet-ledger-engine/internal/adapter/http/dto"
	"wallet-ledger-engine/internal/adapter/http/middleware"
	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
	"wallet-ledger-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet aggregate endpoints: lifecycle, currency
// accounts, bank accounts, credit lines and the transaction history.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// CreateWallet handles POST /api/v1/wallets.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	w, err := h.walletSvc.CreateWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(w))
}

// GetWallet handles GET /api/v1/wallets/me.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	w, err := h.walletSvc.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(w))
}

// CreateAccount handles POST /api/v1/wallets/me/accounts.
func (h *WalletHandler) CreateAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.walletSvc.CreateCurrencyAccount(c.Request.Context(), userID,
		domain.Currency(strings.ToUpper(req.Currency)))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toAccountResponse(account))
}

// AddBankAccount handles POST /api/v1/wallets/me/bank-accounts.
func (h *WalletHandler) AddBankAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.AddBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	bank, err := h.walletSvc.AddBankAccount(c.Request.Context(), ports.AddBankAccountRequest{
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		CardNumber:    req.CardNumber,
		ShabaNumber:   req.ShabaNumber,
		HolderName:    req.HolderName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toBankAccountResponse(bank))
}

// RemoveBankAccount handles DELETE /api/v1/wallets/me/bank-accounts/:id.
func (h *WalletHandler) RemoveBankAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	bankID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid bank account id"))
		return
	}

	if err := h.walletSvc.RemoveBankAccount(c.Request.Context(), userID, bankID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"removed": true})
}

// VerifyBankAccount handles POST /api/v1/wallets/me/bank-accounts/:id/verify.
func (h *WalletHandler) VerifyBankAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	bankID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid bank account id"))
		return
	}

	if err := h.walletSvc.VerifyBankAccount(c.Request.Context(), userID, bankID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"verified": true})
}

// AssignCredit handles POST /api/v1/wallets/me/credits.
func (h *WalletHandler) AssignCredit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.AssignCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	limit, err := parseMoney(req.CreditLimit, req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	dueDate, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		response.Error(c, apperror.Validation("due_date must be RFC 3339"))
		return
	}

	credit, err := h.walletSvc.AssignCredit(c.Request.Context(), ports.AssignCreditRequest{
		UserID:      userID,
		CreditLimit: limit,
		DueDate:     dueDate,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCreditResponse(credit))
}

// SettleCredit handles POST /api/v1/wallets/me/credits/settle.
func (h *WalletHandler) SettleCredit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	txn, err := h.walletSvc.SettleCredit(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if txn == nil {
		// Unused line closed without a ledger entry.
		response.OK(c, gin.H{"settled": true})
		return
	}
	response.OK(c, toTransactionResponse(txn))
}

// ListTransactions handles GET /api/v1/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.TransactionListParams{
		Page:     page,
		PageSize: pageSize,
	}

	if a := c.Query("account_id"); a != "" {
		if id, err := uuid.Parse(a); err == nil {
			params.AccountID = &id
		}
	}
	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(strings.ToUpper(s))
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(strings.ToUpper(t))
		params.Type = &txType
	}
	if f := c.Query("from"); f != "" {
		if v, err := time.Parse(time.RFC3339, f); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := time.Parse(time.RFC3339, t); err == nil {
			params.To = &v
		}
	}

	txns, total, err := h.walletSvc.ListTransactions(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// currentUserID pulls the authenticated user from the request context. A
// missing value means the auth middleware did not run; the request is
// rejected and the caller should return immediately.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// parseMoney converts a decimal amount string plus currency code into Money.
func parseMoney(amount, currency string) (domain.Money, error) {
	m, err := domain.ParseMoney(amount, domain.Currency(strings.ToUpper(currency)))
	if err != nil {
		return domain.Money{}, err
	}
	return m, nil
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	resp := dto.WalletResponse{
		ID:               w.ID.String(),
		UserID:           w.UserID.String(),
		IsActive:         w.IsActive,
		CurrencyAccounts: make([]dto.CurrencyAccountResponse, 0, len(w.CurrencyAccounts)),
		BankAccounts:     make([]dto.BankAccountResponse, 0, len(w.BankAccounts)),
		Credits:          make([]dto.CreditResponse, 0, len(w.Credits)),
		CreatedAt:        w.CreatedAt.Format(time.RFC3339),
	}
	for _, a := range w.CurrencyAccounts {
		resp.CurrencyAccounts = append(resp.CurrencyAccounts, toAccountResponse(a))
	}
	for _, b := range w.BankAccounts {
		resp.BankAccounts = append(resp.BankAccounts, toBankAccountResponse(b))
	}
	for _, cr := range w.Credits {
		resp.Credits = append(resp.Credits, toCreditResponse(cr))
	}
	return resp
}

func toAccountResponse(a *domain.CurrencyAccount) dto.CurrencyAccountResponse {
	return dto.CurrencyAccountResponse{
		ID:       a.ID.String(),
		Currency: string(a.Currency),
		Balance:  a.Balance.Value.String(),
		IsActive: a.IsActive,
	}
}

func toBankAccountResponse(b *domain.BankAccount) dto.BankAccountResponse {
	return dto.BankAccountResponse{
		ID:            b.ID.String(),
		BankName:      b.BankName,
		AccountNumber: b.MaskedAccountNumber(),
		CardNumber:    b.MaskedCardNumber(),
		HolderName:    b.AccountHolderName,
		IsVerified:    b.IsVerified,
		IsDefault:     b.IsDefault,
	}
}

func toCreditResponse(cr *domain.Credit) dto.CreditResponse {
	resp := dto.CreditResponse{
		ID:          cr.ID.String(),
		CreditLimit: cr.CreditLimit.Value.String(),
		UsedCredit:  cr.UsedCredit.Value.String(),
		Currency:    string(cr.CreditLimit.Currency),
		GrantedDate: cr.GrantedDate.Format(time.RFC3339),
		DueDate:     cr.DueDate.Format(time.RFC3339),
		Status:      string(cr.Status),
	}
	if cr.SettledDate != nil {
		s := cr.SettledDate.Format(time.RFC3339)
		resp.SettledDate = &s
	}
	return resp
}

// toTransactionResponse converts a domain.Transaction to its DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:                 tx.ID.String(),
		TransactionNumber:  tx.TransactionNumber,
		Amount:             tx.Amount.Value.String(),
		Currency:           string(tx.Amount.Currency),
		Direction:          string(tx.Direction),
		Type:               string(tx.Type),
		Status:             string(tx.Status),
		Description:        tx.Description,
		IsCredit:           tx.IsCredit,
		PaymentReferenceID: tx.PaymentReferenceID,
		OrderContext:       tx.OrderContext,
		TransactionDate:    tx.TransactionDate.Format(time.RFC3339),
	}
	if tx.DueDate != nil {
		s := tx.DueDate.Format(time.RFC3339)
		resp.DueDate = &s
	}
	if tx.RelatedTransactionID != nil {
		s := tx.RelatedTransactionID.String()
		resp.RelatedTransactionID = &s
	}
	if tx.ProcessedAt != nil {
		s := tx.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
