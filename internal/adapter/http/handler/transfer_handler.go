package handler

import (
	"wallet-ledger-engine/internal/adapter/http/dto"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
	"wallet-ledger-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles wallet-to-wallet transfers and withdrawals to bank
// accounts.
type TransferHandler struct {
	transferSvc   ports.TransferService
	withdrawalSvc ports.WithdrawalService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService, withdrawalSvc ports.WithdrawalService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc, withdrawalSvc: withdrawalSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *TransferHandler) Transfer(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	receiverID, err := uuid.Parse(req.ReceiverUserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid receiver user id"))
		return
	}

	amount, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderUserID:   userID,
		ReceiverUserID: receiverID,
		Amount:         amount,
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TransferResponse{
		OutTransaction: toTransactionResponse(result.OutTransaction),
		InTransaction:  toTransactionResponse(result.InTransaction),
		Fee:            result.Fee.Value.String(),
	}
	if result.FeeTransaction != nil {
		feeResp := toTransactionResponse(result.FeeTransaction)
		resp.FeeTransaction = &feeResp
	}
	response.Created(c, resp)
}

// Withdraw handles POST /api/v1/withdrawals.
func (h *TransferHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := parseMoney(req.Amount, req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	withdrawalReq := ports.WithdrawalRequest{
		UserID:      userID,
		Amount:      amount,
		Description: req.Description,
	}
	if req.BankAccountID != nil {
		bankID, err := uuid.Parse(*req.BankAccountID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid bank account id"))
			return
		}
		withdrawalReq.BankAccountID = &bankID
	}

	txn, err := h.withdrawalSvc.RequestWithdrawal(c.Request.Context(), withdrawalReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}
