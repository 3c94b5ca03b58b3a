package handler

import (
	"wallet-ledger-engine/internal/adapter/http/dto"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
	"wallet-ledger-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles the spending endpoints: purchases and refunds.
type PaymentHandler struct {
	purchaseSvc ports.PurchaseService
	refundSvc   ports.RefundService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(purchaseSvc ports.PurchaseService, refundSvc ports.RefundService) *PaymentHandler {
	return &PaymentHandler{purchaseSvc: purchaseSvc, refundSvc: refundSvc}
}

// Purchase handles POST /api/v1/purchases.
func (h *PaymentHandler) Purchase(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
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

	result, err := h.purchaseSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		UserID:       userID,
		Amount:       amount,
		Description:  req.Description,
		OrderContext: req.OrderContext,
		UseCredit:    req.UseCredit,
		CallbackURL:  req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toPurchaseResponse(result))
}

// Refund handles POST /api/v1/refunds.
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	originalID, err := uuid.Parse(req.OriginalTransactionID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid original transaction id"))
		return
	}

	refundReq := ports.RefundRequest{
		UserID:                userID,
		OriginalTransactionID: originalID,
		Reason:                req.Reason,
	}
	if req.Amount != nil {
		// The service rejects currency mismatches after loading the original
		// transaction.
		amount, err := parseMoney(*req.Amount, req.Currency)
		if err != nil {
			response.Error(c, err)
			return
		}
		refundReq.Amount = &amount
	}

	txn, err := h.refundSvc.Refund(c.Request.Context(), refundReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

func toPurchaseResponse(r *ports.PurchaseResult) dto.PurchaseResponse {
	resp := dto.PurchaseResponse{
		Mode:         string(r.Mode),
		Transactions: make([]dto.TransactionResponse, 0, len(r.Transactions)),
		Authority:    r.Authority,
		PaymentURL:   r.PaymentURL,
	}
	for _, tx := range r.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(tx))
	}
	if r.GatewayAmount != nil {
		s := r.GatewayAmount.Value.String()
		resp.GatewayAmount = &s
	}
	return resp
}
