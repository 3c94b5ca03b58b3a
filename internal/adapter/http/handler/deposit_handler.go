package handler

import (
	"wallet-ledger-engine/internal/adapter/http/dto"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
	"wallet-ledger-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// DepositHandler handles deposit endpoints and the gateway return callback.
type DepositHandler struct {
	depositSvc ports.DepositService
}

// NewDepositHandler creates a new DepositHandler.
func NewDepositHandler(depositSvc ports.DepositService) *DepositHandler {
	return &DepositHandler{depositSvc: depositSvc}
}

// Deposit handles POST /api/v1/deposits. It reserves a payment with the
// gateway and returns the redirect URL; funds land when the callback
// confirms the payment.
func (h *DepositHandler) Deposit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
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

	result, err := h.depositSvc.InitiateGatewayDeposit(c.Request.Context(), ports.GatewayDepositRequest{
		UserID:      userID,
		Amount:      amount,
		Description: req.Description,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.DepositInitResponse{
		Transaction: toTransactionResponse(result.Transaction),
		Authority:   result.Authority,
		PaymentURL:  result.PaymentURL,
	})
}

// DirectDeposit handles POST /api/v1/deposits/direct. Trusted internal
// callers credit a wallet without a gateway round trip.
func (h *DepositHandler) DirectDeposit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.DirectDepositRequest
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

	txn, err := h.depositSvc.DirectDeposit(c.Request.Context(), ports.DirectDepositRequest{
		UserID:      userID,
		Amount:      amount,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// Callback handles GET /api/v1/payments/callback. The gateway redirects the
// user here after payment; reconciliation is idempotent, so duplicate
// deliveries return the recorded outcome.
func (h *DepositHandler) Callback(c *gin.Context) {
	authority := c.Query("Authority")
	status := c.Query("Status")
	if authority == "" || status == "" {
		response.Error(c, apperror.Validation("Authority and Status are required"))
		return
	}

	result, err := h.depositSvc.ProcessPaymentCallback(c.Request.Context(), ports.PaymentCallbackRequest{
		Authority: authority,
		Status:    status,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CallbackResponse{
		Transaction:      toTransactionResponse(result.Transaction),
		ReferenceID:      result.ReferenceID,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}
