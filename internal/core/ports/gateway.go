package ports

import (
	"context"

	"wallet-ledger-engine/internal/core/domain"
)

// PaymentGatewayClient talks to the external payment provider. Create reserves
// a payment and returns the redirect data; Verify confirms a completed payment
// after the user returns through the callback.
type PaymentGatewayClient interface {
	CreatePayment(ctx context.Context, req GatewayPaymentRequest) (*GatewayPaymentResponse, error)
	VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*GatewayVerifyResponse, error)
}

// GatewayPaymentRequest holds the payment reservation input.
type GatewayPaymentRequest struct {
	Amount      domain.Money
	Description string
	CallbackURL string
}

// GatewayPaymentResponse holds the provider's reservation result.
type GatewayPaymentResponse struct {
	Authority  string
	PaymentURL string
}

// GatewayVerifyResponse holds the provider's settlement confirmation.
type GatewayVerifyResponse struct {
	ReferenceID string
	Amount      domain.Money
	CardPan     string
}
