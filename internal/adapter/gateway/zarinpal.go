package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"wallet-ledger-engine/config"
	"wallet-ledger-engine/internal/core/domain"
	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// statusOK is the provider's success code for both payment creation and
// verification. statusVerified means the payment was already verified by an
// earlier call; callers treat it as success because verification is
// idempotent on the provider side.
const (
	statusOK       = 100
	statusVerified = 101
)

// ZarinPalClient implements ports.PaymentGatewayClient against the ZarinPal
// v4 REST API.
type ZarinPalClient struct {
	httpClient *http.Client
	merchantID string
	baseURL    string
	paymentURL string
	log        zerolog.Logger
}

// NewZarinPalClient creates a gateway client from config. The HTTP timeout
// bounds each provider call; context cancellation still applies on top.
func NewZarinPalClient(cfg config.GatewayConfig, log zerolog.Logger) *ZarinPalClient {
	return &ZarinPalClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		merchantID: cfg.MerchantID,
		baseURL:    cfg.BaseURL,
		paymentURL: cfg.PaymentURL,
		log:        log,
	}
}

type paymentRequestBody struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type verifyRequestBody struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type responseData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type gatewayResponse struct {
	Data   responseData    `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// CreatePayment reserves a payment with the provider and returns the
// authority plus the user-facing redirect URL.
func (c *ZarinPalClient) CreatePayment(ctx context.Context, req ports.GatewayPaymentRequest) (*ports.GatewayPaymentResponse, error) {
	body := paymentRequestBody{
		MerchantID:  c.merchantID,
		Amount:      req.Amount.Value.IntPart(),
		Description: req.Description,
		CallbackURL: req.CallbackURL,
	}

	resp, err := c.post(ctx, c.baseURL+"/payment/request.json", body)
	if err != nil {
		return nil, err
	}

	if resp.Data.Code != statusOK {
		c.log.Error().
			Int("code", resp.Data.Code).
			Str("message", c.errorMessage(resp)).
			Msg("gateway rejected payment request")
		return nil, apperror.ErrGatewayFailure(c.errorMessage(resp))
	}

	c.log.Info().
		Str("authority", resp.Data.Authority).
		Msg("gateway payment created")

	return &ports.GatewayPaymentResponse{
		Authority:  resp.Data.Authority,
		PaymentURL: c.paymentURL + resp.Data.Authority,
	}, nil
}

// VerifyPayment confirms a completed payment with the provider. Code 101
// (already verified) counts as success.
func (c *ZarinPalClient) VerifyPayment(ctx context.Context, authority string, amount domain.Money) (*ports.GatewayVerifyResponse, error) {
	body := verifyRequestBody{
		MerchantID: c.merchantID,
		Amount:     amount.Value.IntPart(),
		Authority:  authority,
	}

	resp, err := c.post(ctx, c.baseURL+"/payment/verify.json", body)
	if err != nil {
		return nil, err
	}

	if resp.Data.Code != statusOK && resp.Data.Code != statusVerified {
		c.log.Error().
			Int("code", resp.Data.Code).
			Str("authority", authority).
			Str("message", c.errorMessage(resp)).
			Msg("gateway verification failed")
		return nil, apperror.ErrVerificationFailed(c.errorMessage(resp))
	}

	c.log.Info().
		Str("authority", authority).
		Int64("ref_id", resp.Data.RefID).
		Msg("gateway payment verified")

	return &ports.GatewayVerifyResponse{
		ReferenceID: fmt.Sprintf("%d", resp.Data.RefID),
		Amount:      amount,
		CardPan:     resp.Data.CardPan,
	}, nil
}

func (c *ZarinPalClient) post(ctx context.Context, url string, body any) (*gatewayResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal gateway request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build gateway request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperror.ErrGatewayFailure(fmt.Sprintf("gateway unreachable: %v", err))
	}
	defer httpResp.Body.Close() //nolint:errcheck

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, apperror.ErrGatewayFailure(fmt.Sprintf("gateway returned HTTP %d", httpResp.StatusCode))
	}

	var resp gatewayResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, apperror.ErrGatewayFailure(fmt.Sprintf("decode gateway response: %v", err))
	}
	return &resp, nil
}

// errorMessage extracts the provider's error description, falling back to the
// data-level message and then to the numeric code.
func (c *ZarinPalClient) errorMessage(resp *gatewayResponse) string {
	if len(resp.Errors) > 0 && string(resp.Errors) != "[]" && string(resp.Errors) != "null" {
		var e responseError
		if err := json.Unmarshal(resp.Errors, &e); err == nil && e.Message != "" {
			return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
		}
	}
	if resp.Data.Message != "" {
		return fmt.Sprintf("%s (code %d)", resp.Data.Message, resp.Data.Code)
	}
	return fmt.Sprintf("gateway error code %d", resp.Data.Code)
}
