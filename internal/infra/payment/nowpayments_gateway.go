package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
)

// NowPaymentsGateway implements adapter.PaymentGateway using direct HTTP calls
// to a NOWPayments-compatible API. It performs exactly one attempt per call;
// retry policy belongs to the caller.
type NowPaymentsGateway struct {
	baseURL     string
	apiKey      string
	ipnSecret   string
	callbackURL string
	client      *http.Client
}

func NewNowPaymentsGateway(baseURL, apiKey, ipnSecret, callbackURL string, timeout time.Duration) *NowPaymentsGateway {
	if baseURL == "" {
		baseURL = "https://api.nowpayments.io/v1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &NowPaymentsGateway{
		baseURL:     baseURL,
		apiKey:      apiKey,
		ipnSecret:   ipnSecret,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: timeout},
	}
}

func (g *NowPaymentsGateway) Name() string { return "nowpayments" }

type createPaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
}

type createPaymentResponse struct {
	PaymentID     json.Number `json:"payment_id"`
	PayAddress    string      `json:"pay_address"`
	PayAmount     float64     `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
	PaymentStatus string      `json:"payment_status"`
}

type paymentStatusResponse struct {
	PaymentStatus string `json:"payment_status"`
}

// CreatePayment requests a deposit address for the order. Network faults and
// non-2xx responses both collapse into ErrProviderUnavailable so the caller can
// show a single "try again later" affordance.
func (g *NowPaymentsGateway) CreatePayment(ctx context.Context, amountUSD float64, payCurrency, orderID, description string) (*adapter.CreatedPayment, error) {
	body, err := json.Marshal(createPaymentRequest{
		PriceAmount:      amountUSD,
		PriceCurrency:    "usd",
		PayCurrency:      payCurrency,
		OrderID:          orderID,
		OrderDescription: description,
		IPNCallbackURL:   g.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal create payment: %w", err)
	}

	raw, err := g.do(ctx, http.MethodPost, g.baseURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var resp createPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: unmarshal create payment response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.PayAddress == "" {
		return nil, fmt.Errorf("%w: provider returned no pay address", domain.ErrProviderUnavailable)
	}
	return &adapter.CreatedPayment{
		ProviderPaymentID: resp.PaymentID.String(),
		PayAddress:        resp.PayAddress,
		PayAmount:         resp.PayAmount,
		PayCurrency:       resp.PayCurrency,
	}, nil
}

// GetStatus polls the provider for the current payment status string.
func (g *NowPaymentsGateway) GetStatus(ctx context.Context, providerPaymentID string) (string, error) {
	raw, err := g.do(ctx, http.MethodGet, g.baseURL+"/payment/"+providerPaymentID, nil)
	if err != nil {
		return "", err
	}
	var resp paymentStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: unmarshal status response: %v", domain.ErrProviderUnavailable, err)
	}
	return resp.PaymentStatus, nil
}

// VerifySignature checks the IPN signature over the raw webhook body.
func (g *NowPaymentsGateway) VerifySignature(rawBody []byte, signature string) bool {
	return VerifyIPNSignature(g.ipnSecret, rawBody, signature)
}

func (g *NowPaymentsGateway) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: provider returned %d: %s", domain.ErrProviderUnavailable, resp.StatusCode, raw)
	}
	return raw, nil
}
