package adapter

import "context"

// CreatedPayment is the provider's answer to a create-payment call.
type CreatedPayment struct {
	ProviderPaymentID string
	PayAddress        string
	PayAmount         float64
	PayCurrency       string
}

// PaymentGateway is the hex port for the payment provider. No retries happen
// inside the gateway; the caller decides what a failure means.
type PaymentGateway interface {
	Name() string

	// CreatePayment requests a deposit address for the given order.
	// Transport faults and non-2xx responses surface as ErrProviderUnavailable.
	CreatePayment(ctx context.Context, amountUSD float64, payCurrency, orderID, description string) (*CreatedPayment, error)
	// GetStatus polls the provider for the payment status string.
	GetStatus(ctx context.Context, providerPaymentID string) (string, error)
	// VerifySignature checks the signed webhook payload against the shared secret.
	VerifySignature(rawBody []byte, signature string) bool
}
