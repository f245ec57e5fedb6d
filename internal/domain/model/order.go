package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-subscription-checkout/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending" // address issued; awaiting provider confirmation
	OrderStatusPaid    OrderStatus = "paid"    // provider reported a final success status
	OrderStatusFailed  OrderStatus = "failed"  // provider reported failure or the order was abandoned
)

// Order is a single checkout attempt. OrderID is the sole correlation key between
// the provider's asynchronous callback and the local record; once paid the status
// never reverts.
type Order struct {
	OrderID           string // ULID, provider-facing
	UserHandle        string
	PlanID            string
	AmountUSD         float64
	PayCurrency       string // crypto network/currency chosen by the user
	ProviderPaymentID string // provider-side id, set once the payment is created
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PaidAt            *time.Time
}

// NewOrder constructs a pending order with a fresh ULID.
func NewOrder(userHandle, planID string, amountUSD float64, payCurrency string) (*Order, error) {
	if userHandle == "" || planID == "" || amountUSD <= 0 || payCurrency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		OrderID:     ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserHandle:  userHandle,
		PlanID:      planID,
		AmountUSD:   amountUSD,
		PayCurrency: payCurrency,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
