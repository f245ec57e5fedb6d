package repository

import (
	"context"
	"time"

	"telegram-subscription-checkout/internal/domain/model"
)

// OrderRepository is the durable order store. Every mutation is a single-row
// conditional update; there are no multi-row transactions across components.
type OrderRepository interface {
	Save(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	// FindPending returns the live pending order for handle+plan, or ErrNotFound.
	FindPending(ctx context.Context, handle, planID string) (*model.Order, error)
	// MarkPaid flips a pending order to paid. Returns applied=false when the order
	// was not in pending (repeat webhook delivery); that is not an error.
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (applied bool, err error)
	MarkFailed(ctx context.Context, orderID string) error
}
