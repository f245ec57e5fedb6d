package repository

import (
	"context"
	"time"

	"telegram-subscription-checkout/internal/domain/model"
)

// SubscriberRepository upserts by handle: one row per person, ever.
type SubscriberRepository interface {
	Upsert(ctx context.Context, s *model.Subscriber) error
	FindByHandle(ctx context.Context, handle string) (*model.Subscriber, error)
	// Activate sets status=active with the given expiry (nil leaves it unset and
	// flags the row for review). Recomputes nothing retroactively.
	Activate(ctx context.Context, handle, planID string, expiresOn *time.Time, needsReview bool) error
	// ListExpirable returns handles of active subscribers whose expiry predates asOf.
	ListExpirable(ctx context.Context, asOf time.Time) ([]string, error)
	// MarkExpired transitions the given handles to expired, conditional on the row
	// still being active at write time. Returns the handles actually transitioned.
	MarkExpired(ctx context.Context, handles []string) ([]string, error)
}
