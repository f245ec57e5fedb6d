package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/repository"
	"telegram-subscription-checkout/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Sweep transitions active subscribers past their expiry to expired and
	// returns the affected handles. Safe to run repeatedly and concurrently
	// with activations: the store re-checks status at write time.
	Sweep(ctx context.Context, asOf time.Time) ([]string, error)
	Find(ctx context.Context, handle string) (*model.Subscriber, error)
}

type subscriptionUC struct {
	subscribers repository.SubscriberRepository
	log         *zerolog.Logger
}

func NewSubscriptionUseCase(subscribers repository.SubscriberRepository, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subscribers: subscribers, log: &l}
}

func (u *subscriptionUC) Sweep(ctx context.Context, asOf time.Time) ([]string, error) {
	handles, err := u.subscribers.ListExpirable(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, nil
	}

	expired, err := u.subscribers.MarkExpired(ctx, handles)
	if err != nil {
		return nil, err
	}
	if len(expired) != len(handles) {
		// Rows that re-activated between selection and write were skipped.
		u.log.Info().Int("selected", len(handles)).Int("expired", len(expired)).Msg("sweep skipped re-activated rows")
	}
	if len(expired) > 0 {
		metrics.IncSubscriptionsExpired(len(expired))
		u.log.Info().Int("count", len(expired)).Msg("subscribers expired")
	}
	return expired, nil
}

func (u *subscriptionUC) Find(ctx context.Context, handle string) (*model.Subscriber, error) {
	return u.subscribers.FindByHandle(ctx, handle)
}
