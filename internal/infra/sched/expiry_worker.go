package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/usecase"
)

// ExpiryWorker periodically expires lapsed subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, subUC: subUC, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			handles, err := w.subUC.Sweep(ctx, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
				continue
			}
			if len(handles) > 0 {
				w.log.Info().Int("count", len(handles)).Strs("handles", handles).Msg("subscriptions expired")
			}
		}
	}
}
