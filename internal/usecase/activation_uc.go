package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/ports/repository"
	"telegram-subscription-checkout/internal/infra/logging"
	"telegram-subscription-checkout/internal/infra/metrics"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// PaymentNotice is the reconciler-facing view of a provider webhook, after the
// transport layer has already authenticated the payload. Both amounts are in
// the pay currency (e.g. BTC), never in the fiat price currency.
type PaymentNotice struct {
	OrderID      string
	Status       string
	PaidAmount   float64 // actually-paid amount; 0 when absent
	QuotedAmount float64 // amount the provider quoted at order creation; 0 when absent
}

// ApplyResult tells the transport layer how the notice was handled.
type ApplyResult string

const (
	ApplyApplied        ApplyResult = "applied"
	ApplyDuplicate      ApplyResult = "duplicate"       // order already paid; nothing re-applied
	ApplyIgnored        ApplyResult = "ignored"         // non-final status, informational only
	ApplyFailed         ApplyResult = "failed"          // provider reported terminal failure
	ApplyUnknownOrder   ApplyResult = "unknown_order"   // no local order for the correlation id
	ApplyAmountMismatch ApplyResult = "amount_mismatch" // underpaid; held for manual review
)

type ActivationUseCase interface {
	// Apply processes an authenticated provider notice idempotently: delivering
	// the same final notice twice leaves order and subscriber unchanged.
	Apply(ctx context.Context, n PaymentNotice) (ApplyResult, error)
}

type activationUC struct {
	orders      repository.OrderRepository
	plans       repository.PlanRepository
	subscribers repository.SubscriberRepository
	log         *zerolog.Logger
}

func NewActivationUseCase(orders repository.OrderRepository, plans repository.PlanRepository, subscribers repository.SubscriberRepository, logger *zerolog.Logger) *activationUC {
	l := logger.With().Str("component", "ActivationUC").Logger()
	return &activationUC{orders: orders, plans: plans, subscribers: subscribers, log: &l}
}

// finalStatuses are the provider statuses that settle a payment successfully.
var finalStatuses = map[string]struct{}{
	"finished":  {},
	"confirmed": {},
}

// failureStatuses are the provider statuses that settle a payment as lost.
var failureStatuses = map[string]struct{}{
	"failed":   {},
	"refunded": {},
	"expired":  {},
}

func IsFinalStatus(s string) bool {
	_, ok := finalStatuses[s]
	return ok
}

func IsFailureStatus(s string) bool {
	_, ok := failureStatuses[s]
	return ok
}

func (u *activationUC) Apply(ctx context.Context, n PaymentNotice) (ApplyResult, error) {
	ctx = logging.WithOrderID(ctx, n.OrderID)
	log := logging.With(ctx, u.log)

	if !IsFinalStatus(n.Status) && !IsFailureStatus(n.Status) {
		// waiting / partially_paid and friends are informational only.
		log.Debug().Str("status", n.Status).Msg("non-final status acknowledged")
		metrics.IncWebhook(string(ApplyIgnored))
		return ApplyIgnored, nil
	}

	order, err := u.orders.FindByID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("webhook for unknown order")
			metrics.IncWebhook(string(ApplyUnknownOrder))
			return ApplyUnknownOrder, domain.ErrOrderNotFound
		}
		return "", err
	}

	if IsFailureStatus(n.Status) {
		// Conditional on pending at the store, so a late failure webhook can
		// never demote a paid order.
		if err := u.orders.MarkFailed(ctx, order.OrderID); err != nil {
			return "", err
		}
		log.Info().Str("status", n.Status).Msg("provider reported terminal failure, order failed")
		metrics.IncOrder("failed")
		metrics.IncWebhook(string(ApplyFailed))
		return ApplyFailed, nil
	}

	// Underpayment check is like-for-like in the pay currency: the provider's
	// amounts are crypto-denominated, never the fiat order price.
	if n.PaidAmount > 0 && n.QuotedAmount > 0 && n.PaidAmount < n.QuotedAmount {
		log.Error().
			Float64("quoted", n.QuotedAmount).
			Float64("paid", n.PaidAmount).
			Str("pay_currency", order.PayCurrency).
			Msg("underpaid order held for manual review")
		metrics.IncWebhook(string(ApplyAmountMismatch))
		return ApplyAmountMismatch, domain.ErrAmountMismatch
	}

	now := time.Now()
	applied, err := u.orders.MarkPaid(ctx, order.OrderID, now)
	if err != nil {
		return "", err
	}
	if !applied {
		// Re-delivery of a final webhook: expiry is not re-extended and no
		// downstream issuance is re-triggered.
		log.Info().Msg("order already paid, webhook is a duplicate")
		metrics.IncWebhook(string(ApplyDuplicate))
		return ApplyDuplicate, nil
	}

	expiresOn, needsReview := u.computeExpiry(ctx, order.PlanID, now)
	if err := u.subscribers.Activate(ctx, order.UserHandle, order.PlanID, expiresOn, needsReview); err != nil {
		log.Error().Err(err).Str("handle", order.UserHandle).Msg("activate subscriber failed")
		return "", err
	}

	metrics.IncOrder("paid")
	metrics.IncWebhook(string(ApplyApplied))
	metrics.IncSubscriptionActivated()
	log.Info().Str("handle", order.UserHandle).Msg("payment applied, subscriber activated")
	return ApplyApplied, nil
}

// computeExpiry derives the expiry date from the plan term. An unmappable term
// leaves the expiry unset and flags the activation for manual follow-up rather
// than silently defaulting.
func (u *activationUC) computeExpiry(ctx context.Context, planID string, activatedAt time.Time) (*time.Time, bool) {
	plan, err := u.plans.FindByID(ctx, planID)
	if err != nil {
		u.log.Error().Err(err).Str("plan_id", planID).Msg("plan lookup failed during activation")
		metrics.IncActivationFlagged()
		return nil, true
	}
	term, err := plan.TermOf()
	if err != nil {
		u.log.Warn().Str("plan_id", planID).Str("plan_name", plan.Name).Msg("plan term unmapped, activation needs review")
		metrics.IncActivationFlagged()
		return nil, true
	}
	exp, err := term.ExpiryFrom(activatedAt)
	if err != nil {
		metrics.IncActivationFlagged()
		return nil, true
	}
	return &exp, false
}
