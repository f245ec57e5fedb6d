package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/domain/ports/repository"
	"telegram-subscription-checkout/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// CreateOrder guards against duplicates, asks the provider for a deposit
	// address, persists the order and upserts the subscriber as pending.
	CreateOrder(ctx context.Context, handle, planID, payCurrency string) (*model.Order, *adapter.CreatedPayment, error)
	// OrderStatus reads the local order store only; it never polls the provider.
	OrderStatus(ctx context.Context, orderID string) (*model.Order, error)
}

type checkoutUC struct {
	orders      repository.OrderRepository
	plans       repository.PlanRepository
	subscribers repository.SubscriberRepository
	gateway     adapter.PaymentGateway
	log         *zerolog.Logger
}

func NewCheckoutUseCase(orders repository.OrderRepository, plans repository.PlanRepository, subscribers repository.SubscriberRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{orders: orders, plans: plans, subscribers: subscribers, gateway: gateway, log: &l}
}

func (u *checkoutUC) CreateOrder(ctx context.Context, handle, planID, payCurrency string) (*model.Order, *adapter.CreatedPayment, error) {
	plan, err := u.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, nil, fmt.Errorf("plan %s: %w", planID, err)
	}

	// Duplicate guard: an active subscription on this plan, or a still-pending
	// order for it, makes the attempt terminal before any provider call.
	sub, err := u.subscribers.FindByHandle(ctx, handle)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	if sub != nil && sub.PlanID == planID && sub.Status == model.SubscriptionStatusActive {
		metrics.IncOrder("duplicate_rejected")
		return nil, nil, domain.ErrDuplicateOrder
	}
	if _, err := u.orders.FindPending(ctx, handle, planID); err == nil {
		metrics.IncOrder("duplicate_rejected")
		return nil, nil, domain.ErrDuplicateOrder
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	order, err := model.NewOrder(handle, planID, plan.PriceUSD, payCurrency)
	if err != nil {
		return nil, nil, err
	}

	desc := fmt.Sprintf("%s subscription for %s", plan.Name, handle)
	created, err := u.gateway.CreatePayment(ctx, order.AmountUSD, payCurrency, order.OrderID, desc)
	metrics.IncProviderCall("create_payment", err == nil)
	if err != nil {
		u.log.Error().Err(err).Str("order_id", order.OrderID).Str("plan_id", planID).Msg("provider create payment failed")
		return nil, nil, err
	}
	order.ProviderPaymentID = created.ProviderPaymentID

	if err := u.orders.Save(ctx, order); err != nil {
		u.log.Error().Err(err).Str("order_id", order.OrderID).Msg("save order failed")
		return nil, nil, err
	}

	if sub == nil {
		sub, err = model.NewSubscriber(handle, planID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		sub.PlanID = planID
		sub.Status = model.SubscriptionStatusPending
		sub.Touch()
	}
	if err := u.subscribers.Upsert(ctx, sub); err != nil {
		u.log.Error().Err(err).Str("handle", handle).Msg("upsert subscriber failed")
		return nil, nil, err
	}

	metrics.IncOrder("created")
	u.log.Info().Str("order_id", order.OrderID).Str("plan_id", planID).Str("pay_currency", payCurrency).Msg("order created")
	return order, created, nil
}

func (u *checkoutUC) OrderStatus(ctx context.Context, orderID string) (*model.Order, error) {
	return u.orders.FindByID(ctx, orderID)
}
