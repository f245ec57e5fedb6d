package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/domain/ports/repository"
	"telegram-subscription-checkout/internal/usecase"
)

// BotFacade composes usecases into high-level bot commands. The chat adapter
// forwards its replies verbatim.
type BotFacade struct {
	ConvUC usecase.ConversationUseCase
	SubUC  usecase.SubscriptionUseCase
	Plans  repository.PlanRepository
}

func NewBotFacade(convUC usecase.ConversationUseCase, subUC usecase.SubscriptionUseCase, plans repository.PlanRepository) *BotFacade {
	return &BotFacade{ConvUC: convUC, SubUC: subUC, Plans: plans}
}

// HandleText routes slash commands and forwards everything else to the
// conversation state machine.
func (b *BotFacade) HandleText(ctx context.Context, chatID int64, handle, text string) ([]usecase.Reply, error) {
	switch strings.TrimSpace(text) {
	case "/start":
		return b.welcome(ctx, handle)
	case "/plans":
		return b.ConvUC.Handle(ctx, usecase.Event{ChatID: chatID, Handle: handle, Callback: usecase.CbPlans})
	case "/status":
		return b.status(ctx, handle)
	case "/cancel":
		return b.ConvUC.Handle(ctx, usecase.Event{ChatID: chatID, Handle: handle, Callback: usecase.CbCancel})
	}
	return b.ConvUC.Handle(ctx, usecase.Event{ChatID: chatID, Handle: handle, Text: text})
}

// HandleCallback forwards a button press to the conversation state machine.
func (b *BotFacade) HandleCallback(ctx context.Context, chatID int64, handle, data string) ([]usecase.Reply, error) {
	return b.ConvUC.Handle(ctx, usecase.Event{ChatID: chatID, Handle: handle, Callback: data})
}

func (b *BotFacade) welcome(ctx context.Context, handle string) ([]usecase.Reply, error) {
	text := fmt.Sprintf("Hello %s!\nPick a plan below to subscribe, or use /status to see your subscription.", handle)
	rows := [][]adapter.InlineButton{
		{{Text: "See plans", Data: usecase.CbPlans}},
		{{Text: "Contact support", Data: usecase.CbSupport}},
	}
	return []usecase.Reply{{Text: text, Rows: rows}}, nil
}

func (b *BotFacade) status(ctx context.Context, handle string) ([]usecase.Reply, error) {
	sub, err := b.SubUC.Find(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []usecase.Reply{{Text: "You don't have a subscription yet. Use /plans to pick one."}}, nil
		}
		return nil, err
	}

	plan, _ := b.Plans.FindByID(ctx, sub.PlanID)
	planName := sub.PlanID
	if !plan.IsZero() {
		planName = plan.Name
	}

	switch sub.Status {
	case model.SubscriptionStatusActive:
		until := "—"
		if sub.ExpiresOn != nil {
			until = sub.ExpiresOn.Format(time.DateOnly)
		}
		return []usecase.Reply{{Text: fmt.Sprintf("Your %s subscription is active until %s.", planName, until)}}, nil
	case model.SubscriptionStatusExpired:
		return []usecase.Reply{{Text: fmt.Sprintf("Your %s subscription has expired. Use /plans to renew.", planName)}}, nil
	}
	return []usecase.Reply{{Text: fmt.Sprintf("Your %s subscription is pending payment confirmation.", planName)}}, nil
}
