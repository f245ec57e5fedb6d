package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/adapter"
	"telegram-subscription-checkout/internal/domain/ports/repository"
	"telegram-subscription-checkout/internal/infra/logging"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

// Event is one inbound chat interaction: free text or a button press. Callback
// tokens are the opaque actions attached to keyboards by this same component.
type Event struct {
	ChatID   int64
	Handle   string
	Text     string
	Callback string
}

// Reply is an outbound message, optionally with an inline keyboard or image.
type Reply struct {
	Text     string
	Rows     [][]adapter.InlineButton
	ImageURL string
}

// InviteIssuer hands out a fresh single-use invite on successful finalize.
type InviteIssuer interface {
	CreateInviteLink(ctx context.Context) (string, error)
}

// ConversationUseCase is the per-chat checkout state machine. The caller must
// deliver events for one chat strictly in order; events for different chats are
// independent.
type ConversationUseCase interface {
	Handle(ctx context.Context, ev Event) ([]Reply, error)
}

// Callback tokens routed by the state machine.
const (
	cbPlanPrefix = "plan:"
	cbNetPrefix  = "net:"
	CbCrypto     = "pay:crypto"
	CbFiat       = "pay:fiat"
	CbCheck      = "cmd:check"
	CbCancel     = "cmd:cancel"
	CbPlans      = "cmd:plans"
	CbSupport    = "cmd:support"
)

// PlanCallback builds the opaque token for a plan selection button.
func PlanCallback(planID string) string { return cbPlanPrefix + planID }

// NetworkCallback builds the opaque token for a payment network button.
func NetworkCallback(currency string) string { return cbNetPrefix + currency }

// payNetworks the bot offers for crypto checkout.
var payNetworks = []struct {
	Label    string
	Currency string
}{
	{"BTC", "btc"},
	{"ETH", "eth"},
	{"USDT (TRC20)", "usdttrc20"},
	{"LTC", "ltc"},
}

type conversationUC struct {
	sessions        repository.SessionRepository
	plans           repository.PlanRepository
	subscribers     repository.SubscriberRepository
	checkout        CheckoutUseCase
	invites         InviteIssuer
	fiatCheckoutURL string
	supportContact  string
	log             *zerolog.Logger
}

func NewConversationUseCase(
	sessions repository.SessionRepository,
	plans repository.PlanRepository,
	subscribers repository.SubscriberRepository,
	checkout CheckoutUseCase,
	invites InviteIssuer,
	fiatCheckoutURL string,
	supportContact string,
	logger *zerolog.Logger,
) *conversationUC {
	l := logger.With().Str("component", "ConversationUC").Logger()
	return &conversationUC{
		sessions:        sessions,
		plans:           plans,
		subscribers:     subscribers,
		checkout:        checkout,
		invites:         invites,
		fiatCheckoutURL: fiatCheckoutURL,
		supportContact:  supportContact,
		log:             &l,
	}
}

func (u *conversationUC) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	// Cancel and plan selection work from any stage and replace whatever
	// session exists; no state from a prior attempt leaks into a new one.
	switch {
	case ev.Callback == CbCancel:
		if err := u.sessions.Clear(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return []Reply{u.mainMenu(ctx, "Checkout cancelled.")}, nil
	case ev.Callback == CbPlans:
		return []Reply{u.planMenu(ctx)}, nil
	case ev.Callback == CbSupport:
		return []Reply{{Text: "Need help? Contact " + u.supportContact}}, nil
	case strings.HasPrefix(ev.Callback, cbPlanPrefix):
		return u.selectPlan(ctx, ev, strings.TrimPrefix(ev.Callback, cbPlanPrefix))
	}

	sess, err := u.sessions.Get(ctx, ev.ChatID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		sess = model.NewSession(ev.ChatID)
	}

	switch sess.Stage {
	case model.StageIdle:
		// Unrecognized input at idle mutates nothing.
		return []Reply{u.mainMenu(ctx, "Pick a plan to get started.")}, nil
	case model.StagePlanSelected:
		return u.choosePayType(ctx, ev, sess)
	case model.StageNetworkChoice:
		return u.chooseNetwork(ctx, ev, sess)
	case model.StageAwaitingWhatsApp:
		return u.collectWhatsApp(ctx, ev, sess)
	case model.StageAwaitingPayment:
		return u.awaitPayment(ctx, ev, sess)
	case model.StageAwaitingFullName:
		return u.collectFullName(ctx, ev, sess)
	case model.StageAwaitingEmail:
		return u.collectEmail(ctx, ev, sess)
	case model.StageFinalizing:
		return u.finalize(ctx, ev, sess)
	}
	return nil, fmt.Errorf("%w: stage %q", domain.ErrInvalidArgument, sess.Stage)
}

// selectPlan unconditionally discards any prior session for the chat so a stale
// order id cannot leak into the new attempt.
func (u *conversationUC) selectPlan(ctx context.Context, ev Event, planID string) ([]Reply, error) {
	plan, err := u.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []Reply{u.mainMenu(ctx, "That plan is no longer available.")}, nil
		}
		return nil, err
	}

	if err := u.sessions.Clear(ctx, ev.ChatID); err != nil {
		return nil, err
	}
	sess := model.NewSession(ev.ChatID)
	sess.Stage = model.StagePlanSelected
	sess.PlanID = plan.ID
	if err := u.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s — $%.2f\n%s\n\nHow would you like to pay?", plan.Name, plan.PriceUSD, strings.Join(plan.Features, "\n"))
	rows := [][]adapter.InlineButton{
		{{Text: "Crypto", Data: CbCrypto}, {Text: "Card / Fiat", Data: CbFiat}},
		{{Text: "Cancel", Data: CbCancel}},
	}
	return []Reply{{Text: text, Rows: rows}}, nil
}

func (u *conversationUC) choosePayType(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	switch ev.Callback {
	case CbFiat:
		// Terminal: hand off to the external checkout page.
		if err := u.sessions.Clear(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return []Reply{{
			Text: "Complete your purchase on our checkout page:",
			Rows: [][]adapter.InlineButton{{{Text: "Open checkout", URL: u.fiatCheckoutURL}}},
		}}, nil
	case CbCrypto:
		sess.Stage = model.StageNetworkChoice
		sess.Touch()
		if err := u.sessions.Set(ctx, sess); err != nil {
			return nil, err
		}
		var row []adapter.InlineButton
		for _, n := range payNetworks {
			row = append(row, adapter.InlineButton{Text: n.Label, Data: NetworkCallback(n.Currency)})
		}
		rows := [][]adapter.InlineButton{row, {{Text: "Cancel", Data: CbCancel}}}
		return []Reply{{Text: "Choose a payment network:", Rows: rows}}, nil
	}
	return []Reply{{Text: "Please choose a payment method using the buttons above."}}, nil
}

func (u *conversationUC) chooseNetwork(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	if !strings.HasPrefix(ev.Callback, cbNetPrefix) {
		return []Reply{{Text: "Please choose a network using the buttons above."}}, nil
	}
	sess.PayNetwork = strings.TrimPrefix(ev.Callback, cbNetPrefix)
	sess.Stage = model.StageAwaitingWhatsApp
	sess.Touch()
	if err := u.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return []Reply{{Text: "Send your WhatsApp number in international format (e.g. +14155551234)."}}, nil
}

func (u *conversationUC) collectWhatsApp(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	phone := strings.TrimSpace(ev.Text)
	if !model.ValidPhone(phone) {
		// Validation never advances the stage.
		return []Reply{{Text: "That doesn't look like a valid number. Use international format, e.g. +14155551234."}}, nil
	}
	sess.WhatsApp = phone

	order, created, err := u.checkout.CreateOrder(ctx, ev.Handle, sess.PlanID, sess.PayNetwork)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateOrder):
			// Terminal for this attempt: discard the session, offer alternatives.
			if clearErr := u.sessions.Clear(ctx, ev.ChatID); clearErr != nil {
				return nil, clearErr
			}
			rows := [][]adapter.InlineButton{
				{{Text: "Pick a different plan", Data: CbPlans}},
				{{Text: "Contact support", Data: CbSupport}},
			}
			return []Reply{{Text: "You already have a pending order or active subscription for this plan.", Rows: rows}}, nil
		case errors.Is(err, domain.ErrProviderUnavailable):
			// Single attempt only; the user decides whether to retry.
			return []Reply{{Text: "The payment provider is unavailable right now. Send your number again in a moment to retry."}}, nil
		}
		return nil, err
	}

	sess.OrderID = order.OrderID
	sess.Stage = model.StageAwaitingPayment
	sess.Touch()
	if err := u.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}

	text := fmt.Sprintf(
		"Send exactly %v %s to:\n\n%s\n\nOrder: %s\nThe subscription activates once the payment is confirmed.",
		created.PayAmount, strings.ToUpper(created.PayCurrency), created.PayAddress, order.OrderID,
	)
	rows := [][]adapter.InlineButton{
		{{Text: "I have paid / check status", Data: CbCheck}},
		{{Text: "Cancel", Data: CbCancel}},
	}
	return []Reply{{Text: text, Rows: rows}}, nil
}

// awaitPayment answers status checks from the local order store; the provider
// is never polled from the conversation.
func (u *conversationUC) awaitPayment(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	if ev.Callback != CbCheck {
		return []Reply{{Text: "Waiting for your payment. Tap the button once you have paid.", Rows: [][]adapter.InlineButton{{{Text: "I have paid / check status", Data: CbCheck}}}}}, nil
	}

	order, err := u.checkout.OrderStatus(ctx, sess.OrderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case model.OrderStatusPaid:
		sess.Stage = model.StageAwaitingFullName
		sess.Touch()
		if err := u.sessions.Set(ctx, sess); err != nil {
			return nil, err
		}
		return []Reply{{Text: "Payment confirmed! What's your full name?"}}, nil
	case model.OrderStatusFailed:
		if err := u.sessions.Clear(ctx, ev.ChatID); err != nil {
			return nil, err
		}
		return []Reply{u.mainMenu(ctx, "That payment failed or expired. Pick a plan to start over.")}, nil
	}
	return []Reply{{Text: "Not confirmed yet. Confirmations can take a few minutes; check again shortly.", Rows: [][]adapter.InlineButton{{{Text: "Check again", Data: CbCheck}}}}}, nil
}

func (u *conversationUC) collectFullName(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return []Reply{{Text: "Please send your full name."}}, nil
	}
	sess.FullName = name
	sess.Stage = model.StageAwaitingEmail
	sess.Touch()
	if err := u.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return []Reply{{Text: "And your email address?"}}, nil
}

func (u *conversationUC) collectEmail(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	email := strings.TrimSpace(ev.Text)
	if !model.ValidEmail(email) {
		return []Reply{{Text: "That doesn't look like a valid email. Try again, e.g. user@example.com."}}, nil
	}
	sess.Email = email
	sess.Stage = model.StageFinalizing
	sess.Touch()
	if err := u.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return u.finalize(ctx, ev, sess)
}

// finalize persists the collected contact fields and issues the invite. On
// success the session is destroyed; on failure it stays at finalizing so any
// further message retries.
func (u *conversationUC) finalize(ctx context.Context, ev Event, sess *model.Session) ([]Reply, error) {
	ctx = logging.WithHandle(logging.WithOrderID(ctx, sess.OrderID), ev.Handle)
	log := logging.With(ctx, u.log)

	sub, err := u.subscribers.FindByHandle(ctx, ev.Handle)
	if err != nil {
		return nil, err
	}
	sub.FullName = sess.FullName
	sub.Email = sess.Email
	sub.WhatsApp = sess.WhatsApp
	sub.Touch()
	if err := u.subscribers.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	link, err := u.invites.CreateInviteLink(ctx)
	if err != nil {
		log.Error().Err(err).Msg("invite link creation failed")
		return []Reply{{Text: "Almost there, but the invite could not be created. Send any message to retry."}}, nil
	}

	if err := u.sessions.Clear(ctx, ev.ChatID); err != nil {
		return nil, err
	}
	log.Info().
		Str("email", logging.Redact(sess.Email)).
		Str("whatsapp", logging.Redact(sess.WhatsApp)).
		Msg("checkout complete")
	return []Reply{{
		Text: "You're all set! Join with your personal invite link:",
		Rows: [][]adapter.InlineButton{{{Text: "Join now", URL: link}}},
	}}, nil
}

func (u *conversationUC) mainMenu(ctx context.Context, text string) Reply {
	return Reply{
		Text: text,
		Rows: [][]adapter.InlineButton{
			{{Text: "See plans", Data: CbPlans}},
			{{Text: "Contact support", Data: CbSupport}},
		},
	}
}

func (u *conversationUC) planMenu(ctx context.Context) Reply {
	plans, err := u.plans.List(ctx)
	if err != nil || len(plans) == 0 {
		return Reply{Text: "No plans are available right now."}
	}
	var rows [][]adapter.InlineButton
	sb := strings.Builder{}
	sb.WriteString("Available plans:\n")
	for _, p := range plans {
		sb.WriteString(fmt.Sprintf("- %s: $%.2f\n", p.Name, p.PriceUSD))
		rows = append(rows, []adapter.InlineButton{{Text: fmt.Sprintf("%s — $%.2f", p.Name, p.PriceUSD), Data: PlanCallback(p.ID)}})
	}
	return Reply{Text: sb.String(), Rows: rows}
}
