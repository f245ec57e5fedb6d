package model

import (
	"time"

	"github.com/google/uuid"

	"telegram-subscription-checkout/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscriber is the durable per-person record, keyed by the chat handle.
// Exactly one row exists per handle; repeat checkouts update it in place.
type Subscriber struct {
	ID           string // UUID
	Handle       string // stable external chat handle
	FullName     string
	Email        string
	WhatsApp     string
	PlanID       string
	Status       SubscriptionStatus
	ExpiresOn    *time.Time // set at activation; recalculated only by a fresh activation
	NeedsReview  bool       // activation could not compute an expiry; manual follow-up
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

func NewSubscriber(handle, planID string) (*Subscriber, error) {
	if handle == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscriber{
		ID:           uuid.NewString(),
		Handle:       handle,
		PlanID:       planID,
		Status:       SubscriptionStatusPending,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

func (s *Subscriber) IsZero() bool { return s == nil || s.Handle == "" }
func (s *Subscriber) Touch()       { s.UpdatedAt = time.Now() }
