package model

import (
	"regexp"
	"time"
)

// Stage identifies how far a chat has progressed through checkout.
type Stage string

const (
	StageIdle             Stage = "idle"
	StagePlanSelected     Stage = "plan_selected"
	StageNetworkChoice    Stage = "network_choice"
	StageAwaitingWhatsApp Stage = "awaiting_whatsapp"
	StageAwaitingPayment  Stage = "awaiting_payment"
	StageAwaitingFullName Stage = "awaiting_full_name"
	StageAwaitingEmail    Stage = "awaiting_email"
	StageFinalizing       Stage = "finalizing"
)

// Session is the ephemeral per-chat conversation state. It holds at most one
// outstanding order; selecting a new plan discards the whole session rather than
// merging into it.
type Session struct {
	ChatID     int64     `json:"chat_id"`
	Stage      Stage     `json:"stage"`
	PlanID     string    `json:"plan_id,omitempty"`
	PayNetwork string    `json:"pay_network,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	WhatsApp   string    `json:"whatsapp,omitempty"`
	FullName   string    `json:"full_name,omitempty"`
	Email      string    `json:"email,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewSession(chatID int64) *Session {
	return &Session{ChatID: chatID, Stage: StageIdle, UpdatedAt: time.Now()}
}

func (s *Session) Touch() { s.UpdatedAt = time.Now() }

var (
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidPhone accepts international numbers in +<country><number> form.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// ValidEmail is a light format check; deliverability is the provider's problem.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }
