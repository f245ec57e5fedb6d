package repository

import (
	"context"

	"telegram-subscription-checkout/internal/domain/model"
)

// SessionRepository keeps per-chat conversation state in a shared keyed store so
// the single-session-per-chat invariant survives multi-process deployments.
// Get returns ErrNotFound when the chat has no session (or it timed out).
type SessionRepository interface {
	Get(ctx context.Context, chatID int64) (*model.Session, error)
	Set(ctx context.Context, s *model.Session) error
	Clear(ctx context.Context, chatID int64) error
}
