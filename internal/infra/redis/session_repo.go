package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps per-chat checkout sessions in Redis. The TTL is the
// conversation window: a stalled checkout simply evaporates.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (s *SessionRepo) key(chatID int64) string {
	return fmt.Sprintf("checkout_session:%d", chatID)
}

func (s *SessionRepo) Get(ctx context.Context, chatID int64) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.key(chatID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionRepo) Set(ctx context.Context, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.ChatID), data, s.ttl)
}

func (s *SessionRepo) Clear(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, s.key(chatID))
}
