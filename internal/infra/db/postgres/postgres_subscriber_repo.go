package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*subscriberRepo)(nil)

type subscriberRepo struct{ pool *pgxpool.Pool }

func NewSubscriberRepo(pool *pgxpool.Pool) *subscriberRepo {
	return &subscriberRepo{pool: pool}
}

func (r *subscriberRepo) Upsert(ctx context.Context, s *model.Subscriber) error {
	const q = `
INSERT INTO subscribers (
  id, handle, full_name, email, whatsapp, plan_id, status, expires_on, needs_review, registered_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (handle) DO UPDATE SET
  full_name=COALESCE(NULLIF($3,''), subscribers.full_name),
  email=COALESCE(NULLIF($4,''), subscribers.email),
  whatsapp=COALESCE(NULLIF($5,''), subscribers.whatsapp),
  plan_id=$6, status=$7, updated_at=$11;`

	_, err := r.pool.Exec(ctx, q, s.ID, s.Handle, s.FullName, s.Email, s.WhatsApp, s.PlanID, s.Status, s.ExpiresOn, s.NeedsReview, s.RegisteredAt, s.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriberRepo) FindByHandle(ctx context.Context, handle string) (*model.Subscriber, error) {
	const q = `SELECT id, handle, full_name, email, whatsapp, plan_id, status, expires_on, needs_review, registered_at, updated_at FROM subscribers WHERE handle=$1;`
	row := r.pool.QueryRow(ctx, q, handle)
	s := &model.Subscriber{}
	err := row.Scan(&s.ID, &s.Handle, &s.FullName, &s.Email, &s.WhatsApp, &s.PlanID, &s.Status, &s.ExpiresOn, &s.NeedsReview, &s.RegisteredAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrOperationFailed
	}
	return s, nil
}

func (r *subscriberRepo) Activate(ctx context.Context, handle, planID string, expiresOn *time.Time, needsReview bool) error {
	const q = `UPDATE subscribers SET plan_id=$2, status='active', expires_on=$3, needs_review=$4, updated_at=NOW() WHERE handle=$1;`
	tag, err := r.pool.Exec(ctx, q, handle, planID, expiresOn, needsReview)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriberRepo) ListExpirable(ctx context.Context, asOf time.Time) ([]string, error) {
	const q = `SELECT handle FROM subscribers WHERE status='active' AND expires_on IS NOT NULL AND expires_on < $1;`
	rows, err := r.pool.Query(ctx, q, asOf)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, domain.ErrOperationFailed
		}
		handles = append(handles, h)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return handles, nil
}

// MarkExpired re-checks status at write time: a row that re-activated between
// selection and update is left alone.
func (r *subscriberRepo) MarkExpired(ctx context.Context, handles []string) ([]string, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	const q = `UPDATE subscribers SET status='expired', updated_at=NOW() WHERE handle = ANY($1) AND status='active' AND expires_on < NOW() RETURNING handle;`
	rows, err := r.pool.Query(ctx, q, handles)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var expired []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, domain.ErrOperationFailed
		}
		expired = append(expired, h)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return expired, nil
}
