package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `order_id, user_handle, plan_id, amount_usd, pay_currency, provider_payment_id, status, created_at, updated_at, paid_at`

func (r *orderRepo) Save(ctx context.Context, o *model.Order) error {
	const q = `
INSERT INTO orders (
  order_id, user_handle, plan_id, amount_usd, pay_currency, provider_payment_id, status, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
) ON CONFLICT (order_id) DO UPDATE SET
  provider_payment_id=$6, status=$7, updated_at=$9, paid_at=$10;`

	_, err := r.pool.Exec(ctx, q, o.OrderID, o.UserHandle, o.PlanID, o.AmountUSD, o.PayCurrency, o.ProviderPaymentID, o.Status, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateOrder
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE order_id=$1;`
	return r.scanOne(ctx, q, orderID)
}

func (r *orderRepo) FindPending(ctx context.Context, handle, planID string) (*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE user_handle=$1 AND plan_id=$2 AND status='pending' ORDER BY created_at DESC LIMIT 1;`
	return r.scanOne(ctx, q, handle, planID)
}

// MarkPaid is conditional on the current status so repeat webhook deliveries
// report applied=false instead of rewriting the row.
func (r *orderRepo) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (bool, error) {
	const q = `UPDATE orders SET status='paid', paid_at=$2, updated_at=NOW() WHERE order_id=$1 AND status='pending';`
	tag, err := r.pool.Exec(ctx, q, orderID, paidAt)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *orderRepo) MarkFailed(ctx context.Context, orderID string) error {
	const q = `UPDATE orders SET status='failed', updated_at=NOW() WHERE order_id=$1 AND status='pending';`
	if _, err := r.pool.Exec(ctx, q, orderID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) scanOne(ctx context.Context, q string, args ...interface{}) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, q, args...)
	o := &model.Order{}
	err := row.Scan(&o.OrderID, &o.UserHandle, &o.PlanID, &o.AmountUSD, &o.PayCurrency, &o.ProviderPaymentID, &o.Status, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrOperationFailed
	}
	return o, nil
}
