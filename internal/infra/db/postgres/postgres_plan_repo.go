package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-checkout/internal/domain"
	"telegram-subscription-checkout/internal/domain/model"
	"telegram-subscription-checkout/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) List(ctx context.Context) ([]*model.Plan, error) {
	const q = `SELECT id, name, term, price_usd, features FROM plans ORDER BY price_usd;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		p := &model.Plan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Term, &p.PriceUSD, &p.Features); err != nil {
			return nil, domain.ErrOperationFailed
		}
		plans = append(plans, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return plans, nil
}

func (r *planRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	const q = `SELECT id, name, term, price_usd, features FROM plans WHERE id=$1;`
	row := r.pool.QueryRow(ctx, q, id)
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.Term, &p.PriceUSD, &p.Features); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrOperationFailed
	}
	return p, nil
}
