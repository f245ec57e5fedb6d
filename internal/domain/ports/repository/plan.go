package repository

import (
	"context"

	"telegram-subscription-checkout/internal/domain/model"
)

type PlanRepository interface {
	List(ctx context.Context) ([]*model.Plan, error)
	FindByID(ctx context.Context, id string) (*model.Plan, error)
}
