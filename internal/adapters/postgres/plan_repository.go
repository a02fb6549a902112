package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// PlanRepository implements ports.PlanRepository.
type PlanRepository struct {
	db ports.DBPort
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db ports.DBPort) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// GetByID retrieves a subscription plan.
func (r *PlanRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	err := r.executor(db).QueryRow(ctx, `
		SELECT id, name, duration_days, price, currency
		FROM subscription_plans WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

// List returns the plan catalogue.
func (r *PlanRepository) List(ctx context.Context, db ports.DBTX) ([]*models.SubscriptionPlan, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT id, name, duration_days, price, currency
		FROM subscription_plans ORDER BY price`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.SubscriptionPlan
	for rows.Next() {
		var p models.SubscriptionPlan
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationDays, &p.Price, &p.Currency); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}
