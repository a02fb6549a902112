package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// EntitlementRepository implements ports.EntitlementRepository. One row per
// user; Upsert keeps it that way.
type EntitlementRepository struct {
	db ports.DBPort
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(db ports.DBPort) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

func (r *EntitlementRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// GetByUser retrieves a user's entitlement, ErrNotFound when none exists yet.
func (r *EntitlementRepository) GetByUser(ctx context.Context, db ports.DBTX, userID string) (*models.SubscriptionEntitlement, error) {
	var (
		e      models.SubscriptionEntitlement
		status string
	)
	err := r.executor(db).QueryRow(ctx, `
		SELECT user_id, plan_id, status, expires_at, updated_at
		FROM subscription_entitlements WHERE user_id = $1`, userID).
		Scan(&e.UserID, &e.PlanID, &status, &e.ExpiresAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	e.Status = models.EntitlementStatus(status)
	return &e, nil
}

// Upsert writes the entitlement, inserting on first purchase.
func (r *EntitlementRepository) Upsert(ctx context.Context, tx ports.DBTX, e *models.SubscriptionEntitlement) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO subscription_entitlements (user_id, plan_id, status, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		e.UserID, e.PlanID, string(e.Status), e.ExpiresAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}
