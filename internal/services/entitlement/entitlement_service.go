package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
	"github.com/dergipress/payment-service/pkg/timeutil"
)

// Service is the subscription entitlement ledger. It is the only code that
// mutates a user's entitlement row, and it is only invoked from payment
// state-machine transitions.
type Service struct {
	planRepo ports.PlanRepository
	entRepo  ports.EntitlementRepository
	logger   ports.Logger
	now      func() time.Time
}

// NewService creates a new entitlement ledger
func NewService(planRepo ports.PlanRepository, entRepo ports.EntitlementRepository, logger ports.Logger) *Service {
	return &Service{
		planRepo: planRepo,
		entRepo:  entRepo,
		logger:   logger,
		now:      timeutil.Now,
	}
}

// WithClock overrides the ledger's clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Extend grants durationDays x quantity of access. An active, unexpired
// entitlement stacks from its current expiry so future purchases accumulate;
// anything else extends from now.
func (s *Service) Extend(ctx context.Context, tx ports.DBTX, userID, planID string, quantity int) (*models.SubscriptionEntitlement, error) {
	plan, err := s.planRepo.GetByID(ctx, tx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	grant := plan.Duration() * time.Duration(quantity)

	now := s.now()
	ent, err := s.entRepo.GetByUser(ctx, tx, userID)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}

	if ent != nil && ent.IsActive(now) {
		ent.ExpiresAt = ent.ExpiresAt.Add(grant)
	} else {
		if ent == nil {
			ent = &models.SubscriptionEntitlement{UserID: userID}
		}
		ent.ExpiresAt = now.Add(grant)
	}
	ent.PlanID = planID
	ent.Status = models.EntitlementActive
	ent.UpdatedAt = now

	if err := s.entRepo.Upsert(ctx, tx, ent); err != nil {
		return nil, fmt.Errorf("upsert entitlement: %w", err)
	}

	s.logger.Info("entitlement extended",
		ports.String("user_id", userID),
		ports.String("plan_id", planID),
		ports.Int("quantity", quantity),
		ports.String("expires_at", ent.ExpiresAt.Format(time.RFC3339)))
	return ent, nil
}

// Rollback subtracts the same duration Extend granted, so an equal-quantity
// extend-then-rollback is a no-op on expiry. A result landing in the past is
// clamped to now with status canceled; otherwise the entitlement stays
// active with the reduced expiry.
func (s *Service) Rollback(ctx context.Context, tx ports.DBTX, userID, planID string, quantity int) (*models.SubscriptionEntitlement, error) {
	plan, err := s.planRepo.GetByID(ctx, tx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	grant := plan.Duration() * time.Duration(quantity)

	now := s.now()
	ent, err := s.entRepo.GetByUser(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("no entitlement to roll back for user %s", userID)
		}
		return nil, fmt.Errorf("get entitlement: %w", err)
	}

	ent.ExpiresAt = ent.ExpiresAt.Add(-grant)
	if !ent.ExpiresAt.After(now) {
		ent.ExpiresAt = now
		ent.Status = models.EntitlementCanceled
	}
	ent.UpdatedAt = now

	if err := s.entRepo.Upsert(ctx, tx, ent); err != nil {
		return nil, fmt.Errorf("upsert entitlement: %w", err)
	}

	s.logger.Info("entitlement rolled back",
		ports.String("user_id", userID),
		ports.String("plan_id", planID),
		ports.Int("quantity", quantity),
		ports.String("status", string(ent.Status)),
		ports.String("expires_at", ent.ExpiresAt.Format(time.RFC3339)))
	return ent, nil
}
