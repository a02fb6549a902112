package ports

import (
	"context"
	"errors"

	"github.com/dergipress/payment-service/internal/domain/models"
)

// ErrNotFound is returned by repositories when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PaymentRepository persists payment orders. Mutations are whole-row updates;
// the order row is the single source of truth for a purchase attempt.
type PaymentRepository interface {
	Create(ctx context.Context, tx DBTX, order *models.PaymentOrder) error
	GetByID(ctx context.Context, db DBTX, id string) (*models.PaymentOrder, error)
	GetByMerchantOrderID(ctx context.Context, db DBTX, merchantOrderID string) (*models.PaymentOrder, error)
	Update(ctx context.Context, tx DBTX, order *models.PaymentOrder) error
	ListByUser(ctx context.Context, db DBTX, userID string, limit, offset int32) ([]*models.PaymentOrder, error)
}

// ConsentRepository persists append-only consent records.
type ConsentRepository interface {
	Create(ctx context.Context, tx DBTX, consent *models.PaymentConsent) error
	ListByPayment(ctx context.Context, db DBTX, paymentID string) ([]*models.PaymentConsent, error)
}

// PlanRepository reads the plan catalogue.
type PlanRepository interface {
	GetByID(ctx context.Context, db DBTX, id string) (*models.SubscriptionPlan, error)
	List(ctx context.Context, db DBTX) ([]*models.SubscriptionPlan, error)
}

// EntitlementRepository persists the per-user entitlement singleton.
type EntitlementRepository interface {
	GetByUser(ctx context.Context, db DBTX, userID string) (*models.SubscriptionEntitlement, error)
	Upsert(ctx context.Context, tx DBTX, e *models.SubscriptionEntitlement) error
}
