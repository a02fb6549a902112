package ports

import (
	"context"

	"github.com/dergipress/payment-service/internal/domain/models"
)

// Notifier delivers best-effort buyer notifications. Failures are logged by
// callers and never influence payment state.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, order *models.PaymentOrder, plan *models.SubscriptionPlan) error
}
