package postgres

import (
	"context"
	"fmt"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// ConsentRepository implements ports.ConsentRepository. Consent rows are
// append-only; there is no update or delete path.
type ConsentRepository struct {
	db ports.DBPort
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db ports.DBPort) *ConsentRepository {
	return &ConsentRepository{db: db}
}

func (r *ConsentRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

// Create inserts a consent record.
func (r *ConsentRepository) Create(ctx context.Context, tx ports.DBTX, consent *models.PaymentConsent) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO payment_consents (id, payment_id, consent_type, document_version, ip, user_agent, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		consent.ID, consent.PaymentID, string(consent.Type), consent.Version,
		consent.IP, consent.UserAgent, consent.AcceptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

// ListByPayment returns the consent trail of one payment.
func (r *ConsentRepository) ListByPayment(ctx context.Context, db ports.DBTX, paymentID string) ([]*models.PaymentConsent, error) {
	rows, err := r.executor(db).Query(ctx, `
		SELECT id, payment_id, consent_type, document_version, ip, user_agent, accepted_at
		FROM payment_consents WHERE payment_id = $1 ORDER BY accepted_at`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	var consents []*models.PaymentConsent
	for rows.Next() {
		var (
			c  models.PaymentConsent
			ct string
		)
		if err := rows.Scan(&c.ID, &c.PaymentID, &ct, &c.Version, &c.IP, &c.UserAgent, &c.AcceptedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		c.Type = models.ConsentType(ct)
		consents = append(consents, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return consents, nil
}
