package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// PaymentRepository implements ports.PaymentRepository on raw pgx.
type PaymentRepository struct {
	db ports.DBPort
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// executor returns the transaction when one is supplied, the pool otherwise,
// so the same queries run inside and outside WithTransaction.
func (r *PaymentRepository) executor(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db.GetDB()
}

const paymentColumns = `
	id, merchant_order_id, remote_order_id, user_id, plan_id,
	amount, currency, quantity, status,
	transaction_id, auth_code, rrn, batch_number, card_masked, installment_count,
	refunded_amount,
	billing_full_name, billing_email, billing_phone, billing_address, billing_city, billing_country,
	auth_response, provision_response, status_response, cancel_response, refund_response,
	created_at, updated_at`

// Create inserts a new payment order row.
func (r *PaymentRepository) Create(ctx context.Context, tx ports.DBTX, order *models.PaymentOrder) error {
	_, err := r.executor(tx).Exec(ctx, `
		INSERT INTO payment_orders (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16,
			$17, $18, $19, $20, $21, $22,
			$23, $24, $25, $26, $27,
			$28, $29)`,
		order.ID, order.MerchantOrderID, order.RemoteOrderID, order.UserID, order.PlanID,
		order.Amount, order.Currency, order.Quantity, string(order.Status),
		order.TransactionID, order.AuthCode, order.RRN, order.BatchNumber, order.CardMasked, order.InstallmentCount,
		order.RefundedAmount,
		order.Billing.FullName, order.Billing.Email, order.Billing.Phone, order.Billing.Address, order.Billing.City, order.Billing.Country,
		order.AuthResponse, order.ProvisionResponse, order.StatusResponse, order.CancelResponse, order.RefundResponse,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment order: %w", err)
	}
	return nil
}

// GetByID retrieves a payment order by its internal id.
func (r *PaymentRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.PaymentOrder, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders WHERE id = $1`, id)
	return scanPaymentOrder(row)
}

// GetByMerchantOrderID retrieves a payment order by the id the bank echoes.
func (r *PaymentRepository) GetByMerchantOrderID(ctx context.Context, db ports.DBTX, merchantOrderID string) (*models.PaymentOrder, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders WHERE merchant_order_id = $1`, merchantOrderID)
	return scanPaymentOrder(row)
}

// Update rewrites the whole row. The order struct is the source of truth;
// partial updates are deliberately not offered.
func (r *PaymentRepository) Update(ctx context.Context, tx ports.DBTX, order *models.PaymentOrder) error {
	tag, err := r.executor(tx).Exec(ctx, `
		UPDATE payment_orders SET
			remote_order_id = $2, status = $3,
			transaction_id = $4, auth_code = $5, rrn = $6, batch_number = $7,
			card_masked = $8, installment_count = $9, refunded_amount = $10,
			auth_response = $11, provision_response = $12, status_response = $13,
			cancel_response = $14, refund_response = $15,
			updated_at = now()
		WHERE id = $1`,
		order.ID,
		order.RemoteOrderID, string(order.Status),
		order.TransactionID, order.AuthCode, order.RRN, order.BatchNumber,
		order.CardMasked, order.InstallmentCount, order.RefundedAmount,
		order.AuthResponse, order.ProvisionResponse, order.StatusResponse,
		order.CancelResponse, order.RefundResponse,
	)
	if err != nil {
		return fmt.Errorf("update payment order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update payment order %s: %w", order.ID, ports.ErrNotFound)
	}
	return nil
}

// ListByUser returns a user's payment orders, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, db ports.DBTX, userID string, limit, offset int32) ([]*models.PaymentOrder, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_orders
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payment orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.PaymentOrder
	for rows.Next() {
		order, err := scanPaymentOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment orders: %w", err)
	}
	return orders, nil
}

func scanPaymentOrder(row pgx.Row) (*models.PaymentOrder, error) {
	var (
		o      models.PaymentOrder
		status string
	)
	err := row.Scan(
		&o.ID, &o.MerchantOrderID, &o.RemoteOrderID, &o.UserID, &o.PlanID,
		&o.Amount, &o.Currency, &o.Quantity, &status,
		&o.TransactionID, &o.AuthCode, &o.RRN, &o.BatchNumber, &o.CardMasked, &o.InstallmentCount,
		&o.RefundedAmount,
		&o.Billing.FullName, &o.Billing.Email, &o.Billing.Phone, &o.Billing.Address, &o.Billing.City, &o.Billing.Country,
		&o.AuthResponse, &o.ProvisionResponse, &o.StatusResponse, &o.CancelResponse, &o.RefundResponse,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment order: %w", err)
	}
	o.Status = models.PaymentStatus(status)
	return &o, nil
}
