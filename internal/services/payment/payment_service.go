package payment

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
	pkgerrors "github.com/dergipress/payment-service/pkg/errors"
	"github.com/dergipress/payment-service/pkg/timeutil"
)

// EntitlementLedger is the slice of the ledger the state machine drives.
// Entitlement mutations happen only through these calls, only inside a
// state transition.
type EntitlementLedger interface {
	Extend(ctx context.Context, tx ports.DBTX, userID, planID string, quantity int) (*models.SubscriptionEntitlement, error)
	Rollback(ctx context.Context, tx ports.DBTX, userID, planID string, quantity int) (*models.SubscriptionEntitlement, error)
}

// Service is the payment state machine. It owns every PaymentOrder mutation:
// initiated -> failed | succeeded; succeeded -> canceled;
// succeeded -> partially_refunded -> refunded; succeeded -> refunded.
type Service struct {
	db       ports.DBPort
	payments ports.PaymentRepository
	consents ports.ConsentRepository
	plans    ports.PlanRepository
	gateway  ports.CardGateway
	ledger   EntitlementLedger
	notifier ports.Notifier
	logger   ports.Logger
}

// NewService creates a new payment service
func NewService(
	db ports.DBPort,
	payments ports.PaymentRepository,
	consents ports.ConsentRepository,
	plans ports.PlanRepository,
	gateway ports.CardGateway,
	ledger EntitlementLedger,
	notifier ports.Notifier,
	logger ports.Logger,
) *Service {
	return &Service{
		db:       db,
		payments: payments,
		consents: consents,
		plans:    plans,
		gateway:  gateway,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// ConsentAcceptance is one consent checkbox the buyer ticked at checkout.
type ConsentAcceptance struct {
	Type    models.ConsentType
	Version string
}

// InitiateRequest is a validated plan purchase attempt.
type InitiateRequest struct {
	UserID       string
	PlanID       string
	Quantity     int
	Installments int
	Card         ports.CardInfo
	Billing      models.BillingInfo
	Consents     []ConsentAcceptance
	ClientIP     string
	UserAgent    string
}

// InitiateResult carries the 3DS redirect form back to the buyer's browser.
type InitiateResult struct {
	PaymentID       string
	MerchantOrderID string
	Form            *ports.GatewayForm
}

// Initiate creates the payment order and consent records, then starts the
// 3DS handshake. An enrollment failure marks the order failed immediately
// so no order is left dangling in an ambiguous state.
func (s *Service) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetByID(ctx, nil, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	now := timeutil.Now()
	order := &models.PaymentOrder{
		ID:               uuid.New().String(),
		MerchantOrderID:  newMerchantOrderID(now),
		UserID:           req.UserID,
		PlanID:           plan.ID,
		Amount:           plan.Price * int64(req.Quantity),
		Currency:         plan.Currency,
		Quantity:         req.Quantity,
		Status:           models.StatusInitiated,
		InstallmentCount: req.Installments,
		Billing:          req.Billing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payments.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("create payment order: %w", err)
		}
		for _, c := range req.Consents {
			consent := &models.PaymentConsent{
				ID:         uuid.New().String(),
				PaymentID:  order.ID,
				Type:       c.Type,
				Version:    c.Version,
				IP:         req.ClientIP,
				UserAgent:  req.UserAgent,
				AcceptedAt: now,
			}
			if err := s.consents.Create(ctx, tx, consent); err != nil {
				return fmt.Errorf("create consent record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	form, err := s.gateway.Enroll(ctx, &ports.EnrollmentRequest{
		PaymentID:       order.ID,
		MerchantOrderID: order.MerchantOrderID,
		Amount:          order.Amount,
		Currency:        order.Currency,
		Installments:    req.Installments,
		Card:            req.Card,
		Billing:         req.Billing,
		ClientIP:        req.ClientIP,
	})
	if err != nil {
		s.failOrder(ctx, order, &order.AuthResponse,
			fmt.Sprintf("<EnrollmentError>%s</EnrollmentError>", err.Error()))
		s.logger.Error("3ds enrollment failed",
			ports.String("payment_id", order.ID),
			ports.Err(err))
		return nil, pkgerrors.NewPaymentError("ENROLLMENT_FAILED", "could not start 3-D Secure enrollment",
			pkgerrors.CategoryTransport)
	}

	s.logger.Info("payment initiated",
		ports.String("payment_id", order.ID),
		ports.String("merchant_order_id", order.MerchantOrderID),
		ports.Int64("amount", order.Amount),
		ports.String("currency", order.Currency))

	return &InitiateResult{
		PaymentID:       order.ID,
		MerchantOrderID: order.MerchantOrderID,
		Form:            form,
	}, nil
}

// CallbackResult reports the outcome of the asynchronous 3DS callback.
type CallbackResult struct {
	PaymentID string
	Status    models.PaymentStatus
	Message   string
	Amount    int64
	Currency  string
}

// HandleCallback processes the bank-initiated 3DS authentication callback,
// verifies its echoed fields against the stored order and, only on full
// verification, provisions the payment and extends the entitlement.
func (s *Service) HandleCallback(ctx context.Context, paymentID, authenticationResponse string) (*CallbackResult, error) {
	order, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment order: %w", err)
	}
	if order.Status != models.StatusInitiated {
		// The bank can re-post the callback; the stored outcome stands.
		return &CallbackResult{PaymentID: order.ID, Status: order.Status, Message: "already processed"}, nil
	}

	cb, err := s.gateway.DecodeCallback(authenticationResponse)
	if err != nil {
		s.failOrder(ctx, order, &order.AuthResponse,
			fmt.Sprintf("<CallbackDecodeError>%s</CallbackDecodeError>", err.Error()))
		return nil, pkgerrors.NewPaymentError("CALLBACK_MALFORMED", "could not decode bank callback",
			pkgerrors.CategoryTransport)
	}

	order.AuthResponse = cb.Raw

	if cb.ResponseCode != "00" {
		s.failOrder(ctx, order, nil, "")
		s.logger.Info("3ds authentication declined",
			ports.String("payment_id", order.ID),
			ports.String("response_code", cb.ResponseCode),
			ports.String("response_message", cb.ResponseMessage))
		return &CallbackResult{PaymentID: order.ID, Status: models.StatusFailed, Message: cb.ResponseMessage}, nil
	}

	if err := verifyCallback(order, cb); err != nil {
		s.failOrder(ctx, order, nil, "")
		// Logged apart from ordinary bank rejections: a mismatch here may
		// indicate tampering, not a declined card.
		s.logger.Warn("callback integrity mismatch",
			ports.String("payment_id", order.ID),
			ports.String("merchant_order_id", order.MerchantOrderID),
			ports.Err(err))
		return nil, pkgerrors.NewPaymentError("CALLBACK_MISMATCH", err.Error(),
			pkgerrors.CategorySecurityMismatch)
	}

	summary, err := s.gateway.Provision(ctx, order, cb)
	if err != nil {
		// Transport failure: persist what we have but leave the status
		// unresolved so a later status sync can reconcile a possibly
		// successful bank-side charge.
		if summary != nil && summary.Raw != "" {
			order.ProvisionResponse = summary.Raw
		} else {
			order.ProvisionResponse = fmt.Sprintf("<ProvisionError>%s</ProvisionError>", err.Error())
		}
		s.persistOrder(ctx, order)
		s.logger.Error("provisioning call failed",
			ports.String("payment_id", order.ID),
			ports.Err(err))
		return nil, pkgerrors.NewPaymentError("PROVISION_UNRESOLVED", "provisioning could not be confirmed",
			pkgerrors.CategoryTransport)
	}

	order.ProvisionResponse = summary.Raw

	if !summary.Approved() {
		s.failOrder(ctx, order, nil, "")
		s.logger.Info("provisioning declined",
			ports.String("payment_id", order.ID),
			ports.String("response_code", summary.ResponseCode),
			ports.String("response_message", summary.ResponseMessage))
		return &CallbackResult{PaymentID: order.ID, Status: models.StatusFailed, Message: summary.ResponseMessage}, nil
	}

	order.Status = models.StatusSucceeded
	order.RemoteOrderID = summary.RemoteOrderID
	order.TransactionID = summary.TransactionID
	order.AuthCode = summary.AuthCode
	order.RRN = summary.RRN
	order.BatchNumber = summary.BatchNumber
	if summary.CardMasked != "" {
		order.CardMasked = summary.CardMasked
	}
	if summary.InstallmentCount > 0 {
		order.InstallmentCount = summary.InstallmentCount
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payments.Update(ctx, tx, order); err != nil {
			return fmt.Errorf("update payment order: %w", err)
		}
		if _, err := s.ledger.Extend(ctx, tx, order.UserID, order.PlanID, order.Quantity); err != nil {
			return fmt.Errorf("extend entitlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment succeeded",
		ports.String("payment_id", order.ID),
		ports.String("remote_order_id", order.RemoteOrderID),
		ports.String("stan", order.TransactionID))

	s.notify(ctx, order)

	return &CallbackResult{
		PaymentID: order.ID,
		Status:    models.StatusSucceeded,
		Message:   summary.ResponseMessage,
		Amount:    order.Amount,
		Currency:  order.Currency,
	}, nil
}

// Cancel fully reverses a succeeded payment before settlement and rolls the
// entitlement back. All four bank reference numbers are a hard precondition.
func (s *Service) Cancel(ctx context.Context, paymentID string) (*models.PaymentOrder, error) {
	order, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment order: %w", err)
	}
	if !order.Status.CanCancel() {
		return nil, pkgerrors.NewValidationError("status",
			fmt.Sprintf("payment %s cannot be canceled (status: %s)", paymentID, order.Status))
	}
	if !order.HasBankReferences() {
		return nil, pkgerrors.NewPaymentError("MISSING_REFERENCES",
			"cannot cancel without stan, auth code, rrn and batch number",
			pkgerrors.CategoryValidation)
	}

	summary, gwErr := s.gateway.Cancel(ctx, order)
	if summary != nil {
		order.CancelResponse = summary.Raw
	}
	if gwErr != nil {
		s.persistOrder(ctx, order)
		s.logger.Error("cancel call failed",
			ports.String("payment_id", order.ID),
			ports.Err(gwErr))
		return nil, pkgerrors.NewPaymentError("CANCEL_UNRESOLVED", "reversal could not be confirmed",
			pkgerrors.CategoryTransport)
	}

	if !summary.Approved() {
		s.persistOrder(ctx, order)
		return nil, pkgerrors.NewPaymentError("CANCEL_REJECTED", "bank rejected the reversal",
			pkgerrors.CategoryBankRejection).WithBankMessage(summary.ResponseMessage)
	}

	order.Status = models.StatusCanceled
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payments.Update(ctx, tx, order); err != nil {
			return fmt.Errorf("update payment order: %w", err)
		}
		if _, err := s.ledger.Rollback(ctx, tx, order.UserID, order.PlanID, order.Quantity); err != nil {
			return fmt.Errorf("rollback entitlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment canceled",
		ports.String("payment_id", order.ID),
		ports.String("merchant_order_id", order.MerchantOrderID))
	return order, nil
}

// Refund draws back part or all of a succeeded payment. The cumulative
// refunded amount never decreases and never exceeds the original amount;
// only a refund reaching the full amount rolls the entitlement back.
func (s *Service) Refund(ctx context.Context, paymentID string, amount int64) (*models.PaymentOrder, error) {
	if amount <= 0 {
		return nil, pkgerrors.NewValidationError("amount", "refund amount must be positive")
	}

	order, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment order: %w", err)
	}
	if !order.Status.CanRefund() {
		return nil, pkgerrors.NewValidationError("status",
			fmt.Sprintf("payment %s cannot be refunded (status: %s)", paymentID, order.Status))
	}

	remaining := order.Amount - order.RefundedAmount
	if amount > remaining {
		return nil, pkgerrors.NewValidationError("amount",
			fmt.Sprintf("refund of %d exceeds remaining refundable %d", amount, remaining))
	}
	full := amount == remaining

	summary, gwErr := s.gateway.Refund(ctx, order, amount, !full)
	if summary != nil {
		order.RefundResponse = summary.Raw
	}
	if gwErr != nil {
		s.persistOrder(ctx, order)
		s.logger.Error("refund call failed",
			ports.String("payment_id", order.ID),
			ports.Int64("amount", amount),
			ports.Err(gwErr))
		return nil, pkgerrors.NewPaymentError("REFUND_UNRESOLVED", "drawback could not be confirmed",
			pkgerrors.CategoryTransport)
	}

	if !summary.Approved() {
		s.persistOrder(ctx, order)
		return nil, pkgerrors.NewPaymentError("REFUND_REJECTED", "bank rejected the drawback",
			pkgerrors.CategoryBankRejection).WithBankMessage(summary.ResponseMessage)
	}

	order.RefundedAmount += amount
	if order.RefundedAmount >= order.Amount {
		order.RefundedAmount = order.Amount
		order.Status = models.StatusRefunded
	} else {
		order.Status = models.StatusPartiallyRefunded
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payments.Update(ctx, tx, order); err != nil {
			return fmt.Errorf("update payment order: %w", err)
		}
		if order.Status == models.StatusRefunded {
			if _, err := s.ledger.Rollback(ctx, tx, order.UserID, order.PlanID, order.Quantity); err != nil {
				return fmt.Errorf("rollback entitlement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment refunded",
		ports.String("payment_id", order.ID),
		ports.Int64("refund_amount", amount),
		ports.Int64("refunded_total", order.RefundedAmount),
		ports.String("status", string(order.Status)))
	return order, nil
}

// SyncStatus reconciles the local status with the bank's view. It is the
// drift-correction path for cancels and refunds that succeeded bank-side
// while the application failed before recording the outcome. The bank's
// status is applied only when it differs from the stored one.
func (s *Service) SyncStatus(ctx context.Context, paymentID string) (*models.PaymentOrder, error) {
	order, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment order: %w", err)
	}

	result, gwErr := s.gateway.Status(ctx, order)
	if result != nil {
		order.StatusResponse = result.Raw
	}
	if gwErr != nil {
		s.persistOrder(ctx, order)
		s.logger.Error("status query failed",
			ports.String("payment_id", order.ID),
			ports.Err(gwErr))
		return nil, pkgerrors.NewPaymentError("STATUS_UNRESOLVED", "order detail could not be retrieved",
			pkgerrors.CategoryTransport)
	}

	mapped := result.MappedStatus
	if mapped == "" || mapped == order.Status {
		s.persistOrder(ctx, order)
		return order, nil
	}

	prior := order.Status
	order.Status = mapped
	if mapped == models.StatusRefunded {
		order.RefundedAmount = order.Amount
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payments.Update(ctx, tx, order); err != nil {
			return fmt.Errorf("update payment order: %w", err)
		}
		if mapped == models.StatusCanceled || mapped == models.StatusRefunded {
			if _, err := s.ledger.Rollback(ctx, tx, order.UserID, order.PlanID, order.Quantity); err != nil {
				return fmt.Errorf("rollback entitlement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment status synced",
		ports.String("payment_id", order.ID),
		ports.String("prior_status", string(prior)),
		ports.String("bank_status", string(mapped)))
	return order, nil
}

// GetOrder returns the order with its raw bank payloads and the consent
// trail, for dispute review.
func (s *Service) GetOrder(ctx context.Context, paymentID string) (*models.PaymentOrder, []*models.PaymentConsent, error) {
	order, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get payment order: %w", err)
	}
	consents, err := s.consents.ListByPayment(ctx, nil, paymentID)
	if err != nil {
		return nil, nil, fmt.Errorf("list consents: %w", err)
	}
	return order, consents, nil
}

// ListOrders returns a user's payment history.
func (s *Service) ListOrders(ctx context.Context, userID string, limit, offset int32) ([]*models.PaymentOrder, error) {
	orders, err := s.payments.ListByUser(ctx, nil, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payment orders: %w", err)
	}
	return orders, nil
}

// verifyCallback compares the bank's echoed fields against the stored order.
// Any mismatch is a security failure, not a business failure.
func verifyCallback(order *models.PaymentOrder, cb *ports.CallbackPayload) error {
	if cb.MerchantOrderID != order.MerchantOrderID {
		return fmt.Errorf("merchant order id mismatch: got %q want %q", cb.MerchantOrderID, order.MerchantOrderID)
	}
	if cb.Amount != order.Amount {
		return fmt.Errorf("amount mismatch: got %d want %d", cb.Amount, order.Amount)
	}
	if models.AlphaCurrency(cb.CurrencyCode) != order.Currency {
		return fmt.Errorf("currency mismatch: got %q want %q", cb.CurrencyCode, order.Currency)
	}
	if cb.TransactionSecurity != ports.TransactionSecure3DS {
		return fmt.Errorf("transaction security mismatch: got %q", cb.TransactionSecurity)
	}
	return nil
}

// failOrder marks the order failed and persists it. rawField, when non-nil,
// receives the synthesized payload first.
func (s *Service) failOrder(ctx context.Context, order *models.PaymentOrder, rawField *string, raw string) {
	if rawField != nil && raw != "" {
		*rawField = raw
	}
	order.Status = models.StatusFailed
	s.persistOrder(ctx, order)
}

// persistOrder writes the whole row. Persistence failures here are logged
// and swallowed because the caller is already on an error path and the raw
// payloads must not mask the original failure.
func (s *Service) persistOrder(ctx context.Context, order *models.PaymentOrder) {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.payments.Update(ctx, tx, order)
	})
	if err != nil {
		s.logger.Error("failed to persist payment order",
			ports.String("payment_id", order.ID),
			ports.Err(err))
	}
}

// notify sends the success email. Best effort: a notification failure never
// affects the financial state.
func (s *Service) notify(ctx context.Context, order *models.PaymentOrder) {
	if s.notifier == nil {
		return
	}
	plan, err := s.plans.GetByID(ctx, nil, order.PlanID)
	if err != nil {
		s.logger.Warn("notification skipped: plan lookup failed",
			ports.String("payment_id", order.ID),
			ports.Err(err))
		return
	}
	if err := s.notifier.PaymentSucceeded(ctx, order, plan); err != nil {
		s.logger.Warn("success notification failed",
			ports.String("payment_id", order.ID),
			ports.Err(err))
	}
}

func validateInitiate(req *InitiateRequest) error {
	if req.UserID == "" {
		return pkgerrors.NewValidationError("user_id", "user id is required")
	}
	if req.PlanID == "" {
		return pkgerrors.NewValidationError("plan_id", "plan id is required")
	}
	if req.Quantity < 1 {
		return pkgerrors.NewValidationError("quantity", "quantity must be at least 1")
	}
	if req.Card.Number == "" {
		return pkgerrors.NewValidationError("card_number", "card number is required")
	}
	if req.Card.ExpireMonth == "" || req.Card.ExpireYear == "" {
		return pkgerrors.NewValidationError("card_expiry", "card expiry is required")
	}
	if req.Card.CVV == "" {
		return pkgerrors.NewValidationError("card_cvv", "card cvv is required")
	}
	if req.Billing.Email == "" {
		return pkgerrors.NewValidationError("email", "billing email is required")
	}
	if req.Billing.FullName == "" {
		return pkgerrors.NewValidationError("full_name", "cardholder name is required")
	}

	required := map[models.ConsentType]bool{
		models.ConsentKVKK:          false,
		models.ConsentDistanceSales: false,
		models.ConsentSubscription:  false,
	}
	for _, c := range req.Consents {
		if _, ok := required[c.Type]; !ok {
			return pkgerrors.NewValidationError("consents", fmt.Sprintf("unknown consent type %q", c.Type))
		}
		required[c.Type] = true
	}
	for t, accepted := range required {
		if !accepted {
			return pkgerrors.NewValidationError("consents", fmt.Sprintf("consent %q must be accepted", t))
		}
	}
	return nil
}

// newMerchantOrderID builds the externally visible order id the bank echoes
// back: timestamp plus a random five-digit suffix.
func newMerchantOrderID(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return timeutil.BankTimestamp(now) + fmt.Sprintf("%05d", binary.BigEndian.Uint32(b[:])%100000)
}
