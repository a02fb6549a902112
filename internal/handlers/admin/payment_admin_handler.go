package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
	"github.com/dergipress/payment-service/internal/services/payment"
	"github.com/dergipress/payment-service/pkg/encoding"
	pkgerrors "github.com/dergipress/payment-service/pkg/errors"
	"github.com/dergipress/payment-service/pkg/observability"
)

// Handler serves the back-office payment operations: reversal, refund,
// status reconciliation and dispute review.
type Handler struct {
	payments *payment.Service
	logger   *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(payments *payment.Service, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

type orderResponse struct {
	ID               string    `json:"id"`
	MerchantOrderID  string    `json:"merchant_order_id"`
	RemoteOrderID    string    `json:"remote_order_id,omitempty"`
	UserID           string    `json:"user_id"`
	PlanID           string    `json:"plan_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Display          string    `json:"display"`
	Quantity         int       `json:"quantity"`
	Status           string    `json:"status"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	AuthCode         string    `json:"auth_code,omitempty"`
	RRN              string    `json:"rrn,omitempty"`
	BatchNumber      string    `json:"batch_number,omitempty"`
	CardMasked       string    `json:"card_masked,omitempty"`
	InstallmentCount int       `json:"installment_count,omitempty"`
	RefundedAmount   int64     `json:"refunded_amount"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toOrderResponse(o *models.PaymentOrder) orderResponse {
	return orderResponse{
		ID:               o.ID,
		MerchantOrderID:  o.MerchantOrderID,
		RemoteOrderID:    o.RemoteOrderID,
		UserID:           o.UserID,
		PlanID:           o.PlanID,
		Amount:           o.Amount,
		Currency:         o.Currency,
		Display:          models.DisplayAmount(o.Amount, o.Currency),
		Quantity:         o.Quantity,
		Status:           string(o.Status),
		TransactionID:    o.TransactionID,
		AuthCode:         o.AuthCode,
		RRN:              o.RRN,
		BatchNumber:      o.BatchNumber,
		CardMasked:       o.CardMasked,
		InstallmentCount: o.InstallmentCount,
		RefundedAmount:   o.RefundedAmount,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// GetPayment returns one order with its consent trail and raw bank payloads.
// Endpoint: GET /api/v1/admin/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, consents, err := h.payments.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	type consentResponse struct {
		Type       string    `json:"type"`
		Version    string    `json:"version"`
		IP         string    `json:"ip,omitempty"`
		UserAgent  string    `json:"user_agent,omitempty"`
		AcceptedAt time.Time `json:"accepted_at"`
	}
	type detailResponse struct {
		orderResponse
		Consents     []consentResponse `json:"consents"`
		BankPayloads map[string]string `json:"bank_payloads"`
	}

	detail := detailResponse{
		orderResponse: toOrderResponse(order),
		Consents:      make([]consentResponse, 0, len(consents)),
		BankPayloads: map[string]string{
			"auth":      order.AuthResponse,
			"provision": order.ProvisionResponse,
			"status":    order.StatusResponse,
			"cancel":    order.CancelResponse,
			"refund":    order.RefundResponse,
		},
	}
	for _, c := range consents {
		detail.Consents = append(detail.Consents, consentResponse{
			Type:       string(c.Type),
			Version:    c.Version,
			IP:         c.IP,
			UserAgent:  c.UserAgent,
			AcceptedAt: c.AcceptedAt,
		})
	}

	writeJSON(w, detail)
}

// ListUserPayments returns a user's payment history.
// Endpoint: GET /api/v1/admin/users/{userID}/payments?limit=20&offset=0
func (h *Handler) ListUserPayments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt32(r, "limit", 20)
	offset := queryInt32(r, "offset", 0)

	orders, err := h.payments.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, out)
}

// CancelPayment reverses a succeeded payment before settlement.
// Endpoint: POST /api/v1/admin/payments/{id}/cancel
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.payments.Cancel(r.Context(), id)
	if err != nil {
		observability.RecordCancel(cancelOutcome(err))
		h.writeError(w, err)
		return
	}

	observability.RecordCancel("approved")
	writeJSON(w, toOrderResponse(order))
}

type refundRequest struct {
	Amount int64 `json:"amount"` // minor units
}

// RefundPayment draws back part or all of a settled payment.
// Endpoint: POST /api/v1/admin/payments/{id}/refund
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.payments.Refund(r.Context(), id, req.Amount)
	if err != nil {
		observability.RecordRefund("unknown", cancelOutcome(err))
		h.writeError(w, err)
		return
	}

	kind := "partial"
	if order.Status == models.StatusRefunded {
		kind = "full"
	}
	observability.RecordRefund(kind, "approved")
	writeJSON(w, toOrderResponse(order))
}

// SyncPayment reconciles the stored status with the bank's view.
// Endpoint: POST /api/v1/admin/payments/{id}/sync
func (h *Handler) SyncPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	before, _, err := h.payments.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	order, err := h.payments.SyncStatus(r.Context(), id)
	if err != nil {
		observability.RecordStatusSync("unresolved")
		h.writeError(w, err)
		return
	}

	if order.Status == before.Status {
		observability.RecordStatusSync("unchanged")
	} else {
		observability.RecordStatusSync("drifted")
	}
	writeJSON(w, toOrderResponse(order))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ports.ErrNotFound) {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	var vErr *pkgerrors.ValidationError
	if errors.As(err, &vErr) {
		http.Error(w, vErr.Error(), http.StatusConflict)
		return
	}
	var pErr *pkgerrors.PaymentError
	if errors.As(err, &pErr) {
		switch pErr.Category {
		case pkgerrors.CategoryValidation:
			http.Error(w, pErr.Error(), http.StatusConflict)
		case pkgerrors.CategoryBankRejection:
			http.Error(w, pErr.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, pErr.Error(), http.StatusBadGateway)
		}
		return
	}
	h.logger.Error("unhandled admin error", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	body, err := encoding.EncodeJSON(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return fallback
	}
	return int32(n)
}

func cancelOutcome(err error) string {
	var pErr *pkgerrors.PaymentError
	if errors.As(err, &pErr) && pErr.Category == pkgerrors.CategoryBankRejection {
		return "rejected"
	}
	return "unresolved"
}
