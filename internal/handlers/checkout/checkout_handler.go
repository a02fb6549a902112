package checkout

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
	"github.com/dergipress/payment-service/internal/services/payment"
	"github.com/dergipress/payment-service/pkg/encoding"
	pkgerrors "github.com/dergipress/payment-service/pkg/errors"
	"github.com/dergipress/payment-service/pkg/observability"
)

// Handler serves the checkout surface: the plan catalogue and the purchase
// endpoint that opens the 3-D Secure redirect.
type Handler struct {
	payments *payment.Service
	plans    ports.PlanRepository
	logger   *zap.Logger
}

// NewHandler creates a new checkout handler
func NewHandler(payments *payment.Service, plans ports.PlanRepository, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, plans: plans, logger: logger}
}

type consentRequest struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

type checkoutRequest struct {
	UserID       string           `json:"user_id"`
	PlanID       string           `json:"plan_id"`
	Quantity     int              `json:"quantity"`
	Installments int              `json:"installments"`
	CardNumber   string           `json:"card_number"`
	ExpireMonth  string           `json:"expire_month"`
	ExpireYear   string           `json:"expire_year"`
	CVV          string           `json:"cvv"`
	FullName     string           `json:"full_name"`
	Email        string           `json:"email"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	City         string           `json:"city"`
	Country      string           `json:"country"`
	Consents     []consentRequest `json:"consents"`
}

type checkoutResponse struct {
	PaymentID       string      `json:"payment_id"`
	MerchantOrderID string      `json:"merchant_order_id"`
	RedirectHTML    string      `json:"redirect_html,omitempty"`
	Form            *formDetail `json:"form,omitempty"`
}

type formDetail struct {
	Action string            `json:"action"`
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`
}

// Checkout starts a purchase and returns the bank's auto-submit 3DS form.
// Endpoint: POST /api/v1/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	consents := make([]payment.ConsentAcceptance, 0, len(req.Consents))
	for _, c := range req.Consents {
		consents = append(consents, payment.ConsentAcceptance{
			Type:    models.ConsentType(c.Type),
			Version: c.Version,
		})
	}

	observability.RecordPaymentInitiated()

	result, err := h.payments.Initiate(r.Context(), &payment.InitiateRequest{
		UserID:       req.UserID,
		PlanID:       req.PlanID,
		Quantity:     req.Quantity,
		Installments: req.Installments,
		Card: ports.CardInfo{
			Number:      req.CardNumber,
			ExpireMonth: req.ExpireMonth,
			ExpireYear:  req.ExpireYear,
			CVV:         req.CVV,
			HolderName:  req.FullName,
		},
		Billing: models.BillingInfo{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Address:  req.Address,
			City:     req.City,
			Country:  req.Country,
		},
		Consents:  consents,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := checkoutResponse{
		PaymentID:       result.PaymentID,
		MerchantOrderID: result.MerchantOrderID,
	}
	if result.Form != nil {
		resp.RedirectHTML = result.Form.RawHTML
		fields := make(map[string]string, len(result.Form.Fields))
		for _, f := range result.Form.Fields {
			fields[f.Name] = f.Value
		}
		resp.Form = &formDetail{
			Action: result.Form.ActionURL,
			Method: result.Form.Method,
			Fields: fields,
		}
	}

	writeJSON(w, resp)
}

// ListPlans returns the plan catalogue with display prices.
// Endpoint: GET /api/v1/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.List(r.Context(), nil)
	if err != nil {
		h.logger.Error("list plans failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type planResponse struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		DurationDays int    `json:"duration_days"`
		Price        int64  `json:"price"`
		Currency     string `json:"currency"`
		Display      string `json:"display"`
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:           p.ID,
			Name:         p.Name,
			DurationDays: p.DurationDays,
			Price:        p.Price,
			Currency:     p.Currency,
			Display:      models.DisplayAmount(p.Price, p.Currency),
		})
	}

	writeJSON(w, out)
}

// ListConsentDocuments returns the versioned legal documents presented with
// the checkout form. The client links each URL and echoes type+version back
// in the checkout request.
// Endpoint: GET /api/v1/consents
func (h *Handler) ListConsentDocuments(w http.ResponseWriter, r *http.Request) {
	type consentResponse struct {
		Type    string `json:"type"`
		Version string `json:"version"`
		URL     string `json:"url"`
	}
	docs := models.ConsentCatalogue()
	out := make([]consentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, consentResponse{Type: string(d.Type), Version: d.Version, URL: d.URL})
	}
	writeJSON(w, out)
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

// writeError maps domain errors to HTTP responses without leaking internals.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var vErr *pkgerrors.ValidationError
	if errors.As(err, &vErr) {
		http.Error(w, vErr.Error(), http.StatusBadRequest)
		return
	}
	var pErr *pkgerrors.PaymentError
	if errors.As(err, &pErr) {
		switch pErr.Category {
		case pkgerrors.CategoryValidation:
			http.Error(w, pErr.Message, http.StatusBadRequest)
		case pkgerrors.CategoryBankRejection:
			http.Error(w, pErr.Message, http.StatusUnprocessableEntity)
		case pkgerrors.CategorySecurityMismatch:
			http.Error(w, pErr.Message, http.StatusBadRequest)
		default:
			http.Error(w, pErr.Message, http.StatusBadGateway)
		}
		return
	}
	logger.Error("unhandled checkout error", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// clientIP honors X-Forwarded-For set by the edge proxy. The header lists
// the whole proxy chain; the buyer is the first entry.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
