package callback

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/services/payment"
	pkgerrors "github.com/dergipress/payment-service/pkg/errors"
	"github.com/dergipress/payment-service/pkg/observability"
)

// Handler receives the bank's asynchronous 3DS callbacks. The bank posts a
// URL-encoded form to the ok/fail URLs given at enrollment; both carry the
// same AuthenticationResponse field and both land here.
type Handler struct {
	payments *payment.Service
	logger   *zap.Logger

	// Browser redirect targets after the outcome is recorded.
	SuccessURL string
	FailureURL string
}

// NewHandler creates a new callback handler
func NewHandler(payments *payment.Service, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, logger: logger}
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html lang="tr">
<head><meta charset="utf-8"><title>Ödeme Sonucu</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .OrderID}}<p>Sipariş numaranız: <strong>{{.OrderID}}</strong></p>{{end}}
</body>
</html>`))

type resultView struct {
	Title   string
	Message string
	OrderID string
}

// HandleCallback processes the bank's form post and shows the buyer the
// outcome. The payment id travels in the query string we embedded in the
// callback URLs at enrollment.
// Endpoint: POST /api/v1/payments/callback?payment_id=...
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("payment_id")
	if paymentID == "" {
		h.logger.Warn("callback without payment_id",
			zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "payment_id is required", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	authResponse := r.PostFormValue("AuthenticationResponse")
	if authResponse == "" {
		h.logger.Warn("callback without AuthenticationResponse",
			zap.String("payment_id", paymentID))
		http.Error(w, "AuthenticationResponse is required", http.StatusBadRequest)
		return
	}

	result, err := h.payments.HandleCallback(r.Context(), paymentID, authResponse)
	if err != nil {
		var pErr *pkgerrors.PaymentError
		if errors.As(err, &pErr) && pErr.Category == pkgerrors.CategorySecurityMismatch {
			observability.RecordCallbackMismatch()
		}
		observability.RecordPaymentCompleted("failed", "")
		h.renderResult(w, resultView{
			Title:   "Ödeme Tamamlanamadı",
			Message: "Ödemeniz doğrulanamadı. Kartınızdan çekim yapılmadıysa tekrar deneyebilirsiniz.",
		})
		return
	}

	switch result.Status {
	case models.StatusSucceeded:
		observability.RecordPaymentCompleted("succeeded", "00")
		observability.RecordPaymentVolume(result.Amount, result.Currency)
		if h.SuccessURL != "" {
			http.Redirect(w, r, h.SuccessURL, http.StatusSeeOther)
			return
		}
		h.renderResult(w, resultView{
			Title:   "Ödeme Alındı",
			Message: "Aboneliğiniz başlatıldı. Teşekkür ederiz.",
			OrderID: result.PaymentID,
		})
	case models.StatusFailed:
		observability.RecordPaymentCompleted("failed", "")
		if h.FailureURL != "" {
			http.Redirect(w, r, h.FailureURL, http.StatusSeeOther)
			return
		}
		h.renderResult(w, resultView{
			Title:   "Ödeme Reddedildi",
			Message: fmt.Sprintf("Bankanız ödemeyi onaylamadı: %s", result.Message),
		})
	default:
		// Replayed callback for an already-settled order.
		h.renderResult(w, resultView{
			Title:   "Ödeme İşlendi",
			Message: "Bu ödeme daha önce sonuçlandırıldı.",
			OrderID: result.PaymentID,
		})
	}
}

func (h *Handler) renderResult(w http.ResponseWriter, view resultView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := resultPage.Execute(w, view); err != nil {
		h.logger.Error("render result page failed", zap.Error(err))
	}
}
