package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// Config holds the Mailtrap transactional API settings.
type Config struct {
	APIURL   string // e.g. "https://send.api.mailtrap.io/api/send"
	APIToken string
	From     string
	FromName string
}

// MailtrapNotifier implements ports.Notifier over Mailtrap's send API.
type MailtrapNotifier struct {
	cfg        Config
	httpClient ports.HTTPClient
}

// NewMailtrapNotifier creates a Mailtrap-backed notifier. A nil httpClient
// falls back to http.DefaultClient.
func NewMailtrapNotifier(cfg Config, httpClient ports.HTTPClient) *MailtrapNotifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MailtrapNotifier{cfg: cfg, httpClient: httpClient}
}

type person struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendPayload struct {
	From     person   `json:"from"`
	To       []person `json:"to"`
	Subject  string   `json:"subject"`
	Text     string   `json:"text,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Category string   `json:"category,omitempty"`
}

// PaymentSucceeded emails the buyer a purchase confirmation.
func (m *MailtrapNotifier) PaymentSucceeded(ctx context.Context, order *models.PaymentOrder, plan *models.SubscriptionPlan) error {
	if m.cfg.APIURL == "" || m.cfg.APIToken == "" {
		return fmt.Errorf("mailtrap credentials not configured")
	}

	amount := models.DisplayAmount(order.Amount, order.Currency)
	subject := fmt.Sprintf("Aboneliğiniz başlatıldı: %s", plan.Name)
	text := fmt.Sprintf(
		"Merhaba %s,\n\n%s aboneliğiniz için %s tutarındaki ödemeniz alındı.\nSipariş numaranız: %s\n\nİyi okumalar!",
		order.Billing.FullName, plan.Name, amount, order.MerchantOrderID,
	)

	payload := sendPayload{
		From:     person{Email: m.cfg.From, Name: m.cfg.FromName},
		To:       []person{{Email: order.Billing.Email, Name: order.Billing.FullName}},
		Subject:  subject,
		Text:     text,
		Category: "Transactional",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("mailtrap API error: %d", res.StatusCode)
	}
	return nil
}
