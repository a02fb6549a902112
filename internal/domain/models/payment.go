package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment order
type PaymentStatus string

const (
	StatusInitiated         PaymentStatus = "initiated"
	StatusSucceeded         PaymentStatus = "succeeded"
	StatusFailed            PaymentStatus = "failed"
	StatusCanceled          PaymentStatus = "canceled"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
	StatusRefunded          PaymentStatus = "refunded"
)

// CanRefund reports whether a refund may be attempted in this state.
func (s PaymentStatus) CanRefund() bool {
	return s == StatusSucceeded || s == StatusPartiallyRefunded
}

// CanCancel reports whether a full pre-settlement reversal may be attempted.
func (s PaymentStatus) CanCancel() bool {
	return s == StatusSucceeded
}

// BillingInfo is the billing snapshot captured at initiation. It is immutable
// afterward and is compared against the bank's echoed fields on callback.
type BillingInfo struct {
	FullName string
	Email    string
	Phone    string
	Address  string
	City     string
	Country  string
}

// PaymentOrder represents one purchase attempt. Rows are never deleted; they
// are the durable audit trail for a monetary transaction.
type PaymentOrder struct {
	ID              string // internal id
	MerchantOrderID string // generated at initiation, echoed by the bank
	RemoteOrderID   string // bank-assigned, populated after provisioning
	UserID          string
	PlanID          string

	Amount   int64  // minor units
	Currency string // ISO alpha code (TRY, USD, EUR)
	Quantity int    // plan multiples

	Status PaymentStatus

	// Bank references, populated progressively.
	TransactionID    string // STAN
	AuthCode         string
	RRN              string // retrieval reference number
	BatchNumber      string
	CardMasked       string
	InstallmentCount int

	RefundedAmount int64 // cumulative, never exceeds Amount

	Billing BillingInfo

	// Raw bank payloads, stored verbatim for audit/dispute resolution.
	AuthResponse      string
	ProvisionResponse string
	StatusResponse    string
	CancelResponse    string
	RefundResponse    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBankReferences reports whether every reference number a reversal needs
// is present.
func (p *PaymentOrder) HasBankReferences() bool {
	return p.TransactionID != "" && p.AuthCode != "" && p.RRN != "" && p.BatchNumber != ""
}

// DisplayAmount renders a minor-unit amount as a human readable money string,
// e.g. 12990 TRY -> "129.90 TRY".
func DisplayAmount(amount int64, currency string) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2) + " " + currency
}

// ConsentType identifies one of the fixed legal consent documents.
type ConsentType string

const (
	ConsentKVKK          ConsentType = "kvkk"
	ConsentDistanceSales ConsentType = "distance_sales"
	ConsentSubscription  ConsentType = "subscription"
)

// ConsentDocument is a versioned legal document presented at checkout.
type ConsentDocument struct {
	Type    ConsentType
	Version string
	URL     string
}

// ConsentCatalogue returns the current versions of the legal documents a
// buyer must accept before checkout. The versions here are what the client
// echoes back in the checkout request and what gets recorded per payment.
func ConsentCatalogue() []ConsentDocument {
	return []ConsentDocument{
		{Type: ConsentKVKK, Version: "v3", URL: "https://dergipress.com/legal/kvkk-aydinlatma-v3"},
		{Type: ConsentDistanceSales, Version: "v2", URL: "https://dergipress.com/legal/mesafeli-satis-v2"},
		{Type: ConsentSubscription, Version: "v1", URL: "https://dergipress.com/legal/abonelik-kosullari-v1"},
	}
}

// PaymentConsent is an append-only record of one consent accepted at
// initiation time. Never mutated.
type PaymentConsent struct {
	ID         string
	PaymentID  string
	Type       ConsentType
	Version    string
	IP         string
	UserAgent  string
	AcceptedAt time.Time
}
