package ports

import (
	"context"

	"github.com/dergipress/payment-service/internal/domain/models"
)

// TransactionSecure3DS is the bank's marker for a fully 3-D Secure
// transaction. Callbacks must echo exactly this value; anything else is
// treated as tampering.
const TransactionSecure3DS = "3"

// CardInfo carries raw card data supplied by the buyer at checkout. It is
// normalized by the gateway adapter and never persisted.
type CardInfo struct {
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVV         string
	HolderName  string
	Brand       string // inferred from the number when empty
}

// EnrollmentRequest is everything the 3-D Secure enrollment step needs.
type EnrollmentRequest struct {
	PaymentID       string
	MerchantOrderID string
	Amount          int64 // minor units
	Currency        string
	Installments    int
	Card            CardInfo
	Billing         models.BillingInfo
	ClientIP        string
}

// FormField is one hidden input of the bank's auto-submit form.
type FormField struct {
	Name  string
	Value string
}

// GatewayForm is the 3DS redirect form the buyer's browser must replay
// verbatim against the bank's ACS. RawHTML carries the bank's page untouched
// for clients that render it directly.
type GatewayForm struct {
	ActionURL string
	Method    string
	Fields    []FormField
	RawHTML   string
}

// CallbackPayload is the decoded 3DS authentication callback the bank posts
// back after the buyer completes the challenge.
type CallbackPayload struct {
	ResponseCode        string
	ResponseMessage     string
	MerchantOrderID     string
	MD                  string // bank's session token, echoed into provisioning
	Amount              int64  // minor units, as echoed by the bank
	CurrencyCode        string // bank numeric code, e.g. "0949"
	InstallmentCount    int
	TransactionSecurity string
	Raw                 string // verbatim payload for audit
}

// Summary is the canonical normalization of any bank response shape.
type Summary struct {
	ResponseCode     string
	ResponseMessage  string
	RemoteOrderID    string
	TransactionID    string // STAN
	AuthCode         string
	RRN              string
	BatchNumber      string
	CardMasked       string
	InstallmentCount int
	Raw              string // verbatim response payload
}

// Approved reports whether the bank approved the operation. The bank's only
// success code is the exact string "00".
func (s *Summary) Approved() bool {
	return s.ResponseCode == "00"
}

// StatusResult is the outcome of an order-detail query. MappedStatus is empty
// when the bank's LastOrderStatus is not one of the recognized codes.
type StatusResult struct {
	Summary
	MappedStatus models.PaymentStatus
}

// CardGateway is the outbound port to the bank's virtual POS.
type CardGateway interface {
	// Enroll starts the 3DS handshake and returns the redirect form.
	Enroll(ctx context.Context, req *EnrollmentRequest) (*GatewayForm, error)

	// DecodeCallback parses the URL-encoded XML the bank posts back.
	DecodeCallback(authenticationResponse string) (*CallbackPayload, error)

	// Provision confirms the authenticated payment and moves the money.
	Provision(ctx context.Context, order *models.PaymentOrder, cb *CallbackPayload) (*Summary, error)

	// Cancel fully reverses a same-day payment before settlement.
	Cancel(ctx context.Context, order *models.PaymentOrder) (*Summary, error)

	// Refund draws back amount minor units. partial selects the bank's
	// partial-drawback operation.
	Refund(ctx context.Context, order *models.PaymentOrder, amount int64, partial bool) (*Summary, error)

	// Status queries the bank's view of the order.
	Status(ctx context.Context, order *models.PaymentOrder) (*StatusResult, error)
}
