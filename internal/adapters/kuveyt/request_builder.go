package kuveyt

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

const (
	apiVersion = "TDV2.0.0"

	// The bank's marker for a fully 3-D Secure transaction. The callback must
	// echo the same value or the payment is treated as tampered with.
	TransactionSecurity3DS = ports.TransactionSecure3DS

	transactionTypeSale = "Sale"
	deviceChannelWeb    = "02"
)

// NormalizeCardNumber strips whitespace from a caller-supplied PAN.
func NormalizeCardNumber(number string) string {
	return strings.Join(strings.Fields(number), "")
}

// NormalizeExpiry forces month and year to exactly two digits: truncating
// 4-digit years, zero-padding single digits.
func NormalizeExpiry(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 2 {
		v = v[len(v)-2:]
	}
	if len(v) == 1 {
		v = "0" + v
	}
	return v
}

// InferCardBrand maps a PAN prefix to the bank's card type vocabulary. An
// undetectable prefix yields empty: the bank tolerates a blank brand but not
// a wrong one.
func InferCardBrand(number string) string {
	switch {
	case strings.HasPrefix(number, "9792"):
		return "Troy"
	case strings.HasPrefix(number, "4"):
		return "Visa"
	case strings.HasPrefix(number, "5"), strings.HasPrefix(number, "2"):
		return "MasterCard"
	}
	return ""
}

// NormalizePhone strips country-code prefixes so only the local subscriber
// number is embedded in the request.
func NormalizePhone(phone string) string {
	p := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
	p = strings.TrimPrefix(p, "+90")
	p = strings.TrimPrefix(p, "0090")
	if len(p) == 12 && strings.HasPrefix(p, "90") {
		p = p[2:]
	}
	p = strings.TrimPrefix(p, "0")
	return p
}

// NormalizeInstallments renders the installment count the way the bank
// expects: anything at or below one is the "no installment" sentinel "0".
func NormalizeInstallments(count int) string {
	if count <= 1 {
		return "0"
	}
	return strconv.Itoa(count)
}

// callbackURL appends the internal payment id to a configured callback base
// so the asynchronous bank callback correlates without a lookup table.
func callbackURL(base, paymentID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	q.Set("payment_id", paymentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildEnrollmentMessage assembles the initial 3DS enrollment request from
// normalized card and billing data, with the integrity hash attached.
func BuildEnrollmentMessage(account *MerchantAccount, okBase, failBase string, req *ports.EnrollmentRequest) (*VPosMessage, error) {
	okURL, err := callbackURL(okBase, req.PaymentID)
	if err != nil {
		return nil, err
	}
	failURL, err := callbackURL(failBase, req.PaymentID)
	if err != nil {
		return nil, err
	}

	number := NormalizeCardNumber(req.Card.Number)
	brand := req.Card.Brand
	if brand == "" {
		brand = InferCardBrand(number)
	}

	amount := strconv.FormatInt(req.Amount, 10)
	currency := models.NumericCurrency(req.Currency)

	msg := &VPosMessage{
		APIVersion:          apiVersion,
		OkUrl:               okURL,
		FailUrl:             failURL,
		HashData:            EnrollmentHash(account, req.MerchantOrderID, amount, okURL, failURL),
		MerchantId:          account.MerchantID,
		CustomerId:          account.CustomerID,
		UserName:            account.Username,
		CardNumber:          number,
		CardExpireDateYear:  NormalizeExpiry(req.Card.ExpireYear),
		CardExpireDateMonth: NormalizeExpiry(req.Card.ExpireMonth),
		CardCVV2:            strings.TrimSpace(req.Card.CVV),
		CardHolderName:      strings.TrimSpace(req.Card.HolderName),
		CardType:            brand,
		BatchID:             "0",
		TransactionType:     transactionTypeSale,
		InstallmentCount:    NormalizeInstallments(req.Installments),
		Amount:              amount,
		DisplayAmount:       amount,
		CurrencyCode:        currency,
		MerchantOrderId:     req.MerchantOrderID,
		TransactionSecurity: TransactionSecurity3DS,
		DeviceData: &DeviceData{
			DeviceChannel: deviceChannelWeb,
			ClientIP:      req.ClientIP,
		},
		CardHolderData: &CardHolderData{
			BillAddrCity:    req.Billing.City,
			BillAddrCountry: req.Billing.Country,
			BillAddrLine1:   req.Billing.Address,
			Email:           req.Billing.Email,
			MobilePhone: &MobilePhone{
				CountryCode: "90",
				Subscriber:  NormalizePhone(req.Billing.Phone),
			},
		},
	}
	return msg, nil
}

// BuildProvisionMessage assembles the post-3DS confirmation request. Amount,
// currency, installment and merchant order id come from the bank's own
// callback echo, not from the caller, so a tampered amount between steps
// cannot reach provisioning.
func BuildProvisionMessage(account *MerchantAccount, cb *ports.CallbackPayload) *VPosMessage {
	amount := strconv.FormatInt(cb.Amount, 10)
	return &VPosMessage{
		APIVersion:          apiVersion,
		HashData:            ActionHash(account, cb.MerchantOrderID, amount),
		MerchantId:          account.MerchantID,
		CustomerId:          account.CustomerID,
		UserName:            account.Username,
		TransactionType:     transactionTypeSale,
		InstallmentCount:    NormalizeInstallments(cb.InstallmentCount),
		Amount:              amount,
		DisplayAmount:       amount,
		CurrencyCode:        cb.CurrencyCode,
		MerchantOrderId:     cb.MerchantOrderID,
		TransactionSecurity: cb.TransactionSecurity,
		AdditionalData: &AdditionalData{
			Key:  "MD",
			Data: cb.MD,
		},
	}
}
