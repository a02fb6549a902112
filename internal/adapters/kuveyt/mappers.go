package kuveyt

import (
	"fmt"
	"strconv"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

// The bank's LastOrderStatus vocabulary. This table is an external contract.
const (
	lastOrderStatusSucceeded         = 1
	lastOrderStatusRefunded          = 4
	lastOrderStatusPartiallyRefunded = 5
	lastOrderStatusCanceled          = 6
)

// MapLastOrderStatus translates the status-query encoding into the payment
// status vocabulary. Unrecognized codes map to empty, meaning "no change".
func MapLastOrderStatus(code int) models.PaymentStatus {
	switch code {
	case lastOrderStatusSucceeded:
		return models.StatusSucceeded
	case lastOrderStatusRefunded:
		return models.StatusRefunded
	case lastOrderStatusPartiallyRefunded:
		return models.StatusPartiallyRefunded
	case lastOrderStatusCanceled:
		return models.StatusCanceled
	}
	return ""
}

// SummaryFromResponse normalizes a decoded bank response into the canonical
// summary. Missing substructures yield empty fields, never panics: the bank
// omits VPosMessage on several error shapes.
func SummaryFromResponse(resp *VPosResponse, raw []byte) *ports.Summary {
	s := &ports.Summary{
		ResponseCode:    resp.ResponseCode,
		ResponseMessage: resp.ResponseMessage,
		RemoteOrderID:   resp.OrderId,
		TransactionID:   resp.Stan,
		AuthCode:        resp.ProvisionNumber,
		RRN:             resp.RRN,
		BatchNumber:     resp.BatchId,
		Raw:             string(raw),
	}
	if resp.VPosMessage != nil {
		s.CardMasked = resp.VPosMessage.CardNumber
		if n, err := strconv.Atoi(resp.VPosMessage.InstallmentCount); err == nil {
			s.InstallmentCount = n
		}
	}
	return s
}

// CallbackFromResponse normalizes the decoded 3DS authentication callback.
// Echoed amount, currency and installment come from the VPosMessage echo.
func CallbackFromResponse(resp *VPosResponse, raw string) (*ports.CallbackPayload, error) {
	cb := &ports.CallbackPayload{
		ResponseCode:    resp.ResponseCode,
		ResponseMessage: resp.ResponseMessage,
		MerchantOrderID: resp.MerchantOrderId,
		MD:              resp.MD,
		Raw:             raw,
	}
	if resp.VPosMessage != nil {
		if cb.MerchantOrderID == "" {
			cb.MerchantOrderID = resp.VPosMessage.MerchantOrderId
		}
		cb.CurrencyCode = resp.VPosMessage.CurrencyCode
		cb.TransactionSecurity = resp.VPosMessage.TransactionSecurity
		if resp.VPosMessage.Amount != "" {
			amount, err := strconv.ParseInt(resp.VPosMessage.Amount, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse echoed amount %q: %w", resp.VPosMessage.Amount, err)
			}
			cb.Amount = amount
		}
		if resp.VPosMessage.InstallmentCount != "" {
			if n, err := strconv.Atoi(resp.VPosMessage.InstallmentCount); err == nil {
				cb.InstallmentCount = n
			}
		}
	}
	return cb, nil
}

// OrderDetail is the subset of the bank's GetMerchantOrderDetail contract the
// reconciliation path reads.
type OrderDetail struct {
	OrderID         string `xml:"OrderId"`
	MerchantOrderID string `xml:"MerchantOrderId"`
	LastOrderStatus int    `xml:"LastOrderStatus"`
	ResponseCode    string `xml:"ResponseCode"`
	ResponseMessage string `xml:"ResponseMessage"`
	FirstAmount     string `xml:"FirstAmount"`
	DrawbackAmount  string `xml:"DrawbackAmount"`
}

// SummaryFromOrderDetail normalizes a status-query row.
func SummaryFromOrderDetail(d *OrderDetail, raw []byte) *ports.StatusResult {
	return &ports.StatusResult{
		Summary: ports.Summary{
			ResponseCode:    d.ResponseCode,
			ResponseMessage: d.ResponseMessage,
			RemoteOrderID:   d.OrderID,
			Raw:             string(raw),
		},
		MappedStatus: MapLastOrderStatus(d.LastOrderStatus),
	}
}
