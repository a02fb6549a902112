package kuveyt

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
	"github.com/dergipress/payment-service/pkg/observability"
)

// Config contains configuration for the bank gateway adapter
type Config struct {
	// 3DS enrollment gate. Returns an HTML page with an auto-submit form.
	Gateway3D string

	// Payment API base. The provisioning path is appended per call.
	PaymentAPI string

	// SOAP query service for reversal, drawback and order-detail actions.
	QueryAPI string

	// Callback bases the bank redirects the browser to. The internal payment
	// id is appended as a query parameter at enrollment time.
	OkCallbackURL   string
	FailCallbackURL string

	// HTTP client timeout for bank calls
	Timeout time.Duration
}

// DefaultConfig returns endpoint configuration for the given environment.
func DefaultConfig(environment string) *Config {
	base := "https://boa.kuveytturk.com.tr"
	if environment == "test" {
		base = "https://boatest.kuveytturk.com.tr"
	}
	return &Config{
		Gateway3D:  base + "/sanalposservice/Home/ThreeDModelPayGate",
		PaymentAPI: base + "/sanalposservice/Home",
		QueryAPI:   base + "/BOA.Integration.WCFService/BOA.Integration.VirtualPos/VirtualPosService.svc",
		Timeout:    30 * time.Second,
	}
}

// Gateway implements ports.CardGateway against the bank's virtual POS.
type Gateway struct {
	config     *Config
	account    *MerchantAccount
	httpClient ports.HTTPClient
	soap       *SOAPClient
	logger     *zap.Logger
}

// NewGateway creates the gateway adapter. An incomplete merchant account is a
// configuration error: no request may be attempted without full credentials.
func NewGateway(config *Config, account *MerchantAccount, httpClient ports.HTTPClient, logger *zap.Logger) (*Gateway, error) {
	if err := account.Validate(); err != nil {
		return nil, fmt.Errorf("merchant account: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Gateway{
		config:     config,
		account:    account,
		httpClient: httpClient,
		soap:       NewSOAPClient(config.QueryAPI, httpClient, logger),
		logger:     logger,
	}, nil
}

// Enroll starts the 3DS handshake: posts the enrollment XML and extracts the
// redirect form from the HTML the bank answers with.
func (g *Gateway) Enroll(ctx context.Context, req *ports.EnrollmentRequest) (*ports.GatewayForm, error) {
	msg, err := BuildEnrollmentMessage(g.account, g.config.OkCallbackURL, g.config.FailCallbackURL, req)
	if err != nil {
		return nil, fmt.Errorf("build enrollment request: %w", err)
	}

	defer observability.ObserveBankCall("enroll", time.Now())
	body, err := g.postXML(ctx, g.config.Gateway3D, msg)
	if err != nil {
		return nil, err
	}

	form, err := ExtractGatewayForm(body)
	if err != nil {
		return nil, fmt.Errorf("enrollment response: %w", err)
	}

	g.logger.Info("3ds enrollment form built",
		zap.String("payment_id", req.PaymentID),
		zap.String("merchant_order_id", req.MerchantOrderID),
		zap.String("acs_url", form.ActionURL),
	)
	return form, nil
}

// DecodeCallback parses the URL-encoded XML the bank posts back after the
// 3DS challenge.
func (g *Gateway) DecodeCallback(authenticationResponse string) (*ports.CallbackPayload, error) {
	raw := authenticationResponse
	if unescaped, err := url.QueryUnescape(authenticationResponse); err == nil {
		raw = unescaped
	}
	resp, err := DecodeResponse([]byte(raw))
	if err != nil {
		return nil, err
	}
	return CallbackFromResponse(resp, raw)
}

// Provision sends the post-3DS confirmation request that actually moves the
// money. The echoed callback fields are authoritative over caller input.
func (g *Gateway) Provision(ctx context.Context, order *models.PaymentOrder, cb *ports.CallbackPayload) (*ports.Summary, error) {
	msg := BuildProvisionMessage(g.account, cb)

	defer observability.ObserveBankCall("provision", time.Now())
	body, err := g.postXML(ctx, g.config.PaymentAPI+"/ThreeDModelProvisionGate", msg)
	if err != nil {
		return nil, err
	}

	resp, err := DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	return SummaryFromResponse(resp, body), nil
}

type valueResult struct {
	Value VPosResponse `xml:"Value"`
}

type saleReversalResponse struct {
	XMLName xml.Name    `xml:"SaleReversalResponse"`
	Result  valueResult `xml:"SaleReversalResult"`
}

type drawBackResponse struct {
	XMLName xml.Name    `xml:"DrawBackResponse"`
	Result  valueResult `xml:"DrawBackResult"`
}

type partialDrawbackResponse struct {
	XMLName xml.Name    `xml:"PartialDrawbackResponse"`
	Result  valueResult `xml:"PartialDrawbackResult"`
}

type orderDetailResponse struct {
	XMLName xml.Name `xml:"GetMerchantOrderDetailResponse"`
	Result  struct {
		Value struct {
			Order *OrderDetail `xml:"OrderContract"`
		} `xml:"Value"`
	} `xml:"GetMerchantOrderDetailResult"`
}

// Cancel fully reverses a same-day payment before settlement.
func (g *Gateway) Cancel(ctx context.Context, order *models.PaymentOrder) (*ports.Summary, error) {
	contract := g.actionContract(order, "SaleReversal", order.Amount)

	var resp saleReversalResponse
	raw, err := g.soap.Call(ctx, ActionSaleReversal, contract, &resp)
	if err != nil {
		return summaryFromTransportError(raw, err), err
	}
	return SummaryFromResponse(&resp.Result.Value, raw), nil
}

// Refund draws back amount minor units; partial selects PartialDrawback.
func (g *Gateway) Refund(ctx context.Context, order *models.PaymentOrder, amount int64, partial bool) (*ports.Summary, error) {
	contract := g.actionContract(order, "Drawback", amount)

	if partial {
		var resp partialDrawbackResponse
		raw, err := g.soap.Call(ctx, ActionPartialDrawback, contract, &resp)
		if err != nil {
			return summaryFromTransportError(raw, err), err
		}
		return SummaryFromResponse(&resp.Result.Value, raw), nil
	}

	var resp drawBackResponse
	raw, err := g.soap.Call(ctx, ActionDrawBack, contract, &resp)
	if err != nil {
		return summaryFromTransportError(raw, err), err
	}
	return SummaryFromResponse(&resp.Result.Value, raw), nil
}

// Status queries the bank's view of the order for reconciliation.
func (g *Gateway) Status(ctx context.Context, order *models.PaymentOrder) (*ports.StatusResult, error) {
	contract := g.actionContract(order, "GetMerchantOrderDetail", order.Amount)

	var resp orderDetailResponse
	raw, err := g.soap.Call(ctx, ActionGetMerchantOrderDetail, contract, &resp)
	if err != nil {
		return &ports.StatusResult{Summary: *summaryFromTransportError(raw, err)}, err
	}
	if resp.Result.Value.Order == nil {
		return &ports.StatusResult{Summary: ports.Summary{Raw: string(raw)}},
			fmt.Errorf("order detail missing for %s", order.MerchantOrderID)
	}
	return SummaryFromOrderDetail(resp.Result.Value.Order, raw), nil
}

// actionContract fills the SOAP contract shared by every query-service call,
// including its own freshly computed integrity hash.
func (g *Gateway) actionContract(order *models.PaymentOrder, txType string, amount int64) *VPosMessageContract {
	amountStr := strconv.FormatInt(amount, 10)
	return &VPosMessageContract{
		APIVersion:          apiVersion,
		HashData:            ActionHash(g.account, order.MerchantOrderID, amountStr),
		HashPassword:        HashedPassword(g.account.Password),
		MerchantId:          g.account.MerchantID,
		CustomerId:          g.account.CustomerID,
		UserName:            g.account.Username,
		TransactionType:     txType,
		InstallmentCount:    NormalizeInstallments(order.InstallmentCount),
		Amount:              amountStr,
		DisplayAmount:       amountStr,
		CurrencyCode:        models.NumericCurrency(order.Currency),
		MerchantOrderId:     order.MerchantOrderID,
		OrderId:             order.RemoteOrderID,
		RRN:                 order.RRN,
		Stan:                order.TransactionID,
		ProvisionNumber:     order.AuthCode,
		BatchId:             order.BatchNumber,
		TransactionSecurity: TransactionSecurity3DS,
	}
}

// postXML posts an encoded request to a bank endpoint and reads the body.
// Transport failures surface as hard errors; the caller persists them.
func (g *Gateway) postXML(ctx context.Context, endpoint string, msg *VPosMessage) ([]byte, error) {
	payload, err := EncodeRequest(msg)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create bank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=UTF-8")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bank call: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bank response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("bank call: unexpected status %d", httpResp.StatusCode)
	}
	return body, nil
}

// summaryFromTransportError synthesizes a persistable payload when the bank
// call failed before a response could be mapped. The payment keeps its
// history even when the operation cannot be confirmed.
func summaryFromTransportError(raw []byte, err error) *ports.Summary {
	payload := string(raw)
	if payload == "" {
		payload = fmt.Sprintf("<TransportError>%s</TransportError>", err.Error())
	}
	return &ports.Summary{
		ResponseMessage: err.Error(),
		Raw:             payload,
	}
}
