package kuveyt

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/domain/ports"
	"github.com/dergipress/payment-service/pkg/observability"
)

// Namespace of the bank's WCF query service. The SOAPAction header must be
// exactly "<namespace>/IVirtualPosService/<Action>".
const soapNamespace = "http://boa.net/BOA.Integration.VirtualPos"

// SOAPAction names the four supported bank operations.
type SOAPAction string

const (
	ActionSaleReversal           SOAPAction = "SaleReversal"
	ActionDrawBack               SOAPAction = "DrawBack"
	ActionPartialDrawback        SOAPAction = "PartialDrawback"
	ActionGetMerchantOrderDetail SOAPAction = "GetMerchantOrderDetail"
)

// VPosMessageContract is the SOAP request payload. Like the gateway XML,
// every tag is emitted even when empty.
type VPosMessageContract struct {
	APIVersion          string `xml:"APIVersion"`
	HashData            string `xml:"HashData"`
	HashPassword        string `xml:"HashPassword"`
	MerchantId          string `xml:"MerchantId"`
	CustomerId          string `xml:"CustomerId"`
	UserName            string `xml:"UserName"`
	TransactionType     string `xml:"TransactionType"`
	InstallmentCount    string `xml:"InstallmentCount"`
	Amount              string `xml:"Amount"`
	DisplayAmount       string `xml:"DisplayAmount"`
	CurrencyCode        string `xml:"CurrencyCode"`
	MerchantOrderId     string `xml:"MerchantOrderId"`
	OrderId             string `xml:"OrderId"`
	RRN                 string `xml:"RRN"`
	Stan                string `xml:"Stan"`
	ProvisionNumber     string `xml:"ProvisionNumber"`
	BatchId             string `xml:"BatchId"`
	TransactionSecurity string `xml:"TransactionSecurity"`
	CustomerIPAddress   string `xml:"CustomerIPAddress"`
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapRequestBody
}

type soapRequestBody struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
	Action  soapActionElement
}

type soapActionElement struct {
	XMLName xml.Name
	Request *VPosMessageContract `xml:"request"`
}

type soapResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

// SOAPClient invokes the bank's query service operations: reversal, full and
// partial drawback, and order-detail queries.
type SOAPClient struct {
	endpoint   string
	httpClient ports.HTTPClient
	logger     *zap.Logger
}

// NewSOAPClient creates a SOAP client against the bank's query endpoint.
func NewSOAPClient(endpoint string, httpClient ports.HTTPClient, logger *zap.Logger) *SOAPClient {
	return &SOAPClient{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Call wraps the contract in a SOAP envelope, posts it with the action header
// and unmarshals the body into result. The raw response body is returned in
// every non-transport-failure case so the caller can persist it verbatim.
// A SOAP fault is an error even on HTTP 200: transport success does not imply
// operation success.
func (c *SOAPClient) Call(ctx context.Context, action SOAPAction, contract *VPosMessageContract, result interface{}) ([]byte, error) {
	envelope := soapEnvelope{
		Body: soapRequestBody{
			Action: soapActionElement{
				XMLName: xml.Name{Space: soapNamespace, Local: string(action)},
				Request: contract,
			},
		},
	}

	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal soap envelope: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create soap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", fmt.Sprintf("%s/IVirtualPosService/%s", soapNamespace, action))

	c.logger.Info("calling bank soap action",
		zap.String("action", string(action)),
		zap.String("merchant_order_id", contract.MerchantOrderId),
	)

	defer observability.ObserveBankCall(string(action), time.Now())
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("soap %s: %w", action, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read soap response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return body, fmt.Errorf("soap %s: unexpected status %d", action, httpResp.StatusCode)
	}

	var respEnv soapResponseEnvelope
	if err := xml.Unmarshal(body, &respEnv); err != nil {
		return body, fmt.Errorf("decode soap envelope: %w", err)
	}
	if respEnv.Body.Fault != nil {
		return body, fmt.Errorf("soap fault: %s", respEnv.Body.Fault.String)
	}

	if err := xml.Unmarshal(respEnv.Body.Inner, result); err != nil {
		return body, fmt.Errorf("decode %s result: %w", action, err)
	}
	return body, nil
}
