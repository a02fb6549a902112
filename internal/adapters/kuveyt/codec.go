package kuveyt

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/dergipress/payment-service/internal/domain/ports"
)

// MerchantAccount holds the virtual POS credentials issued by the bank.
// All four fields are required before any request is attempted.
type MerchantAccount struct {
	MerchantID string
	CustomerID string
	Username   string
	Password   string
}

// Validate reports the first missing credential field, if any.
func (a *MerchantAccount) Validate() error {
	switch {
	case a.MerchantID == "":
		return fmt.Errorf("merchant id is required")
	case a.CustomerID == "":
		return fmt.Errorf("customer id is required")
	case a.Username == "":
		return fmt.Errorf("username is required")
	case a.Password == "":
		return fmt.Errorf("password is required")
	}
	return nil
}

// VPosMessage is the bank's XML request shape. Every tag is emitted even when
// empty: the bank rejects messages with missing tags, silently in some paths.
type VPosMessage struct {
	XMLName             xml.Name        `xml:"KuveytTurkVPosMessage"`
	APIVersion          string          `xml:"APIVersion"`
	OkUrl               string          `xml:"OkUrl"`
	FailUrl             string          `xml:"FailUrl"`
	HashData            string          `xml:"HashData"`
	MerchantId          string          `xml:"MerchantId"`
	CustomerId          string          `xml:"CustomerId"`
	UserName            string          `xml:"UserName"`
	CardNumber          string          `xml:"CardNumber"`
	CardExpireDateYear  string          `xml:"CardExpireDateYear"`
	CardExpireDateMonth string          `xml:"CardExpireDateMonth"`
	CardCVV2            string          `xml:"CardCVV2"`
	CardHolderName      string          `xml:"CardHolderName"`
	CardType            string          `xml:"CardType"`
	BatchID             string          `xml:"BatchID"`
	TransactionType     string          `xml:"TransactionType"`
	InstallmentCount    string          `xml:"InstallmentCount"`
	Amount              string          `xml:"Amount"`
	DisplayAmount       string          `xml:"DisplayAmount"`
	CurrencyCode        string          `xml:"CurrencyCode"`
	MerchantOrderId     string          `xml:"MerchantOrderId"`
	TransactionSecurity string          `xml:"TransactionSecurity"`
	DeviceData          *DeviceData     `xml:"DeviceData,omitempty"`
	CardHolderData      *CardHolderData `xml:"CardHolderData,omitempty"`
	AdditionalData      *AdditionalData `xml:"KuveytTurkVPosAdditionalData,omitempty"`
}

// DeviceData carries the buyer's device fingerprint for risk scoring.
type DeviceData struct {
	DeviceChannel string `xml:"DeviceChannel"`
	ClientIP      string `xml:"ClientIP"`
}

// CardHolderData is the billing snapshot embedded in the enrollment request.
type CardHolderData struct {
	BillAddrCity    string       `xml:"BillAddrCity"`
	BillAddrCountry string       `xml:"BillAddrCountry"`
	BillAddrLine1   string       `xml:"BillAddrLine1"`
	Email           string       `xml:"EmailAddress"`
	MobilePhone     *MobilePhone `xml:"MobilePhone,omitempty"`
}

// MobilePhone splits a phone number into country code and local subscriber.
type MobilePhone struct {
	CountryCode string `xml:"Cc"`
	Subscriber  string `xml:"Subscriber"`
}

// AdditionalData wraps the MD session token echoed into provisioning.
type AdditionalData struct {
	Key  string `xml:"AdditionalData>Key"`
	Data string `xml:"AdditionalData>Data"`
}

// VPosResponse is the bank's response contract, shared by the 3DS callback
// payload and the provisioning response. The bank omits VPosMessage on some
// error shapes; decoding tolerates that and any unknown extra tags.
type VPosResponse struct {
	VPosMessage     *VPosMessageEcho `xml:"VPosMessage"`
	ResponseCode    string           `xml:"ResponseCode"`
	ResponseMessage string           `xml:"ResponseMessage"`
	OrderId         string           `xml:"OrderId"`
	MerchantOrderId string           `xml:"MerchantOrderId"`
	ProvisionNumber string           `xml:"ProvisionNumber"`
	RRN             string           `xml:"RRN"`
	Stan            string           `xml:"Stan"`
	BatchId         string           `xml:"BatchId"`
	MD              string           `xml:"MD"`
	TransactionTime string           `xml:"TransactionTime"`
}

// VPosMessageEcho is the bank's echo of the original request inside a
// response. These values are authoritative over anything caller-supplied.
type VPosMessageEcho struct {
	Amount              string `xml:"Amount"`
	CurrencyCode        string `xml:"CurrencyCode"`
	InstallmentCount    string `xml:"InstallmentCount"`
	MerchantOrderId     string `xml:"MerchantOrderId"`
	TransactionSecurity string `xml:"TransactionSecurity"`
	CardNumber          string `xml:"CardNumber"` // masked by the bank
}

// EncodeRequest serializes a request message to the bank's wire format.
func EncodeRequest(msg *VPosMessage) ([]byte, error) {
	body, err := xml.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode vpos message: %w", err)
	}
	return body, nil
}

// DecodeResponse parses a bank response. Malformed XML is a recoverable
// error: callers mark the payment failed with a diagnostic rather than panic.
func DecodeResponse(data []byte) (*VPosResponse, error) {
	var resp VPosResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode vpos response: %w", err)
	}
	return &resp, nil
}

// HashedPassword is the bank's one-way digest of the shared secret,
// embedded into every integrity hash.
func HashedPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// EnrollmentHash computes the integrity hash for the 3DS enrollment request.
// The concatenation order is a bank contract; reordering or omitting a field
// causes silent rejection on the bank side.
func EnrollmentHash(account *MerchantAccount, merchantOrderID, amount, okURL, failURL string) string {
	plain := account.MerchantID + merchantOrderID + amount + okURL + failURL +
		account.Username + HashedPassword(account.Password)
	sum := sha1.Sum([]byte(plain))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ActionHash computes the integrity hash for provisioning and SOAP actions,
// which use a shorter bank-mandated field subset than enrollment.
func ActionHash(account *MerchantAccount, merchantOrderID, amount string) string {
	plain := account.MerchantID + merchantOrderID + amount +
		account.Username + HashedPassword(account.Password)
	sum := sha1.Sum([]byte(plain))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ExtractGatewayForm pulls the auto-submit form's target URL and every hidden
// input out of the bank's 3DS enrollment HTML page, verbatim, so the buyer's
// browser can replay it against the ACS.
func ExtractGatewayForm(page []byte) (*ports.GatewayForm, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse gateway page: %w", err)
	}

	form := &ports.GatewayForm{RawHTML: string(page)}
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inForm bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "form":
				if form.ActionURL == "" {
					form.ActionURL = attr(n, "action")
					form.Method = attr(n, "method")
					inForm = true
				}
			case "input":
				if inForm {
					name := attr(n, "name")
					if name != "" {
						form.Fields = append(form.Fields, ports.FormField{
							Name:  name,
							Value: attr(n, "value"),
						})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inForm)
		}
	}
	walk(doc, false)

	if form.ActionURL == "" {
		return nil, fmt.Errorf("gateway page contains no form")
	}
	if form.Method == "" {
		form.Method = "POST"
	}
	return form, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
