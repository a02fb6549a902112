package kuveyt_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dergipress/payment-service/internal/adapters/kuveyt"
	"github.com/dergipress/payment-service/internal/domain/models"
	"github.com/dergipress/payment-service/internal/domain/ports"
)

func testGateway(t *testing.T, handler http.Handler) (*kuveyt.Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &kuveyt.Config{
		Gateway3D:       server.URL + "/sanalposservice/Home/ThreeDModelPayGate",
		PaymentAPI:      server.URL + "/sanalposservice/Home",
		QueryAPI:        server.URL + "/VirtualPosService.svc",
		OkCallbackURL:   "https://dergipress.com/api/v1/payments/callback",
		FailCallbackURL: "https://dergipress.com/api/v1/payments/callback",
		Timeout:         5 * time.Second,
	}
	gw, err := kuveyt.NewGateway(cfg, testAccount(), server.Client(), zap.NewNop())
	require.NoError(t, err)
	return gw, server
}

func succeededOrder() *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:              "b5f2a0f4-0c3a-4d5e-8f61-2d9a7b1c0e44",
		MerchantOrderID: "2026083112000012345",
		Amount:          12990,
		Currency:        "TRY",
		Status:          models.StatusSucceeded,
		RemoteOrderID:   "660277",
		TransactionID:   "483022",
		AuthCode:        "P54871",
		RRN:             "026511483022",
		BatchNumber:     "1545",
	}
}

func TestNewGateway_RejectsIncompleteAccount(t *testing.T) {
	account := testAccount()
	account.Password = ""

	_, err := kuveyt.NewGateway(kuveyt.DefaultConfig("test"), account, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant account")
}

func TestDefaultConfig(t *testing.T) {
	test := kuveyt.DefaultConfig("test")
	assert.Contains(t, test.Gateway3D, "boatest.kuveytturk.com.tr")
	assert.Contains(t, test.QueryAPI, "VirtualPosService.svc")

	prod := kuveyt.DefaultConfig("production")
	assert.Contains(t, prod.Gateway3D, "https://boa.kuveytturk.com.tr")
	assert.NotContains(t, prod.Gateway3D, "boatest")
}

func TestGateway_Enroll(t *testing.T) {
	var gotPath string
	var gotBody []byte
	page := `<html><body onload="document.forms[0].submit()">` +
		`<form action="https://acs.example.com/challenge" method="POST">` +
		`<input type="hidden" name="PaReq" value="eJxVUtt...">` +
		`<input type="hidden" name="TermUrl" value="https://dergipress.com/api/v1/payments/callback?payment_id=abc">` +
		`<input type="hidden" name="MD" value="a25cc5b61de7176a966071bcb6a94b72">` +
		`</form></body></html>`

	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, page)
	}))

	form, err := gw.Enroll(context.Background(), enrollmentRequest())
	require.NoError(t, err)

	assert.Equal(t, "/sanalposservice/Home/ThreeDModelPayGate", gotPath)
	body := string(gotBody)
	assert.Contains(t, body, "<KuveytTurkVPosMessage")
	assert.Contains(t, body, "<CardNumber>5400360000001234</CardNumber>")
	assert.Contains(t, body, "<MerchantOrderId>2026083112000012345</MerchantOrderId>")
	assert.Contains(t, body, "payment_id=abc")

	assert.Equal(t, "https://acs.example.com/challenge", form.ActionURL)
	assert.Equal(t, "POST", form.Method)
	assert.Equal(t, page, form.RawHTML)
	require.Len(t, form.Fields, 3)
	assert.Equal(t, "PaReq", form.Fields[0].Name)
	assert.Equal(t, "MD", form.Fields[2].Name)
}

func TestGateway_Enroll_NoFormInResponse(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>GT130008: Aykırı istek tespit edildi</body></html>`)
	}))

	_, err := gw.Enroll(context.Background(), enrollmentRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrollment response")
}

func TestGateway_Enroll_BankDown(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := gw.Enroll(context.Background(), enrollmentRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestGateway_DecodeCallback(t *testing.T) {
	payload := `<VPosTransactionResponseContract>` +
		`<VPosMessage>` +
		`<Amount>12990</Amount>` +
		`<CurrencyCode>0949</CurrencyCode>` +
		`<InstallmentCount>0</InstallmentCount>` +
		`<MerchantOrderId>2026083112000012345</MerchantOrderId>` +
		`<TransactionSecurity>3</TransactionSecurity>` +
		`</VPosMessage>` +
		`<ResponseCode>00</ResponseCode>` +
		`<ResponseMessage>Kart doğrulandı</ResponseMessage>` +
		`<MerchantOrderId>2026083112000012345</MerchantOrderId>` +
		`<MD>a25cc5b61de7176a966071bcb6a94b72</MD>` +
		`</VPosTransactionResponseContract>`

	gw, _ := testGateway(t, http.NotFoundHandler())

	cb, err := gw.DecodeCallback(url.QueryEscape(payload))
	require.NoError(t, err)

	assert.Equal(t, "00", cb.ResponseCode)
	assert.Equal(t, "2026083112000012345", cb.MerchantOrderID)
	assert.Equal(t, "a25cc5b61de7176a966071bcb6a94b72", cb.MD)
	assert.Equal(t, int64(12990), cb.Amount)
	assert.Equal(t, "0949", cb.CurrencyCode)
	assert.Equal(t, "3", cb.TransactionSecurity)
	assert.Equal(t, payload, cb.Raw)
}

func TestGateway_DecodeCallback_PlainXML(t *testing.T) {
	gw, _ := testGateway(t, http.NotFoundHandler())

	cb, err := gw.DecodeCallback(`<VPosTransactionResponseContract><ResponseCode>05</ResponseCode></VPosTransactionResponseContract>`)
	require.NoError(t, err)
	assert.Equal(t, "05", cb.ResponseCode)
}

func TestGateway_DecodeCallback_Garbage(t *testing.T) {
	gw, _ := testGateway(t, http.NotFoundHandler())

	_, err := gw.DecodeCallback("definitely-not-xml")
	require.Error(t, err)
}

func TestGateway_Provision(t *testing.T) {
	var gotPath string
	var gotBody []byte
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, `<VPosTransactionResponseContract>`+
			`<VPosMessage><CardNumber>540036******1234</CardNumber><InstallmentCount>0</InstallmentCount></VPosMessage>`+
			`<ResponseCode>00</ResponseCode>`+
			`<ResponseMessage>OTORİZASYON VERİLDİ</ResponseMessage>`+
			`<OrderId>660277</OrderId>`+
			`<ProvisionNumber>P54871</ProvisionNumber>`+
			`<RRN>026511483022</RRN>`+
			`<Stan>483022</Stan>`+
			`<BatchId>1545</BatchId>`+
			`</VPosTransactionResponseContract>`)
	}))

	cb := &ports.CallbackPayload{
		MerchantOrderID:     "2026083112000012345",
		MD:                  "a25cc5b61de7176a966071bcb6a94b72",
		Amount:              12990,
		CurrencyCode:        "0949",
		TransactionSecurity: "3",
	}
	summary, err := gw.Provision(context.Background(), succeededOrder(), cb)
	require.NoError(t, err)

	assert.Equal(t, "/sanalposservice/Home/ThreeDModelProvisionGate", gotPath)
	body := string(gotBody)
	assert.Contains(t, body, "<Key>MD</Key>")
	assert.Contains(t, body, "<Data>a25cc5b61de7176a966071bcb6a94b72</Data>")
	assert.Contains(t, body, "<Amount>12990</Amount>")

	assert.True(t, summary.Approved())
	assert.Equal(t, "P54871", summary.AuthCode)
	assert.Equal(t, "026511483022", summary.RRN)
	assert.Equal(t, "483022", summary.TransactionID)
	assert.Equal(t, "1545", summary.BatchNumber)
	assert.Equal(t, "540036******1234", summary.CardMasked)
}

func TestGateway_Cancel(t *testing.T) {
	var gotAction string
	var gotBody []byte
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, soapResult(`<SaleReversalResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><SaleReversalResult><Value><ResponseCode>00</ResponseCode><ResponseMessage>OK</ResponseMessage><OrderId>660277</OrderId></Value></SaleReversalResult></SaleReversalResponse>`))
	}))

	summary, err := gw.Cancel(context.Background(), succeededOrder())
	require.NoError(t, err)

	assert.Equal(t, "http://boa.net/BOA.Integration.VirtualPos/IVirtualPosService/SaleReversal", gotAction)
	body := string(gotBody)
	assert.Contains(t, body, "<TransactionType>SaleReversal</TransactionType>")
	assert.Contains(t, body, "<OrderId>660277</OrderId>")
	assert.Contains(t, body, "<Stan>483022</Stan>")
	assert.Contains(t, body, "<ProvisionNumber>P54871</ProvisionNumber>")
	assert.Contains(t, body, "<RRN>026511483022</RRN>")
	assert.Contains(t, body, "<BatchId>1545</BatchId>")

	assert.True(t, summary.Approved())
	assert.Equal(t, "660277", summary.RemoteOrderID)
}

func TestGateway_Refund_PartialSelectsPartialDrawback(t *testing.T) {
	var gotAction string
	var gotBody []byte
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, soapResult(`<PartialDrawbackResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><PartialDrawbackResult><Value><ResponseCode>00</ResponseCode></Value></PartialDrawbackResult></PartialDrawbackResponse>`))
	}))

	summary, err := gw.Refund(context.Background(), succeededOrder(), 5000, true)
	require.NoError(t, err)

	assert.Equal(t, "http://boa.net/BOA.Integration.VirtualPos/IVirtualPosService/PartialDrawback", gotAction)
	assert.Contains(t, string(gotBody), "<Amount>5000</Amount>")
	assert.True(t, summary.Approved())
}

func TestGateway_Refund_Full(t *testing.T) {
	var gotAction string
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		io.WriteString(w, soapResult(`<DrawBackResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><DrawBackResult><Value><ResponseCode>00</ResponseCode></Value></DrawBackResult></DrawBackResponse>`))
	}))

	summary, err := gw.Refund(context.Background(), succeededOrder(), 12990, false)
	require.NoError(t, err)
	assert.Equal(t, "http://boa.net/BOA.Integration.VirtualPos/IVirtualPosService/DrawBack", gotAction)
	assert.True(t, summary.Approved())
}

func TestGateway_Refund_RejectedByBank(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResult(`<DrawBackResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><DrawBackResult><Value><ResponseCode>EmptyMFUser</ResponseCode><ResponseMessage>İşlem yapılamadı</ResponseMessage></Value></DrawBackResult></DrawBackResponse>`))
	}))

	summary, err := gw.Refund(context.Background(), succeededOrder(), 12990, false)
	require.NoError(t, err)
	assert.False(t, summary.Approved())
	assert.Equal(t, "İşlem yapılamadı", summary.ResponseMessage)
}

func TestGateway_Refund_TransportFailureStillReturnsSummary(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "down for maintenance")
	}))

	summary, err := gw.Refund(context.Background(), succeededOrder(), 12990, false)
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Approved())
	assert.Equal(t, "down for maintenance", summary.Raw)
	assert.Contains(t, summary.ResponseMessage, "unexpected status 503")
}

func TestGateway_Status(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResult(`<GetMerchantOrderDetailResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><GetMerchantOrderDetailResult><Value><OrderContract><OrderId>660277</OrderId><MerchantOrderId>2026083112000012345</MerchantOrderId><LastOrderStatus>4</LastOrderStatus><ResponseCode>00</ResponseCode><ResponseMessage>OK</ResponseMessage></OrderContract></Value></GetMerchantOrderDetailResult></GetMerchantOrderDetailResponse>`))
	}))

	res, err := gw.Status(context.Background(), succeededOrder())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, res.MappedStatus)
	assert.Equal(t, "660277", res.RemoteOrderID)
}

func TestGateway_Status_MissingOrderDetail(t *testing.T) {
	gw, _ := testGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResult(`<GetMerchantOrderDetailResponse xmlns="http://boa.net/BOA.Integration.VirtualPos"><GetMerchantOrderDetailResult><Value></Value></GetMerchantOrderDetailResult></GetMerchantOrderDetailResponse>`))
	}))

	_, err := gw.Status(context.Background(), succeededOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order detail missing")
}
