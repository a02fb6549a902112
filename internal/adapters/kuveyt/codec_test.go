package kuveyt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dergipress/payment-service/internal/adapters/kuveyt"
)

func testAccount() *kuveyt.MerchantAccount {
	return &kuveyt.MerchantAccount{
		MerchantID: "496",
		CustomerID: "400235",
		Username:   "apiuser",
		Password:   "api-password-1",
	}
}

func TestMerchantAccount_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*kuveyt.MerchantAccount)
		wantErr string
	}{
		{"complete", func(a *kuveyt.MerchantAccount) {}, ""},
		{"missing merchant id", func(a *kuveyt.MerchantAccount) { a.MerchantID = "" }, "merchant id"},
		{"missing customer id", func(a *kuveyt.MerchantAccount) { a.CustomerID = "" }, "customer id"},
		{"missing username", func(a *kuveyt.MerchantAccount) { a.Username = "" }, "username"},
		{"missing password", func(a *kuveyt.MerchantAccount) { a.Password = "" }, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := testAccount()
			tt.mutate(account)
			err := account.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestHashedPassword(t *testing.T) {
	assert.Equal(t, "QsFD4AWdQ/19I2wPwFQYG+SQt4k=", kuveyt.HashedPassword("api-password-1"))

	// Deterministic, and sensitive to the input.
	assert.Equal(t, kuveyt.HashedPassword("x"), kuveyt.HashedPassword("x"))
	assert.NotEqual(t, kuveyt.HashedPassword("x"), kuveyt.HashedPassword("y"))
}

func TestEnrollmentHash(t *testing.T) {
	account := testAccount()
	okURL := "https://example.com/ok?payment_id=abc"
	failURL := "https://example.com/fail?payment_id=abc"

	got := kuveyt.EnrollmentHash(account, "2026083112000012345", "12990", okURL, failURL)
	assert.Equal(t, "DVEHPrEvwJITDKwNF9JDfUBR0Wo=", got)

	// Any field entering the hash must change the digest.
	assert.NotEqual(t, got, kuveyt.EnrollmentHash(account, "2026083112000012346", "12990", okURL, failURL))
	assert.NotEqual(t, got, kuveyt.EnrollmentHash(account, "2026083112000012345", "12991", okURL, failURL))
	assert.NotEqual(t, got, kuveyt.EnrollmentHash(account, "2026083112000012345", "12990", okURL+"x", failURL))
}

func TestActionHash(t *testing.T) {
	account := testAccount()

	got := kuveyt.ActionHash(account, "2026083112000012345", "12990")
	assert.Equal(t, "kxbkOoovOnlNn9X8sAFB/gKJHqU=", got)

	// The action hash excludes the callback URLs, so it differs from the
	// enrollment hash over the same order.
	assert.NotEqual(t, got, kuveyt.EnrollmentHash(account, "2026083112000012345", "12990", "https://a", "https://b"))
}

func TestEncodeRequest_EmitsAllTags(t *testing.T) {
	msg := &kuveyt.VPosMessage{
		APIVersion:      "TDV2.0.0",
		MerchantId:      "496",
		CustomerId:      "400235",
		UserName:        "apiuser",
		TransactionType: "Sale",
		Amount:          "12990",
	}

	body, err := kuveyt.EncodeRequest(msg)
	require.NoError(t, err)

	wire := string(body)
	assert.True(t, strings.HasPrefix(wire, "<KuveytTurkVPosMessage>"))

	// The bank rejects messages with missing tags, so empty fields must
	// still be present on the wire.
	for _, tag := range []string{
		"<OkUrl>", "<FailUrl>", "<HashData>", "<CardNumber>",
		"<CardExpireDateYear>", "<CardExpireDateMonth>", "<CardCVV2>",
		"<CardHolderName>", "<CardType>", "<BatchID>", "<InstallmentCount>",
		"<DisplayAmount>", "<CurrencyCode>", "<MerchantOrderId>",
		"<TransactionSecurity>",
	} {
		// Go's encoder collapses empty elements to <Tag></Tag>.
		assert.Contains(t, wire, tag, "tag %s must be emitted even when empty", tag)
	}

	// Optional blocks stay off the wire when unset.
	assert.NotContains(t, wire, "<DeviceData>")
	assert.NotContains(t, wire, "<CardHolderData>")
	assert.NotContains(t, wire, "<KuveytTurkVPosAdditionalData>")
}

func TestEncodeRequest_OptionalBlocks(t *testing.T) {
	msg := &kuveyt.VPosMessage{
		DeviceData: &kuveyt.DeviceData{DeviceChannel: "02", ClientIP: "10.1.2.3"},
		CardHolderData: &kuveyt.CardHolderData{
			BillAddrCity: "İstanbul",
			Email:        "okur@example.com",
			MobilePhone:  &kuveyt.MobilePhone{CountryCode: "90", Subscriber: "5321234567"},
		},
		AdditionalData: &kuveyt.AdditionalData{Key: "MD", Data: "session-token"},
	}

	body, err := kuveyt.EncodeRequest(msg)
	require.NoError(t, err)

	wire := string(body)
	assert.Contains(t, wire, "<DeviceData><DeviceChannel>02</DeviceChannel><ClientIP>10.1.2.3</ClientIP></DeviceData>")
	assert.Contains(t, wire, "<EmailAddress>okur@example.com</EmailAddress>")
	assert.Contains(t, wire, "<Cc>90</Cc><Subscriber>5321234567</Subscriber>")
	assert.Contains(t, wire, "<KuveytTurkVPosAdditionalData><AdditionalData><Key>MD</Key><Data>session-token</Data></AdditionalData></KuveytTurkVPosAdditionalData>")
}

func TestDecodeResponse_FullContract(t *testing.T) {
	payload := `<VPosTransactionResponseContract>
		<VPosMessage>
			<Amount>12990</Amount>
			<CurrencyCode>0949</CurrencyCode>
			<InstallmentCount>0</InstallmentCount>
			<MerchantOrderId>2026083112000012345</MerchantOrderId>
			<TransactionSecurity>3</TransactionSecurity>
			<CardNumber>540036******1234</CardNumber>
		</VPosMessage>
		<ResponseCode>00</ResponseCode>
		<ResponseMessage>OTORİZASYON VERİLDİ</ResponseMessage>
		<OrderId>660277</OrderId>
		<MerchantOrderId>2026083112000012345</MerchantOrderId>
		<ProvisionNumber>P54871</ProvisionNumber>
		<RRN>026511483022</RRN>
		<Stan>483022</Stan>
		<BatchId>1545</BatchId>
		<MD>a25cc5b61de7176a966071bcb6a94b72</MD>
	</VPosTransactionResponseContract>`

	resp, err := kuveyt.DecodeResponse([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "00", resp.ResponseCode)
	assert.Equal(t, "660277", resp.OrderId)
	assert.Equal(t, "P54871", resp.ProvisionNumber)
	assert.Equal(t, "026511483022", resp.RRN)
	assert.Equal(t, "483022", resp.Stan)
	assert.Equal(t, "1545", resp.BatchId)
	assert.Equal(t, "a25cc5b61de7176a966071bcb6a94b72", resp.MD)
	require.NotNil(t, resp.VPosMessage)
	assert.Equal(t, "12990", resp.VPosMessage.Amount)
	assert.Equal(t, "0949", resp.VPosMessage.CurrencyCode)
	assert.Equal(t, "3", resp.VPosMessage.TransactionSecurity)
}

func TestDecodeResponse_ToleratesMissingEcho(t *testing.T) {
	payload := `<VPosTransactionResponseContract>
		<ResponseCode>51</ResponseCode>
		<ResponseMessage>Limit yetersiz</ResponseMessage>
		<UnknownExtraTag>ignored</UnknownExtraTag>
	</VPosTransactionResponseContract>`

	resp, err := kuveyt.DecodeResponse([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "51", resp.ResponseCode)
	assert.Nil(t, resp.VPosMessage)
}

func TestDecodeResponse_MalformedXML(t *testing.T) {
	_, err := kuveyt.DecodeResponse([]byte("<VPosTransactionResponseContract><ResponseCode>00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode vpos response")
}

func TestExtractGatewayForm(t *testing.T) {
	page := `<!DOCTYPE html>
<html><body onload="document.forms[0].submit()">
<form method="POST" action="https://acs.example.com/3ds/challenge">
	<input type="hidden" name="PaReq" value="eJxVUtt..."/>
	<input type="hidden" name="TermUrl" value="https://boatest.kuveytturk.com.tr/term"/>
	<input type="hidden" name="MD" value="a25cc5b61de7176a966071bcb6a94b72"/>
	<noscript><input type="submit" value="Devam"/></noscript>
</form>
</body></html>`

	form, err := kuveyt.ExtractGatewayForm([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, "https://acs.example.com/3ds/challenge", form.ActionURL)
	assert.Equal(t, "POST", form.Method)
	assert.Equal(t, page, form.RawHTML)

	fields := map[string]string{}
	for _, f := range form.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "eJxVUtt...", fields["PaReq"])
	assert.Equal(t, "a25cc5b61de7176a966071bcb6a94b72", fields["MD"])
	assert.Equal(t, "https://boatest.kuveytturk.com.tr/term", fields["TermUrl"])
}

func TestExtractGatewayForm_NoForm(t *testing.T) {
	_, err := kuveyt.ExtractGatewayForm([]byte("<html><body>Sistem hatası</body></html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no form")
}
