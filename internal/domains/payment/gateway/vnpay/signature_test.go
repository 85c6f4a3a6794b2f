package vnpay

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/shared/apperr"
)

const testSecret = "SECRETKEYFORTESTS"

func signedParams(overrides map[string]string) map[string]string {
	params := map[string]string{
		"vnp_TxnRef":            "PAY-20260101-0001",
		"vnp_Amount":            "16500000",
		"vnp_ResponseCode":      "00",
		"vnp_TransactionStatus": "00",
		"vnp_TransactionNo":     "14123456",
		"vnp_BankCode":          "NCB",
		"vnp_OrderInfo":         "Thanh toan don hang ORD 1",
		"vnp_PayDate":           "20260101103000",
		"vnp_TmnCode":           "TESTTMN",
	}
	for k, v := range overrides {
		params[k] = v
	}
	params[paramSecureHash] = Sign(testSecret, params)
	return params
}

func TestCanonicalize_SortsEncodesAndSkips(t *testing.T) {
	got := canonicalize(map[string]string{
		"vnp_b":             "x y",
		"vnp_a":             "1&2",
		"vnp_empty":         "",
		paramSecureHash:     "ABC",
		paramSecureHashType: "HmacSHA512",
	})
	assert.Equal(t, "vnp_a=1%262&vnp_b=x+y", got)
}

func TestVerifyCallback_Valid(t *testing.T) {
	data, err := VerifyCallback(testSecret, signedParams(nil))
	require.NoError(t, err)

	assert.Equal(t, "PAY-20260101-0001", data.TxnRef)
	assert.True(t, data.Amount.Equal(decimal.NewFromInt(165000)), "amount %s", data.Amount)
	assert.Equal(t, "14123456", data.GatewayTransactionNo)
	assert.True(t, data.IsSuccess())
}

func TestVerifyCallback_LowercaseHashAccepted(t *testing.T) {
	params := signedParams(nil)
	params[paramSecureHash] = strings.ToLower(params[paramSecureHash])

	_, err := VerifyCallback(testSecret, params)
	assert.NoError(t, err)
}

func TestVerifyCallback_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]string)
	}{
		{"tampered amount", func(p map[string]string) { p["vnp_Amount"] = "100" }},
		{"tampered response code", func(p map[string]string) { p["vnp_ResponseCode"] = "24" }},
		{"missing hash", func(p map[string]string) { delete(p, paramSecureHash) }},
		{"missing txn ref", func(p map[string]string) { delete(p, "vnp_TxnRef") }},
		{"non hex hash", func(p map[string]string) { p[paramSecureHash] = "not-hex" }},
		{"wrong secret", func(p map[string]string) {
			p[paramSecureHash] = Sign("other-secret", p)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := signedParams(nil)
			tt.mutate(params)

			_, err := VerifyCallback(testSecret, params)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrSignatureInvalid))
		})
	}
}

func TestVerifyCallback_MalformedAmountIsSignatureInvalid(t *testing.T) {
	for _, amount := range []string{"abc", "0", "-500"} {
		_, err := VerifyCallback(testSecret, signedParams(map[string]string{"vnp_Amount": amount}))
		assert.ErrorIs(t, err, apperr.ErrSignatureInvalid, amount)
	}
}

func TestVerifyCallback_FailureCodeStillVerifies(t *testing.T) {
	data, err := VerifyCallback(testSecret, signedParams(map[string]string{
		"vnp_ResponseCode":      "24",
		"vnp_TransactionStatus": "02",
	}))
	require.NoError(t, err)
	assert.False(t, data.IsSuccess())
}

func TestBuildRedirect_RoundTrip(t *testing.T) {
	client, err := NewClient(Config{
		TmnCode:    "TESTTMN",
		HashSecret: testSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/payments/vnpay/return",
	})
	require.NoError(t, err)

	created := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	redirect, err := client.BuildRedirect(context.Background(), gateway.RedirectRequest{
		TxnRef:    "PAY-1",
		Amount:    decimal.NewFromInt(165000),
		OrderInfo: "Thanh toan don hang ORD 1",
		ClientIP:  "10.0.0.1",
		CreatedAt: created,
		ExpiresAt: created.Add(15 * time.Minute),
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	params := ValuesToMap(u.Query())

	assert.Equal(t, "16500000", params["vnp_Amount"])
	assert.Equal(t, "20260101100000", params["vnp_CreateDate"], "dates are rendered in GMT+7")
	assert.Equal(t, "20260101101500", params["vnp_ExpireDate"])

	// A redirect signed by us must verify with the same canonical form.
	params["vnp_ResponseCode"] = "00"
	params[paramSecureHash] = Sign(testSecret, params)
	_, err = VerifyCallback(testSecret, params)
	assert.NoError(t, err)
}

func TestBuildRedirect_SignatureCoversQuery(t *testing.T) {
	client, err := NewClient(Config{
		TmnCode:    "TESTTMN",
		HashSecret: testSecret,
		PayURL:     "https://pay.example",
		ReturnURL:  "https://shop.example/return",
	})
	require.NoError(t, err)

	redirect, err := client.BuildRedirect(context.Background(), gateway.RedirectRequest{
		TxnRef: "PAY-2",
		Amount: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	params := ValuesToMap(u.Query())
	hash := params[paramSecureHash]

	assert.Equal(t, Sign(testSecret, params), hash)
}
