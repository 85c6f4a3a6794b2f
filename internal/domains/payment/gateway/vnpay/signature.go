package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/model"
)

const (
	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// amountScale: VNPay sends amounts multiplied by 100.
var amountScale = decimal.NewFromInt(100)

// canonicalize builds the string VNPay signs: keys sorted ascending, hash
// fields and empty values dropped, each value form-encoded the way PHP's
// urlencode does it (spaces become '+').
func canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == paramSecureHash || k == paramSecureHashType || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func hmacSHA512(secret, data string) []byte {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write([]byte(data))
	return h.Sum(nil)
}

// Sign returns the uppercase hex HMAC-SHA512 of the canonical form of params.
func Sign(secret string, params map[string]string) string {
	return strings.ToUpper(hex.EncodeToString(hmacSHA512(secret, canonicalize(params))))
}

// signRaw signs an already assembled payload (merchant API checksums).
func signRaw(secret, data string) string {
	return hex.EncodeToString(hmacSHA512(secret, data))
}

// VerifyCallback checks the signature on callback params and parses the
// fields the settlement flow needs. It never touches the network.
func VerifyCallback(secret string, params map[string]string) (*gateway.CallbackData, error) {
	for _, key := range []string{"vnp_TxnRef", "vnp_Amount", "vnp_ResponseCode", paramSecureHash} {
		if strings.TrimSpace(params[key]) == "" {
			return nil, model.ErrSignatureInvalid("missing " + key)
		}
	}

	got, err := hex.DecodeString(params[paramSecureHash])
	if err != nil {
		return nil, model.ErrSignatureInvalid("malformed secure hash")
	}
	if !hmac.Equal(got, hmacSHA512(secret, canonicalize(params))) {
		return nil, model.ErrSignatureInvalid("signature mismatch")
	}

	raw, err := decimal.NewFromString(params["vnp_Amount"])
	if err != nil || !raw.IsPositive() {
		return nil, model.ErrSignatureInvalid("malformed amount")
	}

	return &gateway.CallbackData{
		TxnRef:               params["vnp_TxnRef"],
		Amount:               raw.Div(amountScale),
		ResponseCode:         params["vnp_ResponseCode"],
		TransactionStatus:    params["vnp_TransactionStatus"],
		GatewayTransactionNo: params["vnp_TransactionNo"],
		BankCode:             params["vnp_BankCode"],
		PayDate:              params["vnp_PayDate"],
		Raw:                  params,
	}, nil
}

// ValuesToMap flattens query values, keeping the first value per key.
func ValuesToMap(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
