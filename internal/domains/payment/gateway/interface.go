package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway is an external payment processor reached over a signed HTTP
// protocol. BuildRedirect and VerifyCallback never touch the network.
type Gateway interface {
	Name() string

	// BuildRedirect returns the signed URL the customer is sent to.
	BuildRedirect(ctx context.Context, req RedirectRequest) (string, error)

	// VerifyCallback checks the signature of return-URL or IPN params and
	// parses them. Any problem yields a SignatureInvalid PaymentError.
	VerifyCallback(params map[string]string) (*CallbackData, error)

	// Refund and QueryStatus call the gateway API with a bounded timeout.
	// Transport failures and non-success answers are GatewayUnavailable.
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	QueryStatus(ctx context.Context, req StatusQuery) (*StatusResult, error)
}

// =====================================================
// REQUEST / RESPONSE TYPES
// =====================================================

type RedirectRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	Currency  string
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CallbackData is a verified callback.
type CallbackData struct {
	TxnRef               string
	Amount               decimal.Decimal
	ResponseCode         string
	TransactionStatus    string
	GatewayTransactionNo string
	BankCode             string
	PayDate              string
	Raw                  map[string]string
}

// IsSuccess is true only when both the response code and, if present, the
// transaction status say the money was captured.
func (c *CallbackData) IsSuccess() bool {
	return c.ResponseCode == "00" && (c.TransactionStatus == "" || c.TransactionStatus == "00")
}

type RefundRequest struct {
	TxnRef               string
	GatewayTransactionNo string
	Amount               decimal.Decimal
	Full                 bool
	// TransactionDate is when the original payment was created.
	TransactionDate time.Time
	CreatedBy       string
	Reason          string
	ClientIP        string
}

type RefundResult struct {
	RefundNo     string
	ResponseCode string
	Message      string
	Raw          map[string]interface{}
}

type StatusQuery struct {
	TxnRef          string
	TransactionDate time.Time
	ClientIP        string
}

type StatusResult struct {
	ResponseCode         string
	TransactionStatus    string
	GatewayTransactionNo string
	Amount               decimal.Decimal
	Raw                  map[string]interface{}
}

// IsPaid reports whether the gateway says the transaction was captured.
func (s *StatusResult) IsPaid() bool {
	return s.ResponseCode == "00" && s.TransactionStatus == "00"
}

// IsFailed reports a definitive failure. Anything else (processing, not
// found yet) leaves the payment alone.
func (s *StatusResult) IsFailed() bool {
	if s.ResponseCode != "00" {
		return false
	}
	switch s.TransactionStatus {
	case "00", "01", "":
		return false
	}
	return true
}
