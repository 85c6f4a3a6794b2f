package model

import "time"

// =====================================================
// PAYMENT GATEWAYS
// =====================================================
const (
	GatewayVNPay = "vnpay"
	GatewayMock  = "mock"
)

// =====================================================
// DEFAULTS
// =====================================================
const (
	DefaultPaymentTTL         = 15 * time.Minute
	DefaultMaxPaymentAttempts = 3
	DefaultCurrency           = "VND"
)

// =====================================================
// CALLBACK CHANNELS
// =====================================================

// Channel says how a gateway callback reached us.
type Channel string

const (
	// ChannelReturn is the browser redirect back to ReturnURL.
	ChannelReturn Channel = "return"
	// ChannelWebhook is the server-to-server IPN.
	ChannelWebhook Channel = "webhook"
)

// =====================================================
// OUTBOX EVENT TYPES
// =====================================================
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentExpired   = "payment.expired"
	EventPaymentRefunded  = "payment.refunded"
)

// =====================================================
// INTERNAL ERROR CODES
// =====================================================
const (
	ErrCodePaymentNotFound     = "PAY001"
	ErrCodeInvalidSignature    = "PAY002"
	ErrCodeUnknownTransaction  = "PAY003"
	ErrCodeInvalidTransition   = "PAY004"
	ErrCodeGatewayUnavailable  = "PAY005"
	ErrCodeAmountMismatch      = "PAY006"
	ErrCodePendingExists       = "PAY007"
	ErrCodeRetryLimitExceeded  = "PAY008"
	ErrCodeOrderNotPayable     = "PAY009"
	ErrCodeInvalidRefundAmount = "PAY010"
	ErrCodeUnauthorized        = "PAY011"
	ErrCodeInvalidRequest      = "PAY012"
	ErrCodeOrderNotFound       = "PAY013"
)

// =====================================================
// VNPAY RESPONSE CODES
// =====================================================
const VNPayCodeSuccess = "00"

var VNPayResponseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Transaction suspected of fraud",
	"09": "Card not registered for internet banking",
	"10": "Card authentication failed too many times",
	"11": "Payment window expired",
	"12": "Card is locked",
	"13": "Incorrect OTP",
	"24": "Transaction cancelled by user",
	"51": "Insufficient account balance",
	"65": "Daily transaction limit exceeded",
	"75": "Bank is under maintenance",
	"79": "Too many wrong payment passwords",
	"99": "Unknown error",
}

// DescribeResponseCode returns a human message for a VNPay response code.
func DescribeResponseCode(code string) string {
	if msg, ok := VNPayResponseMessages[code]; ok {
		return msg
	}
	return "Unknown response code " + code
}
