package vnpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/utils"
	"bookstore-settlement/pkg/logger"
)

const (
	commandRefund   = "refund"
	commandQueryDR  = "querydr"
	refundFull      = "02"
	refundPartial   = "03"
	defaultClientIP = "127.0.0.1"
	maxOrderInfo    = 255
)

// Client implements gateway.Gateway for VNPay.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates the VNPay adapter. Outbound calls go through an
// otelhttp-instrumented transport with the configured timeout.
func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}, nil
}

// WithHTTPClient swaps the HTTP client, used by tests against httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Name() string { return model.GatewayVNPay }

// =====================================================
// REDIRECT
// =====================================================

func (c *Client) BuildRedirect(ctx context.Context, req gateway.RedirectRequest) (string, error) {
	if req.TxnRef == "" {
		return "", fmt.Errorf("vnpay: txn ref is required")
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("vnpay: amount must be positive")
	}

	currency := req.Currency
	if currency == "" {
		currency = model.DefaultCurrency
	}
	ip := req.ClientIP
	if ip == "" {
		ip = defaultClientIP
	}
	info := utils.ASCIIText(req.OrderInfo, maxOrderInfo)
	if info == "" {
		info = "Thanh toan don hang " + req.TxnRef
	}

	params := map[string]string{
		"vnp_Version":    c.cfg.Version,
		"vnp_Command":    DefaultCommand,
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Amount":     toGatewayAmount(req.Amount),
		"vnp_CurrCode":   currency,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  info,
		"vnp_OrderType":  c.cfg.OrderType,
		"vnp_Locale":     c.cfg.Locale,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": c.formatDate(req.CreatedAt),
	}
	if !req.ExpiresAt.IsZero() {
		params["vnp_ExpireDate"] = c.formatDate(req.ExpiresAt)
	}

	query := canonicalize(params)
	return c.cfg.PayURL + "?" + query + "&" + paramSecureHash + "=" + Sign(c.cfg.HashSecret, params), nil
}

// VerifyCallback verifies with the configured secret.
func (c *Client) VerifyCallback(params map[string]string) (*gateway.CallbackData, error) {
	return VerifyCallback(c.cfg.HashSecret, params)
}

// =====================================================
// REFUND
// =====================================================

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	transactionType := refundPartial
	if req.Full {
		transactionType = refundFull
	}
	ip := req.ClientIP
	if ip == "" {
		ip = defaultClientIP
	}
	createBy := req.CreatedBy
	if createBy == "" {
		createBy = "system"
	}

	requestID := newRequestID()
	createDate := c.formatDate(c.now())
	txnDate := c.formatDate(req.TransactionDate)
	amount := toGatewayAmount(req.Amount)
	info := utils.ASCIIText("Hoan tien "+req.TxnRef+" "+req.Reason, maxOrderInfo)

	checksum := strings.Join([]string{
		requestID, c.cfg.Version, commandRefund, c.cfg.TmnCode, transactionType,
		req.TxnRef, amount, req.GatewayTransactionNo, txnDate, createBy,
		createDate, ip, info,
	}, "|")

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         c.cfg.Version,
		"vnp_Command":         commandRefund,
		"vnp_TmnCode":         c.cfg.TmnCode,
		"vnp_TransactionType": transactionType,
		"vnp_TxnRef":          req.TxnRef,
		"vnp_Amount":          amount,
		"vnp_OrderInfo":       info,
		"vnp_TransactionNo":   req.GatewayTransactionNo,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateBy":        createBy,
		"vnp_CreateDate":      createDate,
		"vnp_IpAddr":          ip,
		"vnp_SecureHash":      signRaw(c.cfg.HashSecret, checksum),
	}

	resp, err := c.post(ctx, commandRefund, body)
	if err != nil {
		return nil, err
	}

	code := stringField(resp, "vnp_ResponseCode")
	if code != model.VNPayCodeSuccess {
		logger.Warn("vnpay refund rejected", map[string]interface{}{
			"txn_ref":       req.TxnRef,
			"response_code": code,
		})
		return nil, model.ErrGatewayUnavailable(commandRefund,
			fmt.Errorf("vnpay responded %s: %s", code, stringField(resp, "vnp_Message")))
	}

	return &gateway.RefundResult{
		RefundNo:     stringField(resp, "vnp_TransactionNo"),
		ResponseCode: code,
		Message:      stringField(resp, "vnp_Message"),
		Raw:          resp,
	}, nil
}

// =====================================================
// QUERY STATUS
// =====================================================

func (c *Client) QueryStatus(ctx context.Context, q gateway.StatusQuery) (*gateway.StatusResult, error) {
	ip := q.ClientIP
	if ip == "" {
		ip = defaultClientIP
	}
	requestID := newRequestID()
	createDate := c.formatDate(c.now())
	txnDate := c.formatDate(q.TransactionDate)
	info := "Truy van giao dich " + q.TxnRef

	checksum := strings.Join([]string{
		requestID, c.cfg.Version, commandQueryDR, c.cfg.TmnCode, q.TxnRef,
		txnDate, createDate, ip, info,
	}, "|")

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         c.cfg.Version,
		"vnp_Command":         commandQueryDR,
		"vnp_TmnCode":         c.cfg.TmnCode,
		"vnp_TxnRef":          q.TxnRef,
		"vnp_OrderInfo":       info,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateDate":      createDate,
		"vnp_IpAddr":          ip,
		"vnp_SecureHash":      signRaw(c.cfg.HashSecret, checksum),
	}

	resp, err := c.post(ctx, commandQueryDR, body)
	if err != nil {
		return nil, err
	}

	code := stringField(resp, "vnp_ResponseCode")
	if code != model.VNPayCodeSuccess {
		return nil, model.ErrGatewayUnavailable(commandQueryDR,
			fmt.Errorf("vnpay responded %s: %s", code, stringField(resp, "vnp_Message")))
	}

	result := &gateway.StatusResult{
		ResponseCode:         code,
		TransactionStatus:    stringField(resp, "vnp_TransactionStatus"),
		GatewayTransactionNo: stringField(resp, "vnp_TransactionNo"),
		Raw:                  resp,
	}
	if amt, err := decimal.NewFromString(stringField(resp, "vnp_Amount")); err == nil {
		result.Amount = amt.Div(amountScale)
	}
	return result, nil
}

// =====================================================
// HELPERS
// =====================================================

func (c *Client) post(ctx context.Context, op string, body map[string]string) (map[string]interface{}, error) {
	if c.cfg.APIURL == "" {
		return nil, model.ErrGatewayUnavailable(op, fmt.Errorf("vnpay api url not configured"))
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("vnpay: marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TransactionAPIURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("vnpay: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.ErrGatewayUnavailable(op, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, model.ErrGatewayUnavailable(op, err)
	}
	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
		return nil, model.ErrGatewayUnavailable(op, fmt.Errorf("http status %d", res.StatusCode))
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, model.ErrGatewayUnavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

func (c *Client) formatDate(t time.Time) string {
	if t.IsZero() {
		t = c.now()
	}
	return t.In(c.cfg.Location).Format(DateFormat)
}

func toGatewayAmount(amount decimal.Decimal) string {
	return amount.Mul(amountScale).Round(0).String()
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:32]
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ParseQuery is a helper for handlers that receive the raw query string.
func ParseQuery(rawQuery string) (map[string]string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return ValuesToMap(values), nil
}
