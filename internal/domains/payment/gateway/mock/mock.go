// Package mock is an in-process gateway used by tests and local runs.
// It signs callbacks with the VNPay scheme so the full verify path is
// exercised.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/gateway/vnpay"
	"bookstore-settlement/internal/domains/payment/model"
)

const Secret = "mock-gateway-secret"

type Gateway struct {
	mu sync.Mutex

	RefundErr error
	QueryErr  error
	// QueryStatuses maps txn ref to the transaction status QueryStatus reports.
	QueryStatuses map[string]string

	Redirects []gateway.RedirectRequest
	Refunds   []gateway.RefundRequest
}

func New() *Gateway {
	return &Gateway{QueryStatuses: map[string]string{}}
}

func (g *Gateway) Name() string { return model.GatewayMock }

func (g *Gateway) BuildRedirect(_ context.Context, req gateway.RedirectRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Redirects = append(g.Redirects, req)
	return fmt.Sprintf("https://mock.gateway.local/pay?ref=%s&amount=%s", req.TxnRef, req.Amount.String()), nil
}

func (g *Gateway) VerifyCallback(params map[string]string) (*gateway.CallbackData, error) {
	return vnpay.VerifyCallback(Secret, params)
}

func (g *Gateway) Refund(_ context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return nil, model.ErrGatewayUnavailable("refund", g.RefundErr)
	}
	g.Refunds = append(g.Refunds, req)
	return &gateway.RefundResult{
		RefundNo:     fmt.Sprintf("RF%d", len(g.Refunds)),
		ResponseCode: model.VNPayCodeSuccess,
		Message:      "ok",
		Raw:          map[string]interface{}{"vnp_ResponseCode": model.VNPayCodeSuccess},
	}, nil
}

func (g *Gateway) QueryStatus(_ context.Context, q gateway.StatusQuery) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.QueryErr != nil {
		return nil, model.ErrGatewayUnavailable("querydr", g.QueryErr)
	}
	status, ok := g.QueryStatuses[q.TxnRef]
	if !ok {
		status = "01"
	}
	return &gateway.StatusResult{
		ResponseCode:         model.VNPayCodeSuccess,
		TransactionStatus:    status,
		GatewayTransactionNo: "MOCK-" + q.TxnRef,
		Raw:                  map[string]interface{}{"vnp_TransactionStatus": status},
	}, nil
}

// Callback builds signed callback params for txnRef. amount is in major units.
func Callback(txnRef string, amount decimal.Decimal, responseCode string) map[string]string {
	params := map[string]string{
		"vnp_TxnRef":        txnRef,
		"vnp_Amount":        amount.Mul(decimal.NewFromInt(100)).Round(0).String(),
		"vnp_ResponseCode":  responseCode,
		"vnp_TransactionNo": "MOCK" + txnRef,
		"vnp_BankCode":      "NCB",
		"vnp_PayDate":       time.Now().Format(vnpay.DateFormat),
	}
	if responseCode == model.VNPayCodeSuccess {
		params["vnp_TransactionStatus"] = "00"
	} else {
		params["vnp_TransactionStatus"] = "02"
	}
	params["vnp_SecureHash"] = vnpay.Sign(Secret, params)
	return params
}
