package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/payment/gateway/mock"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/apperr"
)

// paidOrder places an order for qty books and settles its payment.
func (f *fixture) paidOrder(qty int) (*orderModel.Order, *model.Payment) {
	f.t.Helper()
	userID := uuid.New()
	order := f.placeOrder(userID, qty)
	p := f.pay(userID, order)
	_, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook, mock.Callback(p.TxnRef, p.Amount, "00"), "")
	require.NoError(f.t, err)
	return order, p
}

func TestRefund_FullRefundOfUnshippedOrder(t *testing.T) {
	f := newFixture(t)
	order, p := f.paidOrder(2)
	adminID := uuid.New()
	require.Equal(t, 8, f.store.Stock(f.book.ID))

	res, err := f.svc.Refund(context.Background(), model.RefundRequest{
		PaymentCode: p.PaymentCode,
		Reason:      "customer request",
		AdminID:     adminID,
	}, "10.0.0.9")
	require.NoError(t, err)

	assert.True(t, res.FullRefund)
	assert.True(t, res.RefundedAmount.Equal(p.Amount))
	assert.Equal(t, "RF1", res.GatewayRefundNo)

	stored := f.payment(p.ID)
	assert.Equal(t, model.StatusRefunded, stored.Status)
	assert.True(t, stored.RefundedAmount.Equal(p.Amount))
	require.NotNil(t, stored.RefundedAt)

	o := f.order(order.ID)
	assert.Equal(t, orderModel.StatusRefunded, o.Status)
	assert.Equal(t, orderModel.PaymentStatusRefunded, o.PaymentStatus)
	assert.Equal(t, 10, f.store.Stock(f.book.ID))

	txns := f.store.Transactions(p.ID)
	last := txns[len(txns)-1]
	assert.Equal(t, model.TxnTypeRefund, last.Type)
	assert.Equal(t, "customer request", last.Note)

	require.Len(t, f.gw.Refunds, 1)
	assert.True(t, f.gw.Refunds[0].Full)
	assert.Equal(t, adminID.String(), f.gw.Refunds[0].CreatedBy)

	assert.Len(t, f.store.Events(model.EventPaymentRefunded), 1)
}

func TestRefund_PartialRefundKeepsOrderPaid(t *testing.T) {
	f := newFixture(t)
	order, p := f.paidOrder(2)
	amount := decimal.NewFromInt(50000)

	res, err := f.svc.Refund(context.Background(), model.RefundRequest{
		PaymentCode: p.PaymentCode,
		Amount:      &amount,
		Reason:      "damaged cover",
		AdminID:     uuid.New(),
	}, "")
	require.NoError(t, err)

	assert.False(t, res.FullRefund)
	assert.Equal(t, model.StatusRefunded, f.payment(p.ID).Status)

	o := f.order(order.ID)
	assert.Equal(t, orderModel.StatusPaid, o.Status)
	assert.Equal(t, orderModel.PaymentStatusPartiallyRefunded, o.PaymentStatus)
	assert.Equal(t, 8, f.store.Stock(f.book.ID), "partial refunds do not restock")
	assert.False(t, f.gw.Refunds[0].Full)
}

func TestRefund_GatewayFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	order, p := f.paidOrder(1)
	f.gw.RefundErr = errors.New("connection reset")
	txnsBefore := len(f.store.Transactions(p.ID))

	_, err := f.svc.Refund(context.Background(), model.RefundRequest{
		PaymentCode: p.PaymentCode,
		Reason:      "customer request",
		AdminID:     uuid.New(),
	}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGatewayUnavailable))
	assert.Equal(t, model.StatusCompleted, f.payment(p.ID).Status)
	assert.Equal(t, orderModel.StatusPaid, f.order(order.ID).Status)
	assert.Len(t, f.store.Transactions(p.ID), txnsBefore)
	assert.Empty(t, f.store.Events(model.EventPaymentRefunded))
}

func TestRefund_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, paid := f.paidOrder(1)

	userID := uuid.New()
	pending := f.pay(userID, f.placeOrder(userID, 1))

	tooMuch := paid.Amount.Add(decimal.NewFromInt(1))
	negative := decimal.NewFromInt(-5)

	tests := []struct {
		name string
		req  model.RefundRequest
		kind error
	}{
		{"pending payment", model.RefundRequest{PaymentCode: pending.PaymentCode, Reason: "oops"}, apperr.ErrInvalidTransition},
		{"more than paid", model.RefundRequest{PaymentCode: paid.PaymentCode, Amount: &tooMuch, Reason: "oops"}, apperr.ErrValidation},
		{"negative amount", model.RefundRequest{PaymentCode: paid.PaymentCode, Amount: &negative, Reason: "oops"}, apperr.ErrValidation},
		{"missing reason", model.RefundRequest{PaymentCode: paid.PaymentCode}, apperr.ErrValidation},
		{"unknown payment", model.RefundRequest{PaymentCode: "PAY-NOPE", Reason: "oops"}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Refund(ctx, tt.req, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
	assert.Empty(t, f.gw.Refunds)
}

func TestRefund_ShippedOrderCannotBeFullyRefunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, p := f.paidOrder(1)

	tx, err := f.store.BeginTx(ctx)
	require.NoError(t, err)
	o, err := f.store.Orders().GetByIDForUpdateWithTx(ctx, tx, order.ID)
	require.NoError(t, err)
	require.NoError(t, o.Advance(orderModel.StatusProcessing, nil, f.now))
	require.NoError(t, o.Advance(orderModel.StatusShipped, nil, f.now))
	require.NoError(t, f.store.Orders().UpdateWithTx(ctx, tx, o))
	require.NoError(t, f.store.CommitTx(ctx, tx))

	_, err = f.svc.Refund(ctx, model.RefundRequest{PaymentCode: p.PaymentCode, Reason: "lost parcel", AdminID: uuid.New()}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Empty(t, f.gw.Refunds, "gateway must not be called")
	assert.Equal(t, model.StatusCompleted, f.payment(p.ID).Status)
}

func TestRefund_SecondRefundIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, p := f.paidOrder(1)
	req := model.RefundRequest{PaymentCode: p.PaymentCode, Reason: "customer request", AdminID: uuid.New()}

	_, err := f.svc.Refund(ctx, req, "")
	require.NoError(t, err)
	_, err = f.svc.Refund(ctx, req, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Len(t, f.gw.Refunds, 1)
}

// =====================================================
// STATUS CHECK
// =====================================================

func TestCheckStatus_SettlesPendingPaymentFromGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)
	f.gw.QueryStatuses[p.TxnRef] = "00"

	res, err := f.svc.CheckStatus(ctx, p.PaymentCode, "")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, model.StatusCompleted, res.Payment.Status)
	assert.Equal(t, orderModel.StatusPaid, f.order(order.ID).Status)

	txns, err := f.svc.ListTransactions(ctx, p.PaymentCode)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnTypeStatusCheck, txns[0].Type)
	assert.Equal(t, model.TxnStatusSuccess, txns[0].Status)
}

func TestCheckStatus_ProcessingLeavesPaymentAlone(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	res, err := f.svc.CheckStatus(context.Background(), p.PaymentCode, "")
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Equal(t, "01", res.GatewayStatus)
	assert.Equal(t, model.StatusPending, f.payment(p.ID).Status)

	txns := f.store.Transactions(p.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnStatusPending, txns[0].Status)
}

func TestCheckStatus_GatewayDown(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)
	f.gw.QueryErr = errors.New("timeout")

	_, err := f.svc.CheckStatus(context.Background(), p.PaymentCode, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrGatewayUnavailable))
	assert.Empty(t, f.store.Transactions(p.ID))
}

func TestRefund_PartialRefundClosesThePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, p := f.paidOrder(2)
	part := decimal.NewFromInt(50000)

	_, err := f.svc.Refund(ctx, model.RefundRequest{PaymentCode: p.PaymentCode, Amount: &part, Reason: "damaged cover", AdminID: uuid.New()}, "")
	require.NoError(t, err)

	rest := p.Amount.Sub(part)
	_, err = f.svc.Refund(ctx, model.RefundRequest{PaymentCode: p.PaymentCode, Amount: &rest, Reason: "remainder", AdminID: uuid.New()}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Len(t, f.gw.Refunds, 1)
	assert.Equal(t, orderModel.PaymentStatusPartiallyRefunded, f.order(order.ID).PaymentStatus)
	assert.True(t, f.payment(p.ID).RefundedAmount.Equal(part))
}
