package service

import (
	"context"
	"errors"
	"sync"
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

func TestHandleCallback_SuccessSettlesPaymentAndOrder(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 2)
	p := f.pay(userID, order)

	res, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook, mock.Callback(p.TxnRef, p.Amount, "00"), "113.160.92.202")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.False(t, res.AlreadyProcessed)

	stored := f.payment(p.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	require.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.GatewayTransactionNo)
	assert.Equal(t, "MOCK"+p.TxnRef, *stored.GatewayTransactionNo)

	o := f.order(order.ID)
	assert.Equal(t, orderModel.StatusPaid, o.Status)
	assert.Equal(t, orderModel.PaymentStatusPaid, o.PaymentStatus)

	txns := f.store.Transactions(p.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnTypeWebhook, txns[0].Type)
	assert.Equal(t, model.TxnStatusSuccess, txns[0].Status)

	assert.Len(t, f.store.Events(model.EventPaymentSucceeded), 1)

	logs := f.store.Webhooks()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsValid)
	assert.Nil(t, logs[0].ProcessingError)
	assert.Equal(t, "113.160.92.202", logs[0].ClientIP)
}

func TestHandleCallback_DuplicateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)
	params := mock.Callback(p.TxnRef, p.Amount, "00")

	first, err := f.svc.HandleCallback(ctx, model.ChannelWebhook, params, "")
	require.NoError(t, err)
	second, err := f.svc.HandleCallback(ctx, model.ChannelWebhook, params, "")
	require.NoError(t, err)

	assert.False(t, first.AlreadyProcessed)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, model.StatusCompleted, second.Status)

	txns := f.store.Transactions(p.ID)
	require.Len(t, txns, 2)
	assert.Equal(t, model.TxnStatusSuccess, txns[0].Status)
	assert.Equal(t, model.TxnStatusDuplicate, txns[1].Status)

	assert.Len(t, f.store.Events(model.EventPaymentSucceeded), 1)
	assert.Len(t, f.store.History(order.ID), 2, "placed + paid")
}

func TestHandleCallback_ReturnThenIPN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)
	params := mock.Callback(p.TxnRef, p.Amount, "00")

	_, err := f.svc.HandleCallback(ctx, model.ChannelReturn, params, "")
	require.NoError(t, err)
	res, err := f.svc.HandleCallback(ctx, model.ChannelWebhook, params, "")
	require.NoError(t, err)

	assert.True(t, res.AlreadyProcessed)
	txns := f.store.Transactions(p.ID)
	require.Len(t, txns, 2)
	assert.Equal(t, model.TxnTypePayment, txns[0].Type)
	assert.Equal(t, model.TxnTypeWebhook, txns[1].Type)
}

func TestHandleCallback_ConcurrentDeliveriesSettleOnce(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)
	params := mock.Callback(p.TxnRef, p.Amount, "00")

	const deliveries = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook, params, "")
			if !assert.NoError(t, err) {
				return
			}
			if !res.AlreadyProcessed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Len(t, f.store.Transactions(p.ID), deliveries)
	assert.Len(t, f.store.Events(model.EventPaymentSucceeded), 1)
	assert.Equal(t, orderModel.StatusPaid, f.order(order.ID).Status)
}

func TestHandleCallback_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	params := mock.Callback(p.TxnRef, p.Amount, "00")
	params["vnp_Amount"] = "100" // 1 VND

	_, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook, params, "6.6.6.6")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSignatureInvalid))
	assert.Equal(t, model.StatusPending, f.payment(p.ID).Status)
	assert.Empty(t, f.store.Transactions(p.ID))

	logs := f.store.Webhooks()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].IsValid)
	assert.Equal(t, p.TxnRef, logs[0].TxnRef)
	require.NotNil(t, logs[0].ProcessingError)
}

func TestHandleCallback_UnknownTxnRef(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook,
		mock.Callback("NOSUCHREF", decimal.NewFromInt(1000), "00"), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnknownTransaction))

	logs := f.store.Webhooks()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].IsValid)
	require.NotNil(t, logs[0].ProcessingError)
}

func TestHandleCallback_AmountMismatchIsRejectedAndAudited(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	_, err := f.svc.HandleCallback(context.Background(), model.ChannelWebhook,
		mock.Callback(p.TxnRef, p.Amount.Sub(decimal.NewFromInt(1000)), "00"), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, model.ErrCodeAmountMismatch, payCode(t, err))

	assert.Equal(t, model.StatusPending, f.payment(p.ID).Status)
	assert.Equal(t, orderModel.StatusPendingPayment, f.order(order.ID).Status)

	txns := f.store.Transactions(p.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnStatusRejected, txns[0].Status)
}

func TestHandleCallback_FailureKeepsOrderOpenForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	res, err := f.svc.HandleCallback(ctx, model.ChannelReturn, mock.Callback(p.TxnRef, p.Amount, "24"), "")
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, "Transaction cancelled by user", res.Message)

	o := f.order(order.ID)
	assert.Equal(t, orderModel.StatusPendingPayment, o.Status)
	assert.Equal(t, orderModel.PaymentStatusFailed, o.PaymentStatus)
	assert.Len(t, f.store.Events(model.EventPaymentFailed), 1)
	assert.Equal(t, 9, f.store.Stock(f.book.ID), "stock stays reserved for the retry")

	retry := f.pay(userID, order)
	assert.NotEqual(t, p.ID, retry.ID)

	_, err = f.svc.HandleCallback(ctx, model.ChannelWebhook, mock.Callback(retry.TxnRef, retry.Amount, "00"), "")
	require.NoError(t, err)
	o = f.order(order.ID)
	assert.Equal(t, orderModel.StatusPaid, o.Status)
	assert.Equal(t, orderModel.PaymentStatusPaid, o.PaymentStatus)
}
