package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invModel "bookstore-settlement/internal/domains/inventory/model"
	inventory "bookstore-settlement/internal/domains/inventory/service"
	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/payment/gateway/mock"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/internal/testutil/memstore"
	"bookstore-settlement/pkg/cache"
	"bookstore-settlement/pkg/database"
)

type fixture struct {
	t     *testing.T
	store *memstore.Store
	gw    *mock.Gateway
	cache *cache.MemoryCache
	inv   inventory.ServiceInterface
	svc   *paymentService
	now   time.Time
	book  invModel.BookSnapshot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		store: memstore.New(),
		gw:    mock.New(),
		cache: cache.NewMemoryCache(),
		now:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	f.store.SetClock(func() time.Time { return f.now })
	f.inv = inventory.NewInventoryService(f.store.Inventory())

	f.svc = NewPaymentService(
		f.store,
		f.store.Payments(),
		f.store.Orders(),
		f.inv,
		f.store.Outbox(),
		f.gw,
		f.cache,
		Settings{
			PaymentTTL:     15 * time.Minute,
			MaxAttempts:    3,
			SweepBatchSize: 100,
			AbandonedAfter: 30 * time.Minute,
		},
	).(*paymentService)
	f.svc.now = func() time.Time { return f.now }

	f.book = invModel.BookSnapshot{
		ID:            uuid.New(),
		Title:         "Dat Rung Phuong Nam",
		ISBN:          "9786041234567",
		Price:         decimal.NewFromInt(75000),
		StockQuantity: 10,
		IsActive:      true,
	}
	f.store.PutBook(f.book)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// placeOrder reserves qty copies and inserts a PENDING_PAYMENT order the way
// checkout does.
func (f *fixture) placeOrder(userID uuid.UUID, qty int) *orderModel.Order {
	f.t.Helper()
	ctx := context.Background()
	total := f.book.Price.Mul(decimal.NewFromInt(int64(qty)))
	order := orderModel.NewOrder(userID, "ORD-TEST-"+uuid.NewString()[:6], "VND",
		orderModel.Totals{SubTotal: total, Total: total},
		orderModel.ShippingAddress{RecipientName: "Tran B", Phone: "0912345678", Line1: "1 Hang Bai", City: "Ha Noi"},
		nil,
		[]orderModel.OrderItem{{
			BookID:    f.book.ID,
			Title:     f.book.Title,
			ISBN:      f.book.ISBN,
			Quantity:  qty,
			UnitPrice: f.book.Price,
			LineTotal: total,
		}},
		f.now,
	)
	err := database.WithTx(ctx, f.store, func(tx pgx.Tx) error {
		ref := invModel.Reference{Type: "order", ID: &order.ID}
		if err := f.inv.ReserveItems(ctx, tx, []invModel.LineQuantity{{BookID: f.book.ID, Quantity: qty}}, ref); err != nil {
			return err
		}
		return f.store.Orders().CreateWithTx(ctx, tx, order)
	})
	require.NoError(f.t, err)
	return order
}

func (f *fixture) pay(userID uuid.UUID, order *orderModel.Order) *model.Payment {
	f.t.Helper()
	resp, err := f.svc.CreatePayment(context.Background(), userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "127.0.0.1")
	require.NoError(f.t, err)
	return resp.Payment
}

func (f *fixture) order(id uuid.UUID) orderModel.Order {
	f.t.Helper()
	o, ok := f.store.Order(id)
	require.True(f.t, ok)
	return o
}

func (f *fixture) payment(id uuid.UUID) model.Payment {
	f.t.Helper()
	p, ok := f.store.Payment(id)
	require.True(f.t, ok)
	return p
}

func payCode(t *testing.T, err error) string {
	t.Helper()
	var pe *model.PaymentError
	require.True(t, errors.As(err, &pe), "want *PaymentError, got %v", err)
	return pe.Code
}

// =====================================================
// CREATE PAYMENT
// =====================================================

func TestCreatePayment_OpensPendingAttempt(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 2)

	resp, err := f.svc.CreatePayment(context.Background(), userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "10.0.0.1")
	require.NoError(t, err)

	p := resp.Payment
	assert.False(t, resp.Reused)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, f.now.Add(15*time.Minute), p.ExpiresAt)
	assert.Regexp(t, `^PAY-20260504-[0-9A-F]{8}$`, p.PaymentCode)
	assert.Regexp(t, `^[0-9A-Z]+$`, p.TxnRef)
	assert.Contains(t, resp.PaymentURL, p.TxnRef)

	require.Len(t, f.gw.Redirects, 1)
	assert.Equal(t, "10.0.0.1", f.gw.Redirects[0].ClientIP)
}

func TestCreatePayment_ReusesLivePendingAttempt(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	first := f.pay(userID, order)

	f.advance(5 * time.Minute)
	resp, err := f.svc.CreatePayment(context.Background(), userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "")
	require.NoError(t, err)

	assert.True(t, resp.Reused)
	assert.Equal(t, first.PaymentCode, resp.Payment.PaymentCode)
	assert.Len(t, f.store.PaymentsOf(order.ID), 1)
}

func TestCreatePayment_ExpiredAttemptIsClosedAndReplaced(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	first := f.pay(userID, order)

	f.advance(20 * time.Minute)
	second := f.pay(userID, order)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, model.StatusExpired, f.payment(first.ID).Status)

	txns := f.store.Transactions(first.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, model.TxnTypeTimeout, txns[0].Type)

	// The order itself stays open for the new attempt.
	assert.Equal(t, orderModel.StatusPendingPayment, f.order(order.ID).Status)
}

func TestCreatePayment_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)

	for i := 0; i < 3; i++ {
		p := f.pay(userID, order)
		_, err := f.svc.HandleCallback(ctx, model.ChannelWebhook, mock.Callback(p.TxnRef, p.Amount, "24"), "")
		require.NoError(t, err)
	}

	_, err := f.svc.CreatePayment(ctx, userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrLimit))
	assert.Equal(t, model.ErrCodeRetryLimitExceeded, payCode(t, err))
}

func TestCreatePayment_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	order := f.placeOrder(owner, 1)

	tests := []struct {
		name    string
		userID  uuid.UUID
		orderID string
		kind    error
	}{
		{"malformed order id", owner, "not-a-uuid", apperr.ErrValidation},
		{"unknown order", owner, uuid.NewString(), apperr.ErrNotFound},
		{"someone else's order", uuid.New(), order.ID.String(), apperr.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePayment(ctx, tt.userID, model.CreatePaymentRequest{OrderID: tt.orderID}, "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
	assert.Empty(t, f.store.PaymentsOf(order.ID))
}

func TestCreatePayment_PaidOrderIsNotPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	_, err := f.svc.HandleCallback(ctx, model.ChannelWebhook, mock.Callback(p.TxnRef, p.Amount, "00"), "")
	require.NoError(t, err)

	_, err = f.svc.CreatePayment(ctx, userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, model.ErrCodeOrderNotPayable, payCode(t, err))
}

func TestGetPayment_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.placeOrder(userID, 1)
	p := f.pay(userID, order)

	got, err := f.svc.GetPayment(ctx, userID, p.PaymentCode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.GetPayment(ctx, uuid.New(), p.PaymentCode)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.GetPayment(ctx, userID, "PAY-NOPE")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	list, err := f.svc.ListOrderPayments(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreatePayment_ZeroTotalOrderIsNotPayable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := orderModel.NewOrder(userID, "ORD-FREE-01", "VND",
		orderModel.Totals{SubTotal: decimal.Zero, Total: decimal.Zero},
		orderModel.ShippingAddress{RecipientName: "Tran B", Phone: "0912345678", Line1: "1 Hang Bai", City: "Ha Noi"},
		nil,
		[]orderModel.OrderItem{{BookID: f.book.ID, Title: f.book.Title, Quantity: 1, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}},
		f.now,
	)
	require.NoError(t, database.WithTx(ctx, f.store, func(tx pgx.Tx) error {
		return f.store.Orders().CreateWithTx(ctx, tx, order)
	}))

	_, err := f.svc.CreatePayment(ctx, userID, model.CreatePaymentRequest{OrderID: order.ID.String()}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, model.ErrCodeOrderNotPayable, payCode(t, err))
	assert.Empty(t, f.store.PaymentsOf(order.ID))
	assert.Empty(t, f.gw.Redirects)
}
