package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartModel "bookstore-settlement/internal/domains/cart/model"
	invModel "bookstore-settlement/internal/domains/inventory/model"
	inventory "bookstore-settlement/internal/domains/inventory/service"
	notifModel "bookstore-settlement/internal/domains/notification/model"
	"bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/internal/testutil/memstore"
)

type pendingStub struct{ pending bool }

func (p *pendingStub) HasPendingWithTx(context.Context, pgx.Tx, uuid.UUID) (bool, error) {
	return p.pending, nil
}

type fixture struct {
	store   *memstore.Store
	svc     *orderService
	pending *pendingStub
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	pending := &pendingStub{}
	svc := NewOrderService(
		store,
		store.Orders(),
		store.Carts(),
		inventory.NewInventoryService(store.Inventory()),
		pending,
		store.Outbox(),
		model.TotalsPolicy{
			FreeShippingThreshold: decimal.NewFromInt(100),
			FlatShippingFee:       decimal.NewFromInt(5),
			DiscountThreshold:     decimal.NewFromInt(1000000),
			DiscountRate:          decimal.RequireFromString("0.05"),
			TaxRate:               decimal.RequireFromString("0.10"),
			Precision:             2,
		},
		"USD",
	).(*orderService)
	svc.now = func() time.Time { return now }

	return &fixture{store: store, svc: svc, pending: pending, now: now}
}

func (f *fixture) book(t *testing.T, price string, stock int) invModel.BookSnapshot {
	t.Helper()
	b := invModel.BookSnapshot{
		ID:            uuid.New(),
		Title:         "Book " + price,
		ISBN:          "978" + price,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	f.store.PutBook(b)
	return b
}

func (f *fixture) addToCart(t *testing.T, userID uuid.UUID, b invModel.BookSnapshot, qty int) {
	t.Helper()
	require.NoError(t, f.store.Carts().UpsertLine(context.Background(), &cartModel.CartLine{
		UserID:            userID,
		BookID:            b.ID,
		Quantity:          qty,
		UnitPriceSnapshot: b.Price,
	}))
}

func validRequest() model.CreateOrderRequest {
	return model.CreateOrderRequest{
		ShippingAddress: model.ShippingAddress{
			RecipientName: "Nguyen Van A",
			Phone:         "0901234567",
			Line1:         "12 Ly Thuong Kiet",
			City:          "Ha Noi",
		},
	}
}

func orderCode(t *testing.T, err error) string {
	t.Helper()
	var oe *model.OrderError
	require.True(t, errors.As(err, &oe), "want *OrderError, got %v", err)
	return oe.Code
}

func TestCreateOrder_ReservesStockAndClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	b := f.book(t, "50", 10)
	f.addToCart(t, userID, b, 3)

	order, err := f.svc.CreateOrder(ctx, userID, validRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusPendingPayment, order.Status)
	assert.Equal(t, model.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Regexp(t, `^ORD-20260314-[0-9A-F]{6}$`, order.OrderCode)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(165)), "total %s", order.Total)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Book 50", order.Items[0].Title)

	assert.Equal(t, 7, f.store.Stock(b.ID))

	lines, err := f.store.Carts().ListLines(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	history := f.store.History(order.ID)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, model.StatusPendingPayment, history[0].ToStatus)

	created := f.store.Events(notifModel.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, order.ID, created[0].AggregateID)
	assert.Equal(t, notifModel.AggregateOrder, created[0].AggregateType)
}

func TestCreateOrder_ZeroTotalRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.svc.policy.FreeShippingThreshold = decimal.Zero
	b := f.book(t, "0", 4)
	f.addToCart(t, userID, b, 2)

	_, err := f.svc.CreateOrder(ctx, userID, validRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, model.ErrCodeInvalidTotals, orderCode(t, err))

	assert.Equal(t, 4, f.store.Stock(b.ID), "nothing reserved")
	lines, err := f.store.Carts().ListLines(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, lines, 1, "cart kept")
	assert.Empty(t, f.store.Events(notifModel.EventOrderCreated))
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), validRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, model.ErrCodeCartEmpty, orderCode(t, err))
}

func TestCreateOrder_InvalidAddress(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.ShippingAddress.Phone = "not-a-phone"

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreateOrder_StalePriceRejected(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	b := f.book(t, "50", 10)
	f.addToCart(t, userID, b, 1)

	b.Price = decimal.NewFromInt(55)
	f.store.PutBook(b)

	_, err := f.svc.CreateOrder(context.Background(), userID, validRequest())

	require.Error(t, err)
	assert.Equal(t, model.ErrCodeStalePrice, orderCode(t, err))
	assert.Equal(t, 10, f.store.Stock(b.ID))

	lines, _ := f.store.Carts().ListLines(context.Background(), userID)
	assert.Len(t, lines, 1, "cart must survive a rejected checkout")
}

func TestCreateOrder_InactiveBook(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	b := f.book(t, "20", 10)
	f.addToCart(t, userID, b, 1)

	b.IsActive = false
	f.store.PutBook(b)

	_, err := f.svc.CreateOrder(context.Background(), userID, validRequest())

	require.Error(t, err)
	assert.Equal(t, model.ErrCodeBookUnavailable, orderCode(t, err))
}

func TestCreateOrder_OutOfStockRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	plenty := f.book(t, "10", 5)
	scarce := f.book(t, "30", 1)
	f.addToCart(t, userID, plenty, 2)
	f.addToCart(t, userID, scarce, 2)

	_, err := f.svc.CreateOrder(context.Background(), userID, validRequest())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrOutOfStock))
	assert.Equal(t, model.ErrCodeOutOfStock, orderCode(t, err))
	assert.Equal(t, 5, f.store.Stock(plenty.ID))
	assert.Equal(t, 1, f.store.Stock(scarce.ID))
}

func TestCreateOrder_LastUnitGoesToExactlyOneBuyer(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, "40", 1)

	const buyers = 8
	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = uuid.New()
		f.addToCart(t, users[i], b, 1)
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		outOfStock int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.CreateOrder(context.Background(), userID, validRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrOutOfStock):
				outOfStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, buyers-1, outOfStock)
	assert.Equal(t, 0, f.store.Stock(b.ID))
}

func TestCancelOrder_ReleasesStockAndEmitsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	b := f.book(t, "25", 4)
	f.addToCart(t, userID, b, 2)

	order, err := f.svc.CreateOrder(ctx, userID, validRequest())
	require.NoError(t, err)
	require.Equal(t, 2, f.store.Stock(b.ID))

	cancelled, err := f.svc.CancelOrder(ctx, userID, order.ID, model.CancelOrderRequest{Reason: "changed my mind"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "changed my mind", *cancelled.CancellationReason)
	assert.Equal(t, 4, f.store.Stock(b.ID))
	assert.Len(t, f.store.Events(notifModel.EventOrderCancelled), 1)
	assert.Len(t, f.store.History(order.ID), 2)
}

func TestCancelOrder_RefusedWhilePaymentPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	b := f.book(t, "25", 4)
	f.addToCart(t, userID, b, 1)

	order, err := f.svc.CreateOrder(ctx, userID, validRequest())
	require.NoError(t, err)

	f.pending.pending = true
	_, err = f.svc.CancelOrder(ctx, userID, order.ID, model.CancelOrderRequest{})

	require.Error(t, err)
	assert.Equal(t, model.ErrCodePendingPayment, orderCode(t, err))
	assert.Equal(t, 3, f.store.Stock(b.ID))

	stored, ok := f.store.Order(order.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusPendingPayment, stored.Status)
}

func TestCancelOrder_PaidOrderIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	b := f.book(t, "25", 4)
	f.addToCart(t, userID, b, 1)

	order, err := f.svc.CreateOrder(ctx, userID, validRequest())
	require.NoError(t, err)

	tx, err := f.store.BeginTx(ctx)
	require.NoError(t, err)
	locked, err := f.store.Orders().GetByIDForUpdateWithTx(ctx, tx, order.ID)
	require.NoError(t, err)
	require.NoError(t, locked.MarkPaid(f.now))
	require.NoError(t, f.store.Orders().UpdateWithTx(ctx, tx, locked))
	require.NoError(t, f.store.CommitTx(ctx, tx))

	_, err = f.svc.CancelOrder(ctx, userID, order.ID, model.CancelOrderRequest{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, 3, f.store.Stock(b.ID))
}

func TestCancelOrder_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	b := f.book(t, "25", 4)
	f.addToCart(t, owner, b, 1)

	order, err := f.svc.CreateOrder(ctx, owner, validRequest())
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, uuid.New(), order.ID, model.CancelOrderRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.GetOrder(ctx, uuid.New(), order.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetOrder(context.Background(), uuid.New(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, model.ErrCodeOrderNotFound, orderCode(t, err))
}

func TestUpdateStatus_Fulfilment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, adminID := uuid.New(), uuid.New()
	b := f.book(t, "25", 4)
	f.addToCart(t, userID, b, 1)

	order, err := f.svc.CreateOrder(ctx, userID, validRequest())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, order.ID, adminID, model.UpdateStatusRequest{Status: model.StatusShipped})
	require.Error(t, err, "unpaid order cannot ship")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	tx, err := f.store.BeginTx(ctx)
	require.NoError(t, err)
	locked, err := f.store.Orders().GetByIDForUpdateWithTx(ctx, tx, order.ID)
	require.NoError(t, err)
	require.NoError(t, locked.MarkPaid(f.now))
	require.NoError(t, f.store.Orders().UpdateWithTx(ctx, tx, locked))
	require.NoError(t, f.store.CommitTx(ctx, tx))

	for _, st := range []model.Status{model.StatusProcessing, model.StatusShipped, model.StatusDelivered} {
		updated, err := f.svc.UpdateStatus(ctx, order.ID, adminID, model.UpdateStatusRequest{Status: st})
		require.NoError(t, err, st)
		assert.Equal(t, st, updated.Status)
	}

	history, err := f.svc.GetStatusHistory(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestListOrders_Paginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	b := f.book(t, "10", 100)

	for i := 0; i < 3; i++ {
		f.addToCart(t, userID, b, 1)
		_, err := f.svc.CreateOrder(ctx, userID, validRequest())
		require.NoError(t, err)
	}

	resp, err := f.svc.ListOrders(ctx, userID, model.ListOrdersRequest{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Len(t, resp.Orders, 2)
}
