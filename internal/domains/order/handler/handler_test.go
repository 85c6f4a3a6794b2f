package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-settlement/internal/domains/order/model"
	paymentModel "bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/pkg/cache"
)

type stubOrders struct {
	order     *model.Order
	createErr error
	cancelErr error
	cancelled model.CancelOrderRequest
}

func (s *stubOrders) CreateOrder(context.Context, uuid.UUID, model.CreateOrderRequest) (*model.Order, error) {
	return s.order, s.createErr
}
func (s *stubOrders) GetOrder(_ context.Context, _, id uuid.UUID) (*model.Order, error) {
	if id != s.order.ID {
		return nil, model.NewOrderError(model.ErrCodeOrderNotFound, apperr.ErrNotFound, "order not found", nil)
	}
	return s.order, nil
}
func (s *stubOrders) GetOrderByCode(context.Context, uuid.UUID, string) (*model.Order, error) {
	return s.order, nil
}
func (s *stubOrders) ListOrders(context.Context, uuid.UUID, model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
	return &model.ListOrdersResponse{Orders: []model.OrderSummary{s.order.ToSummary()}, Total: 1, Page: 1, Limit: 20, TotalPages: 1}, nil
}
func (s *stubOrders) GetStatusHistory(context.Context, uuid.UUID, uuid.UUID) ([]model.OrderStatusHistory, error) {
	return []model.OrderStatusHistory{}, nil
}
func (s *stubOrders) CancelOrder(_ context.Context, _, _ uuid.UUID, req model.CancelOrderRequest) (*model.Order, error) {
	s.cancelled = req
	return s.order, s.cancelErr
}
func (s *stubOrders) GetOrderAdmin(context.Context, uuid.UUID) (*model.Order, error) {
	return s.order, nil
}
func (s *stubOrders) UpdateStatus(context.Context, uuid.UUID, uuid.UUID, model.UpdateStatusRequest) (*model.Order, error) {
	return nil, model.NewTransitionError(model.StatusPendingPayment, model.StatusShipped)
}

type stubPayments struct {
	err      error
	clientIP string
}

func (s *stubPayments) CreatePayment(_ context.Context, _ uuid.UUID, req paymentModel.CreatePaymentRequest, clientIP string) (*paymentModel.CreatePaymentResponse, error) {
	s.clientIP = clientIP
	if s.err != nil {
		return nil, s.err
	}
	return &paymentModel.CreatePaymentResponse{
		Payment:    &paymentModel.Payment{PaymentCode: "PAY-20260504-0A1B2C3D", Status: paymentModel.StatusPending},
		PaymentURL: "https://pay.example/?vnp_TxnRef=X",
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newRouter(orders *stubOrders, payments *stubPayments, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ClientIPMiddleware())
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(shared.ContextKeyUserID, userID)
		c.Next()
	})
	h := NewOrderHandler(orders, payments)
	h.RegisterRoutes(api, middleware.Idempotency(cache.NewMemoryCache(), "checkout", 0, model.ErrCodeDuplicateRequest))
	h.RegisterAdminRoutes(api.Group("/admin"))
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func sampleOrder(userID uuid.UUID) *model.Order {
	return &model.Order{ID: uuid.New(), UserID: userID, OrderCode: "ORD-20260504-AB12CD", Status: model.StatusPendingPayment}
}

const checkoutBody = `{"shipping_address":{"recipient_name":"Tran B","phone":"0912345678","line1":"1 Hang Bai","city":"Ha Noi"}}`

func TestCheckout_ReturnsOrderAndPaymentURL(t *testing.T) {
	userID := uuid.New()
	payments := &stubPayments{}
	r := newRouter(&stubOrders{order: sampleOrder(userID)}, payments, userID)

	w, env := do(r, http.MethodPost, "/api/v1/orders", checkoutBody, map[string]string{"X-Real-IP": "203.0.113.9"})

	require.Equal(t, http.StatusCreated, w.Code)
	var data CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ORD-20260504-AB12CD", data.Order.OrderCode)
	require.NotNil(t, data.Payment)
	assert.Equal(t, "https://pay.example/?vnp_TxnRef=X", data.PaymentURL)
	assert.Nil(t, data.PaymentError)
	assert.Equal(t, "203.0.113.9", payments.clientIP)
}

func TestCheckout_PaymentFailureStillReturnsOrder(t *testing.T) {
	userID := uuid.New()
	payments := &stubPayments{err: paymentModel.ErrGatewayUnavailable("redirect", context.DeadlineExceeded)}
	r := newRouter(&stubOrders{order: sampleOrder(userID)}, payments, userID)

	w, env := do(r, http.MethodPost, "/api/v1/orders", checkoutBody, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var data CheckoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Nil(t, data.Payment)
	require.NotNil(t, data.PaymentError)
	assert.Equal(t, paymentModel.ErrCodeGatewayUnavailable, data.PaymentError.Code)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"out of stock", model.NewOrderError(model.ErrCodeOutOfStock, apperr.ErrOutOfStock, "insufficient stock", nil), http.StatusConflict, model.ErrCodeOutOfStock},
		{"empty cart", model.NewValidationError(model.ErrCodeCartEmpty, "cart is empty"), http.StatusBadRequest, model.ErrCodeCartEmpty},
		{"stale price", model.NewOrderError(model.ErrCodeStalePrice, apperr.ErrValidation, "price changed", nil), http.StatusBadRequest, model.ErrCodeStalePrice},
		{"unexpected", context.Canceled, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubOrders{order: sampleOrder(userID), createErr: tt.err}, &stubPayments{}, userID)
			w, env := do(r, http.MethodPost, "/api/v1/orders", checkoutBody, nil)
			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestCheckout_IdempotencyKeyReplay(t *testing.T) {
	userID := uuid.New()
	r := newRouter(&stubOrders{order: sampleOrder(userID)}, &stubPayments{}, userID)
	headers := map[string]string{middleware.HeaderIdempotencyKey: "c0ffee"}

	w, _ := do(r, http.MethodPost, "/api/v1/orders", checkoutBody, headers)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(r, http.MethodPost, "/api/v1/orders", checkoutBody, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, model.ErrCodeDuplicateRequest, env.Error.Code)
}

func TestGetAndCancelOrder(t *testing.T) {
	userID := uuid.New()
	orders := &stubOrders{order: sampleOrder(userID)}
	r := newRouter(orders, &stubPayments{}, userID)

	w, _ := do(r, http.MethodGet, "/api/v1/orders/"+orders.order.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := do(r, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, model.ErrCodeOrderNotFound, env.Error.Code)

	w, _ = do(r, http.MethodGet, "/api/v1/orders/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPost, "/api/v1/orders/"+orders.order.ID.String()+"/cancel", `{"reason":"changed my mind"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "changed my mind", orders.cancelled.Reason)

	w, _ = do(r, http.MethodPost, "/api/v1/orders/"+orders.order.ID.String()+"/cancel", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	orders.cancelErr = model.NewOrderError(model.ErrCodePendingPayment, apperr.ErrInvalidTransition, "payment in progress", nil)
	w, env = do(r, http.MethodPost, "/api/v1/orders/"+orders.order.ID.String()+"/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, model.ErrCodePendingPayment, env.Error.Code)
}

func TestListOrders_Meta(t *testing.T) {
	userID := uuid.New()
	r := newRouter(&stubOrders{order: sampleOrder(userID)}, &stubPayments{}, userID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders?page=1&limit=20", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_pages":1`)
}

func TestAdminUpdateStatus_InvalidTransition(t *testing.T) {
	userID := uuid.New()
	orders := &stubOrders{order: sampleOrder(userID)}
	r := newRouter(orders, &stubPayments{}, userID)

	w, env := do(r, http.MethodPatch, "/api/v1/admin/orders/"+orders.order.ID.String()+"/status", `{"status":"SHIPPED"}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, model.ErrCodeInvalidTransition, env.Error.Code)
}
