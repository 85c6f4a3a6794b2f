package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/order/service"
	paymentModel "bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/logger"
)

// PaymentStarter opens the first payment attempt right after checkout.
type PaymentStarter interface {
	CreatePayment(ctx context.Context, userID uuid.UUID, req paymentModel.CreatePaymentRequest, clientIP string) (*paymentModel.CreatePaymentResponse, error)
}

// =====================================================
// ORDER HANDLER
// =====================================================
type OrderHandler struct {
	orderService service.OrderService
	payments     PaymentStarter
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService service.OrderService, payments PaymentStarter) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		payments:     payments,
	}
}

// CheckoutResponse is returned by POST /orders. Payment is nil when the
// order was placed but the first payment attempt could not be opened; the
// client retries with POST /payments.
type CheckoutResponse struct {
	Order        *model.Order          `json:"order"`
	Payment      *paymentModel.Payment `json:"payment"`
	PaymentURL   string                `json:"payment_url,omitempty"`
	PaymentError *response.ErrorBody   `json:"payment_error,omitempty"`
}

// =====================================================
// ROUTES REGISTRATION
// =====================================================

// RegisterRoutes wires the user routes on an authenticated group. checkout
// runs in front of POST /orders (idempotency guard).
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup, checkout ...gin.HandlerFunc) {
	orders := router.Group("/orders")
	{
		orders.POST("", append(checkout, h.Checkout)...) // POST /v1/orders
		orders.GET("", h.ListOrders)                     // GET /v1/orders?page=1&limit=20
		orders.GET("/:id", h.GetOrder)                   // GET /v1/orders/:id
		orders.GET("/:id/history", h.GetStatusHistory)   // GET /v1/orders/:id/history
		orders.GET("/code/:code", h.GetOrderByCode)      // GET /v1/orders/code/ORD-20260504-AB12CD
		orders.POST("/:id/cancel", h.CancelOrder)        // POST /v1/orders/:id/cancel
	}
}

// RegisterAdminRoutes wires the admin routes on an admin-only group.
func (h *OrderHandler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	orders := admin.Group("/orders")
	{
		orders.GET("/:id", h.AdminGetOrder)
		orders.PATCH("/:id/status", h.UpdateOrderStatus)
	}
}

// =====================================================
// CHECKOUT
// =====================================================

// Checkout turns the caller's cart into an order and opens its first
// payment attempt.
// POST /v1/orders
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req model.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), userID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	result := CheckoutResponse{Order: order}
	pay, err := h.payments.CreatePayment(c.Request.Context(), userID,
		paymentModel.CreatePaymentRequest{OrderID: order.ID.String()}, middleware.GetClientIP(c))
	if err != nil {
		logger.ErrorWithFields("Order placed but payment could not be opened", err, map[string]interface{}{
			"order_id":   order.ID,
			"order_code": order.OrderCode,
		})
		result.PaymentError = paymentErrorBody(err)
	} else {
		result.Payment = pay.Payment
		result.PaymentURL = pay.PaymentURL
	}

	response.Success(c, http.StatusCreated, result)
}

// =====================================================
// QUERIES
// =====================================================

// GET /v1/orders?page=1&limit=20
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req model.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.orderService.ListOrders(c.Request.Context(), userID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Orders, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

// GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, orderID, ok := h.userAndOrderID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// GET /v1/orders/code/:code
func (h *OrderHandler) GetOrderByCode(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	order, err := h.orderService.GetOrderByCode(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// GET /v1/orders/:id/history
func (h *OrderHandler) GetStatusHistory(c *gin.Context) {
	userID, orderID, ok := h.userAndOrderID(c)
	if !ok {
		return
	}

	history, err := h.orderService.GetStatusHistory(c.Request.Context(), userID, orderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// =====================================================
// CANCEL
// =====================================================

// POST /v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, orderID, ok := h.userAndOrderID(c)
	if !ok {
		return
	}

	// The reason is optional, so an empty body is fine.
	var req model.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), userID, orderID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// =====================================================
// ADMIN
// =====================================================

// GET /v1/admin/orders/:id
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Order ID must be a valid UUID")
		return
	}

	order, err := h.orderService.GetOrderAdmin(c.Request.Context(), orderID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// PATCH /v1/admin/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	adminID, orderID, ok := h.userAndOrderID(c)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, adminID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, order)
}

// =====================================================
// HELPER METHODS
// =====================================================

func (h *OrderHandler) userAndOrderID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Order ID must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, orderID, true
}

// handleServiceError maps service errors to HTTP responses
func (h *OrderHandler) handleServiceError(c *gin.Context, err error) {
	var orderErr *model.OrderError
	if errors.As(err, &orderErr) {
		response.Error(c, response.StatusFor(err), orderErr.Code, orderErr.Message)
		return
	}

	logger.Error("Order request failed", err)
	response.InternalServerError(c, "Internal server error")
}

func paymentErrorBody(err error) *response.ErrorBody {
	var payErr *paymentModel.PaymentError
	if errors.As(err, &payErr) {
		return &response.ErrorBody{Code: payErr.Code, Message: payErr.Message}
	}
	return &response.ErrorBody{Code: "INTERNAL_SERVER_ERROR", Message: "payment could not be started"}
}
