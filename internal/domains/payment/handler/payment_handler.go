package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/payment/gateway/vnpay"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/domains/payment/service"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/logger"
)

// IPN acknowledgement codes understood by VNPay.
const (
	rspConfirmed       = "00"
	rspUnknownTxn      = "01"
	rspInvalidAmount   = "04"
	rspInvalidChecksum = "97"
	rspUnknownError    = "99"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates new payment handler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// IPNResponse is the body VNPay expects from the IPN endpoint.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// =====================================================
// ROUTES REGISTRATION
// =====================================================

// RegisterRoutes wires the authenticated user routes.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/payments", h.CreatePayment)
	router.GET("/payments/:code", h.GetPayment)
	router.GET("/orders/:id/payments", h.ListOrderPayments)
}

// RegisterCallbackRoutes wires the public gateway callbacks. They carry no
// JWT; the signature is the authentication.
func (h *PaymentHandler) RegisterCallbackRoutes(router *gin.RouterGroup) {
	router.GET("/payments/vnpay/return", h.VNPayReturn)
	router.GET("/webhooks/vnpay", h.VNPayIPN)
}

// RegisterAdminRoutes wires the admin-only routes.
func (h *PaymentHandler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	payments := admin.Group("/payments")
	{
		payments.POST("/:code/refund", h.AdminRefund)
		payments.POST("/:code/check-status", h.AdminCheckStatus)
		payments.GET("/:code/transactions", h.AdminListTransactions)
	}
}

// =====================================================
// USER PAYMENT ENDPOINTS
// =====================================================

// CreatePayment opens (or returns the live) payment attempt for an order.
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}

	var req model.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), userID, req, middleware.GetClientIP(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// GET /api/v1/payments/:code
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, payment)
}

// GET /api/v1/orders/:id/payments
func (h *PaymentHandler) ListOrderPayments(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Order ID must be a valid UUID")
		return
	}

	payments, err := h.paymentService.ListOrderPayments(c.Request.Context(), userID, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, payments)
}

// =====================================================
// GATEWAY CALLBACKS
// =====================================================

// VNPayReturn handles the browser redirect after the customer leaves the
// gateway. It settles the payment the same way the IPN does, so whichever
// arrives first wins and the other is recorded as a duplicate.
// GET /api/v1/payments/vnpay/return
func (h *PaymentHandler) VNPayReturn(c *gin.Context) {
	params := vnpay.ValuesToMap(c.Request.URL.Query())

	result, err := h.paymentService.HandleCallback(c.Request.Context(), model.ChannelReturn, params, middleware.GetClientIP(c))
	if err != nil {
		handleCallbackError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// VNPayIPN handles the server-to-server notification. VNPay only reads the
// RspCode, so the HTTP status is always 200 and no internal detail leaks.
// GET /api/v1/webhooks/vnpay
func (h *PaymentHandler) VNPayIPN(c *gin.Context) {
	params := vnpay.ValuesToMap(c.Request.URL.Query())

	_, err := h.paymentService.HandleCallback(c.Request.Context(), model.ChannelWebhook, params, middleware.GetClientIP(c))
	c.JSON(http.StatusOK, ipnResponse(err))
}

func ipnResponse(err error) IPNResponse {
	var payErr *model.PaymentError
	switch {
	case err == nil:
		return IPNResponse{RspCode: rspConfirmed, Message: "Confirm Success"}
	case errors.Is(err, apperr.ErrSignatureInvalid):
		return IPNResponse{RspCode: rspInvalidChecksum, Message: "Invalid Checksum"}
	case errors.Is(err, apperr.ErrUnknownTransaction):
		return IPNResponse{RspCode: rspUnknownTxn, Message: "Order not found"}
	case errors.As(err, &payErr) && payErr.Code == model.ErrCodeAmountMismatch:
		return IPNResponse{RspCode: rspInvalidAmount, Message: "Invalid amount"}
	default:
		logger.Error("IPN processing failed", err)
		return IPNResponse{RspCode: rspUnknownError, Message: "Unknown error"}
	}
}

// =====================================================
// ADMIN ENDPOINTS
// =====================================================

// AdminRefund refunds a completed payment in full or in part.
// POST /api/v1/admin/payments/:code/refund
func (h *PaymentHandler) AdminRefund(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "AUTH_ERROR", "Unauthorized")
		return
	}

	var req model.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request body")
		return
	}
	req.PaymentCode = c.Param("code")
	req.AdminID = adminID

	result, err := h.paymentService.Refund(c.Request.Context(), req, middleware.GetClientIP(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// AdminCheckStatus reconciles a payment against the gateway.
// POST /api/v1/admin/payments/:code/check-status
func (h *PaymentHandler) AdminCheckStatus(c *gin.Context) {
	result, err := h.paymentService.CheckStatus(c.Request.Context(), c.Param("code"), middleware.GetClientIP(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GET /api/v1/admin/payments/:code/transactions
func (h *PaymentHandler) AdminListTransactions(c *gin.Context) {
	txns, err := h.paymentService.ListTransactions(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, txns)
}

// =====================================================
// ERROR MAPPING HELPER
// =====================================================

// callbackMessages are the only texts a return-URL caller ever sees. The
// underlying error, which may carry amounts or the failed verification step,
// stays in the log and the webhook log.
var callbackMessages = map[string]string{
	model.ErrCodeInvalidSignature:   "Invalid payment signature",
	model.ErrCodeUnknownTransaction: "Payment not found",
	model.ErrCodeAmountMismatch:     "Payment amount does not match",
	model.ErrCodeInvalidTransition:  "Payment cannot be updated",
	model.ErrCodeGatewayUnavailable: "Payment gateway unavailable",
}

func handleCallbackError(c *gin.Context, err error) {
	var payErr *model.PaymentError
	if !errors.As(err, &payErr) {
		logger.Error("Return callback failed", err)
		response.InternalServerError(c, "Internal server error")
		return
	}

	logger.Warn("Return callback rejected", map[string]interface{}{
		"code":  payErr.Code,
		"error": err.Error(),
	})
	msg, ok := callbackMessages[payErr.Code]
	if !ok {
		msg = "Payment callback rejected"
	}
	response.Error(c, response.StatusFor(err), payErr.Code, msg)
}

func handleServiceError(c *gin.Context, err error) {
	var payErr *model.PaymentError
	if errors.As(err, &payErr) {
		response.Error(c, response.StatusFor(err), payErr.Code, payErr.Message)
		return
	}

	logger.Error("Payment request failed", err)
	response.InternalServerError(c, "Internal server error")
}
