package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/cart/model"
	"bookstore-settlement/internal/domains/cart/service"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/logger"
)

type CartHandler struct {
	cartService service.ServiceInterface
}

func NewCartHandler(cartService service.ServiceInterface) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	cart := router.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.POST("/items", h.AddItem)
		cart.DELETE("/items/:book_id", h.RemoveItem)
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	cart, err := h.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req model.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request body")
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

// DELETE /api/v1/cart/items/:book_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	bookID, err := uuid.Parse(c.Param("book_id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Book ID must be a valid UUID")
		return
	}

	cart, err := h.cartService.RemoveItem(c.Request.Context(), userID, bookID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, cart)
}

func handleServiceError(c *gin.Context, err error) {
	var cartErr *model.CartError
	if errors.As(err, &cartErr) {
		response.Error(c, response.StatusFor(err), cartErr.Code, cartErr.Message)
		return
	}

	logger.Error("Cart request failed", err)
	response.InternalServerError(c, "Internal server error")
}
