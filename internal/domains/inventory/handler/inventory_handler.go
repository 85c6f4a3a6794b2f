package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/inventory/model"
	"bookstore-settlement/internal/domains/inventory/service"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/logger"
)

type InventoryHandler struct {
	inventoryService service.ServiceInterface
}

func NewInventoryHandler(inventoryService service.ServiceInterface) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

// RegisterAdminRoutes wires stock management on an admin-only group.
func (h *InventoryHandler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	inv := admin.Group("/inventory")
	{
		inv.POST("/:book_id/adjust", h.AdjustStock)     // POST /v1/admin/inventory/:book_id/adjust
		inv.GET("/:book_id/movements", h.ListMovements) // GET /v1/admin/inventory/:book_id/movements?limit=50
	}
}

// AdjustStock applies a signed delta, e.g. after a stock count.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	bookID, err := uuid.Parse(c.Param("book_id"))
	if err != nil {
		response.BadRequest(c, "Book ID must be a valid UUID")
		return
	}

	var req model.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.inventoryService.AdjustStock(c.Request.Context(), bookID, adminID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *InventoryHandler) ListMovements(c *gin.Context) {
	bookID, err := uuid.Parse(c.Param("book_id"))
	if err != nil {
		response.BadRequest(c, "Book ID must be a valid UUID")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, err := h.inventoryService.ListMovements(c.Request.Context(), bookID, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, movements)
}

func handleServiceError(c *gin.Context, err error) {
	var invErr *model.InventoryError
	if errors.As(err, &invErr) {
		response.Error(c, response.StatusFor(err), invErr.Code, invErr.Message)
		return
	}

	logger.Error("Inventory request failed", err)
	response.InternalServerError(c, "Internal server error")
}
