package main

import (
	"github.com/gin-gonic/gin"

	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/shared/middleware"
	"bookstore-settlement/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ClientIPMiddleware(),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(newHealthDeps(c)))

		setupCallbackRoutes(v1, c)
		setupUserRoutes(v1, c)
		setupAdminRoutes(v1, c)
	}

	return router
}

// ========================================
// GATEWAY CALLBACKS (public, rate limited)
// ========================================
func setupCallbackRoutes(v1 *gin.RouterGroup, c *container.Container) {
	limiter := middleware.NewIPRateLimiter(c.Config.App.CallbackRateLimit, c.Config.App.CallbackBurst)
	callbacks := v1.Group("", middleware.RateLimit(limiter))
	c.PaymentHandler.RegisterCallbackRoutes(callbacks)
}

// ========================================
// USER ROUTES
// ========================================
func setupUserRoutes(v1 *gin.RouterGroup, c *container.Container) {
	authed := v1.Group("", middleware.AuthMiddleware(c.JWTManager))

	checkoutGuard := middleware.Idempotency(
		c.Cache,
		"checkout",
		c.Config.Checkout.IdempotencyTTL,
		orderModel.ErrCodeDuplicateRequest,
	)

	c.CartHandler.RegisterRoutes(authed)
	c.OrderHandler.RegisterRoutes(authed, checkoutGuard)
	c.PaymentHandler.RegisterRoutes(authed)
}

// ========================================
// ADMIN ROUTES
// ========================================
func setupAdminRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin",
		middleware.AuthMiddleware(c.JWTManager),
		middleware.AdminMiddleware(),
	)

	c.OrderHandler.RegisterAdminRoutes(admin)
	c.PaymentHandler.RegisterAdminRoutes(admin)
	c.InventoryHandler.RegisterAdminRoutes(admin)
}
