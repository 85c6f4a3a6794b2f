package container

import (
	"context"
	"fmt"
	"time"

	"bookstore-settlement/internal/config"
	cartHandler "bookstore-settlement/internal/domains/cart/handler"
	cartRepo "bookstore-settlement/internal/domains/cart/repository"
	cartService "bookstore-settlement/internal/domains/cart/service"
	invHandler "bookstore-settlement/internal/domains/inventory/handler"
	invRepo "bookstore-settlement/internal/domains/inventory/repository"
	invService "bookstore-settlement/internal/domains/inventory/service"
	notifRepo "bookstore-settlement/internal/domains/notification/repository"
	orderHandler "bookstore-settlement/internal/domains/order/handler"
	orderModel "bookstore-settlement/internal/domains/order/model"
	orderRepo "bookstore-settlement/internal/domains/order/repository"
	orderService "bookstore-settlement/internal/domains/order/service"
	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/gateway/mock"
	"bookstore-settlement/internal/domains/payment/gateway/vnpay"
	paymentHandler "bookstore-settlement/internal/domains/payment/handler"
	paymentRepo "bookstore-settlement/internal/domains/payment/repository"
	paymentService "bookstore-settlement/internal/domains/payment/service"
	infraCache "bookstore-settlement/internal/infrastructure/cache"
	"bookstore-settlement/internal/infrastructure/database"
	"bookstore-settlement/pkg/cache"
	pkgdb "bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/jwt"
	"bookstore-settlement/pkg/logger"
)

// Container holds every long-lived dependency of the API and the worker.
type Container struct {
	Config     *config.Config
	DB         *database.PostgresDB
	Cache      cache.Cache
	JWTManager *jwt.Manager
	TxManager  pkgdb.TxManager

	// Repositories
	OrderRepo     orderRepo.OrderRepository
	PaymentRepo   paymentRepo.PaymentRepository
	CartRepo      cartRepo.RepositoryInterface
	InventoryRepo invRepo.RepositoryInterface
	OutboxRepo    notifRepo.OutboxRepository

	// Services
	InventoryService invService.ServiceInterface
	CartService      cartService.ServiceInterface
	OrderService     orderService.OrderService
	PaymentService   paymentService.PaymentService

	// Handlers
	CartHandler      *cartHandler.CartHandler
	InventoryHandler *invHandler.InventoryHandler
	OrderHandler     *orderHandler.OrderHandler
	PaymentHandler   *paymentHandler.PaymentHandler

	redis *infraCache.RedisCache
}

// NewContainer loads config, connects to Postgres and Redis and builds the
// domain graph. Redis is optional: when it is disabled or unreachable the
// cache falls back to process memory.
func NewContainer() (*Container, error) {
	c := &Container{}

	// Step 1: config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.Config = cfg

	// Step 2: database
	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	c.DB = database.NewPostgresDB(dbConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.DB.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := c.DB.HealthCheck(ctx); err != nil {
		c.DB.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}

	// Step 3: cache
	c.Cache = c.initCache(ctx)

	// Step 4: auth
	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	if err := c.initRepositories(); err != nil {
		c.Cleanup()
		return nil, err
	}
	if err := c.initServices(); err != nil {
		c.Cleanup()
		return nil, err
	}
	c.initHandlers()

	logger.Info("Container initialized", map[string]interface{}{
		"environment": cfg.App.Environment,
		"redis":       c.redis != nil,
	})
	return c, nil
}

func (c *Container) initCache(ctx context.Context) cache.Cache {
	if !c.Config.Redis.Enabled {
		logger.Warn("Redis disabled, using in-memory cache", nil)
		return cache.NewMemoryCache()
	}

	rc := infraCache.NewRedisCache(infraCache.RedisConfig{
		Addr:     c.Config.Redis.Host,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	}, c.Config.Redis.Prefix)

	if err := rc.Connect(ctx); err != nil {
		// Idempotency keys and the sweeper heartbeat degrade to per-process.
		logger.Error("Redis unavailable, using in-memory cache", err)
		_ = rc.Close()
		return cache.NewMemoryCache()
	}
	c.redis = rc
	return rc
}

func (c *Container) initRepositories() error {
	pool := c.DB.Pool
	c.TxManager = pkgdb.NewTxManager(pool)
	c.OrderRepo = orderRepo.NewPostgresOrderRepository(pool)
	c.PaymentRepo = paymentRepo.NewPaymentRepository(pool)
	c.CartRepo = cartRepo.NewPostgresRepository(pool)
	c.InventoryRepo = invRepo.NewPostgresRepository(pool)
	c.OutboxRepo = notifRepo.NewOutboxRepository(pool)
	return nil
}

func (c *Container) initServices() error {
	cfg := c.Config

	c.InventoryService = invService.NewInventoryService(c.InventoryRepo)
	c.CartService = cartService.NewCartService(c.CartRepo, c.InventoryService)

	c.OrderService = orderService.NewOrderService(
		c.TxManager,
		c.OrderRepo,
		c.CartRepo,
		c.InventoryService,
		c.PaymentRepo,
		c.OutboxRepo,
		orderModel.TotalsPolicy{
			FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
			FlatShippingFee:       cfg.Checkout.FlatShippingFee,
			DiscountThreshold:     cfg.Checkout.DiscountThreshold,
			DiscountRate:          cfg.Checkout.DiscountRate,
			TaxRate:               cfg.Checkout.TaxRate,
			Precision:             cfg.Checkout.Precision,
		},
		cfg.Checkout.Currency,
	)

	gw, err := c.initGateway()
	if err != nil {
		return err
	}

	c.PaymentService = paymentService.NewPaymentService(
		c.TxManager,
		c.PaymentRepo,
		c.OrderRepo,
		c.InventoryService,
		c.OutboxRepo,
		gw,
		c.Cache,
		paymentService.Settings{
			PaymentTTL:     cfg.Checkout.PaymentTTL,
			MaxAttempts:    cfg.Checkout.MaxPaymentAttempts,
			SweepBatchSize: cfg.Sweeper.BatchSize,
			AbandonedAfter: cfg.Sweeper.AbandonedAfter,
		},
	)
	return nil
}

// initGateway returns the VNPay client, or the in-process mock outside
// production when no merchant code is configured.
func (c *Container) initGateway() (gateway.Gateway, error) {
	cfg := c.Config
	if cfg.VNPay.TmnCode == "" && cfg.App.Environment != "production" {
		logger.Warn("VNPAY_TMN_CODE not set, using mock payment gateway", nil)
		return mock.New(), nil
	}

	client, err := vnpay.NewClient(vnpay.Config{
		TmnCode:    cfg.VNPay.TmnCode,
		HashSecret: cfg.VNPay.HashSecret,
		PayURL:     cfg.VNPay.PayURL,
		APIURL:     cfg.VNPay.APIURL,
		ReturnURL:  cfg.VNPay.ReturnURL,
		Timeout:    cfg.VNPay.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init vnpay client: %w", err)
	}
	return client, nil
}

func (c *Container) initHandlers() {
	c.CartHandler = cartHandler.NewCartHandler(c.CartService)
	c.InventoryHandler = invHandler.NewInventoryHandler(c.InventoryService)
	c.OrderHandler = orderHandler.NewOrderHandler(c.OrderService, c.PaymentService)
	c.PaymentHandler = paymentHandler.NewPaymentHandler(c.PaymentService)
}

// RedisAvailable reports whether the shared Redis cache is connected.
func (c *Container) RedisAvailable() bool {
	return c.redis != nil
}

// Cleanup releases the pool and the Redis connection.
func (c *Container) Cleanup() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			logger.Error("Failed to close redis", err)
		}
	}
	logger.Info("Container cleaned up", nil)
}
