package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds the whole application configuration, populated from env.
type Config struct {
	App      AppConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Worker   WorkerConfig
	VNPay    VNPayConfig
	Checkout CheckoutConfig
	Sweeper  SweeperConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	// CallbackRateLimit is the sustained requests/second allowed per IP on
	// the public gateway callback routes.
	CallbackRateLimit float64
	CallbackBurst     int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Password string
	DB       int
	// Prefix is prepended to every cache key
	Prefix string
}

type JWTConfig struct {
	Secret string
}

type WorkerConfig struct {
	Concurrency int
	HealthPort  string
	// Outbox relay polling
	RelayInterval  time.Duration
	RelayBatchSize int
}

// =====================================================
// VNPAY CONFIGURATION
// =====================================================

type VNPayConfig struct {
	TmnCode    string // Merchant code, e.g. "DEMOV01"
	HashSecret string // Secret key for HMAC-SHA512
	PayURL     string // Redirect endpoint, e.g. https://sandbox.vnpayment.vn/paymentv2/vpcpay.html
	APIURL     string // merchant_webapi base for refund/querydr
	ReturnURL  string
	Timeout    time.Duration
}

// =====================================================
// CHECKOUT / TOTALS POLICY
// =====================================================

type CheckoutConfig struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	DiscountThreshold     decimal.Decimal
	DiscountRate          decimal.Decimal
	TaxRate               decimal.Decimal
	// Precision is the number of decimal places money is rounded to
	// (0 for VND).
	Precision          int32
	PaymentTTL         time.Duration
	MaxPaymentAttempts int
	IdempotencyTTL     time.Duration
}

type SweeperConfig struct {
	// Cron is a standard 5-field cron spec.
	Cron      string
	BatchSize int
	// AbandonedAfter is how long an order may sit in PENDING_PAYMENT with
	// no live payment before the sweeper cancels it.
	AbandonedAfter time.Duration
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:              getEnv("APP_NAME", "Bookstore Settlement"),
			Environment:       getEnv("APP_ENV", "development"),
			Port:              getEnv("APP_PORT", "8080"),
			Version:           getEnv("APP_VERSION", "1.0.0"),
			CallbackRateLimit: getEnvFloat("CALLBACK_RATE_LIMIT", 20),
			CallbackBurst:     getEnvInt("CALLBACK_RATE_BURST", 40),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "settlement"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", defaultJWTSecret),
		},
		Worker: WorkerConfig{
			Concurrency:    getEnvInt("WORKER_CONCURRENCY", 20),
			HealthPort:     getEnv("WORKER_HEALTH_PORT", "9999"),
			RelayInterval:  getEnvDuration("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatchSize: getEnvInt("OUTBOX_RELAY_BATCH", 100),
		},
		VNPay: VNPayConfig{
			TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
			HashSecret: getEnv("VNPAY_HASH_SECRET", ""),
			PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			APIURL:     getEnv("VNPAY_API_URL", "https://sandbox.vnpayment.vn"),
			ReturnURL:  getEnv("VNPAY_RETURN_URL", "http://localhost:8080/api/v1/payments/vnpay/return"),
			Timeout:    getEnvDuration("VNPAY_TIMEOUT", 10*time.Second),
		},
		Checkout: CheckoutConfig{
			Currency:              getEnv("CHECKOUT_CURRENCY", "VND"),
			FreeShippingThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", decimal.NewFromInt(500000)),
			FlatShippingFee:       getEnvDecimal("FLAT_SHIPPING_FEE", decimal.NewFromInt(30000)),
			DiscountThreshold:     getEnvDecimal("DISCOUNT_THRESHOLD", decimal.NewFromInt(1000000)),
			DiscountRate:          getEnvDecimal("DISCOUNT_RATE", decimal.RequireFromString("0.05")),
			TaxRate:               getEnvDecimal("TAX_RATE", decimal.RequireFromString("0.10")),
			Precision:             int32(getEnvInt("MONEY_PRECISION", 0)),
			PaymentTTL:            getEnvDuration("PAYMENT_TTL", 15*time.Minute),
			MaxPaymentAttempts:    getEnvInt("MAX_PAYMENT_ATTEMPTS", 3),
			IdempotencyTTL:        getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Sweeper: SweeperConfig{
			Cron:           getEnv("SWEEPER_CRON", "*/5 * * * *"),
			BatchSize:      getEnvInt("SWEEPER_BATCH_SIZE", 100),
			AbandonedAfter: getEnvDuration("ABANDONED_ORDER_AFTER", 15*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.App,
		validation.Field(&c.App.Environment, validation.Required, validation.In("development", "staging", "production", "test")),
		validation.Field(&c.App.Port, validation.Required, is.Port),
		validation.Field(&c.App.CallbackRateLimit, validation.Min(0.1)),
		validation.Field(&c.App.CallbackBurst, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if err := validation.ValidateStruct(&c.Checkout,
		validation.Field(&c.Checkout.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&c.Checkout.Precision, validation.Min(int32(0)), validation.Max(int32(4))),
		validation.Field(&c.Checkout.PaymentTTL, validation.Min(time.Minute)),
		validation.Field(&c.Checkout.MaxPaymentAttempts, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	for name, v := range map[string]decimal.Decimal{
		"FREE_SHIPPING_THRESHOLD": c.Checkout.FreeShippingThreshold,
		"FLAT_SHIPPING_FEE":       c.Checkout.FlatShippingFee,
		"DISCOUNT_THRESHOLD":      c.Checkout.DiscountThreshold,
		"DISCOUNT_RATE":           c.Checkout.DiscountRate,
		"TAX_RATE":                c.Checkout.TaxRate,
	} {
		if v.IsNegative() {
			return fmt.Errorf("checkout: %s must not be negative", name)
		}
	}
	if c.Checkout.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("checkout: DISCOUNT_RATE must be <= 1")
	}

	if _, err := c.Sweeper.Schedule(); err != nil {
		return fmt.Errorf("sweeper: invalid SWEEPER_CRON %q: %w", c.Sweeper.Cron, err)
	}
	if c.Sweeper.BatchSize < 1 {
		return fmt.Errorf("sweeper: SWEEPER_BATCH_SIZE must be positive")
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if err := validation.ValidateStruct(&c.VNPay,
			validation.Field(&c.VNPay.TmnCode, validation.Required),
			validation.Field(&c.VNPay.HashSecret, validation.Required),
			validation.Field(&c.VNPay.PayURL, validation.Required, is.URL),
			validation.Field(&c.VNPay.ReturnURL, validation.Required, is.URL),
		); err != nil {
			return fmt.Errorf("vnpay: %w", err)
		}
	}

	return nil
}

// Schedule parses the sweeper cron spec.
func (s SweeperConfig) Schedule() (cron.Schedule, error) {
	return cron.ParseStandard(s.Cron)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
