package vnpay

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultVersion   = "2.1.0"
	DefaultCommand   = "pay"
	DefaultLocale    = "vn"
	DefaultOrderType = "other"
	DateFormat       = "20060102150405"
)

// Config for VNPay.
type Config struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	APIURL     string
	ReturnURL  string
	Version    string
	Locale     string
	OrderType  string
	Timeout    time.Duration
	// Location is the timezone VNPay expects dates in (GMT+7).
	Location *time.Location
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Locale == "" {
		c.Locale = DefaultLocale
	}
	if c.OrderType == "" {
		c.OrderType = DefaultOrderType
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Location == nil {
		c.Location = time.FixedZone("ICT", 7*60*60)
	}
}

func (c *Config) Validate() error {
	if c.TmnCode == "" {
		return fmt.Errorf("vnpay: tmn_code is required")
	}
	if c.HashSecret == "" {
		return fmt.Errorf("vnpay: hash_secret is required")
	}
	if c.PayURL == "" {
		return fmt.Errorf("vnpay: pay_url is required")
	}
	if c.ReturnURL == "" {
		return fmt.Errorf("vnpay: return_url is required")
	}
	return nil
}

// TransactionAPIURL is the merchant_webapi endpoint used for refund and querydr.
func (c *Config) TransactionAPIURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/merchant_webapi/api/transaction"
}
