package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// =====================================================
// REQUEST DTOs
// =====================================================

type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Note            *string         `json:"note,omitempty"`
}

func (r CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ShippingAddress),
		validation.Field(&r.Note, validation.NilOrNotEmpty, validation.Length(0, 500)),
	)
}

func (a ShippingAddress) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.RecipientName, validation.Required, validation.Length(1, 255)),
		validation.Field(&a.Phone, validation.Required, validation.Match(phoneRegex)),
		validation.Field(&a.Line1, validation.Required, validation.Length(1, 500)),
		validation.Field(&a.City, validation.Required, validation.Length(1, 100)),
	)
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (r CancelOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required,
			validation.In(StatusProcessing, StatusShipped, StatusDelivered)),
	)
}

type ListOrdersRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (r *ListOrdersRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 || r.Limit > 100 {
		r.Limit = 20
	}
}

// =====================================================
// RESPONSE DTOs
// =====================================================

type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	OrderCode     string          `json:"order_code"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (o *Order) ToSummary() OrderSummary {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderSummary{
		ID:            o.ID,
		OrderCode:     o.OrderCode,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Currency:      o.Currency,
		ItemCount:     count,
		CreatedAt:     o.CreatedAt,
	}
}

type ListOrdersResponse struct {
	Orders     []OrderSummary `json:"orders"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}
