package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const MaxQuantityPerLine = 100

// CartLine is one book in a user's cart. UnitPriceSnapshot is the sale
// price at the time the line was added; checkout rejects the cart if the
// catalog price moved since.
type CartLine struct {
	UserID            uuid.UUID       `json:"user_id"`
	BookID            uuid.UUID       `json:"book_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price_snapshot"`
	AddedAt           time.Time       `json:"added_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type AddItemRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BookID, validation.Required, is.UUID),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(MaxQuantityPerLine)),
	)
}

type CartResponse struct {
	Lines     []CartLine      `json:"lines"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func NewCartResponse(lines []CartLine) CartResponse {
	resp := CartResponse{Lines: lines, Subtotal: decimal.Zero}
	if resp.Lines == nil {
		resp.Lines = []CartLine{}
	}
	for _, l := range lines {
		resp.ItemCount += l.Quantity
		resp.Subtotal = resp.Subtotal.Add(l.Subtotal())
	}
	return resp
}
