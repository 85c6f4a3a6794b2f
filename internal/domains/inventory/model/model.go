package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookSnapshot is the catalog view the settlement engine needs.
type BookSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	ISBN          string          `json:"isbn"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
}

type MovementType string

const (
	MovementReserve    MovementType = "reserve"
	MovementRelease    MovementType = "release"
	MovementAdjustment MovementType = "adjustment"
)

// Movement is one row of the inventory_movements audit trail.
type Movement struct {
	ID            uuid.UUID    `json:"id"`
	BookID        uuid.UUID    `json:"book_id"`
	MovementType  MovementType `json:"movement_type"`
	Quantity      int          `json:"quantity"` // signed delta
	StockAfter    int          `json:"stock_after"`
	ReferenceType string       `json:"reference_type"`
	ReferenceID   *uuid.UUID   `json:"reference_id,omitempty"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Reference ties a movement to the entity that caused it.
type Reference struct {
	Type string // "order", "admin"
	ID   *uuid.UUID
	Note string
}

// LineQuantity is what ReserveItems / ReleaseItems work on.
type LineQuantity struct {
	BookID   uuid.UUID
	Quantity int
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type AdjustStockResponse struct {
	BookID        uuid.UUID `json:"book_id"`
	StockQuantity int       `json:"stock_quantity"`
}
