package service

import (
	"context"

	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/cart/model"
)

type ServiceInterface interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*model.CartResponse, error)
	// AddItem adds quantity to the line for the book and refreshes its price
	// snapshot from the catalog.
	AddItem(ctx context.Context, userID uuid.UUID, req model.AddItemRequest) (*model.CartResponse, error)
	RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (*model.CartResponse, error)
}
