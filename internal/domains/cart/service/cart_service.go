package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookstore-settlement/internal/domains/cart/model"
	"bookstore-settlement/internal/domains/cart/repository"
	inventory "bookstore-settlement/internal/domains/inventory/service"
	"bookstore-settlement/internal/shared/apperr"
)

type cartService struct {
	repo      repository.RepositoryInterface
	inventory inventory.ServiceInterface
}

func NewCartService(repo repository.RepositoryInterface, inv inventory.ServiceInterface) ServiceInterface {
	return &cartService{repo: repo, inventory: inv}
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*model.CartResponse, error) {
	lines, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	resp := model.NewCartResponse(lines)
	return &resp, nil
}

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req model.AddItemRequest) (*model.CartResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	bookID := uuid.MustParse(req.BookID)

	price, err := s.inventory.GetSellablePrice(ctx, bookID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, model.NewCartError(model.ErrCodeBookUnavailable, apperr.ErrNotFound, "book is not available", err)
		}
		return nil, err
	}

	lines, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	qty := req.Quantity
	for _, l := range lines {
		if l.BookID == bookID {
			qty += l.Quantity
			break
		}
	}
	if qty > model.MaxQuantityPerLine {
		return nil, model.NewCartError(model.ErrCodeQuantityLimit, apperr.ErrValidation,
			fmt.Sprintf("at most %d copies per book", model.MaxQuantityPerLine), nil)
	}

	line := &model.CartLine{
		UserID:            userID,
		BookID:            bookID,
		Quantity:          qty,
		UnitPriceSnapshot: price,
	}
	if err := s.repo.UpsertLine(ctx, line); err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}
	return s.GetCart(ctx, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (*model.CartResponse, error) {
	if err := s.repo.RemoveLine(ctx, userID, bookID); err != nil {
		if errors.Is(err, model.ErrCartLineNotFound) {
			return nil, model.NewCartError(model.ErrCodeLineNotFound, apperr.ErrNotFound, "book is not in the cart", err)
		}
		return nil, fmt.Errorf("remove cart line: %w", err)
	}
	return s.GetCart(ctx, userID)
}
