package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bookstore-settlement/internal/domains/inventory/model"
	"bookstore-settlement/internal/domains/inventory/repository"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/pkg/logger"
)

type inventoryService struct {
	repo repository.RepositoryInterface
}

func NewInventoryService(repo repository.RepositoryInterface) ServiceInterface {
	return &inventoryService{repo: repo}
}

func (s *inventoryService) GetSellablePrice(ctx context.Context, bookID uuid.UUID) (decimal.Decimal, error) {
	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return decimal.Zero, err
	}
	if !b.IsActive {
		return decimal.Zero, &model.InventoryError{
			Code:    model.ErrCodeBookInactive,
			Message: "book is not for sale",
			Kind:    apperr.ErrNotFound,
			BookID:  bookID,
		}
	}
	return b.Price, nil
}

func (s *inventoryService) GetStock(ctx context.Context, bookID uuid.UUID) (int, error) {
	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	return b.StockQuantity, nil
}

func (s *inventoryService) GetBooks(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]model.BookSnapshot, error) {
	return s.repo.GetBooks(ctx, bookIDs)
}

// ReserveItems reserves every line or fails. Lines are merged per book and
// applied in book id order so two checkouts touching the same books lock
// rows in the same sequence. On error the caller must roll back tx, which
// undoes the lines that already succeeded.
func (s *inventoryService) ReserveItems(ctx context.Context, tx pgx.Tx, items []model.LineQuantity, ref model.Reference) error {
	for _, it := range normalize(items) {
		if _, err := s.repo.ReserveWithTx(ctx, tx, it.BookID, it.Quantity, ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *inventoryService) ReleaseItems(ctx context.Context, tx pgx.Tx, items []model.LineQuantity, ref model.Reference) error {
	for _, it := range normalize(items) {
		if _, err := s.repo.ReleaseWithTx(ctx, tx, it.BookID, it.Quantity, ref); err != nil {
			return fmt.Errorf("release book %s: %w", it.BookID, err)
		}
	}
	return nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, bookID uuid.UUID, adminID uuid.UUID, req model.AdjustStockRequest) (*model.AdjustStockResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &model.InventoryError{
			Code:    model.ErrCodeInvalidAdjustment,
			Message: "invalid stock adjustment",
			Kind:    apperr.ErrValidation,
			BookID:  bookID,
			Err:     err,
		}
	}

	stock, err := s.repo.AdjustStock(ctx, bookID, req.Delta, model.Reference{
		Type: "admin",
		ID:   &adminID,
		Note: req.Reason,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Stock adjusted", map[string]interface{}{
		"book_id":  bookID,
		"delta":    req.Delta,
		"stock":    stock,
		"admin_id": adminID,
	})

	return &model.AdjustStockResponse{BookID: bookID, StockQuantity: stock}, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, bookID uuid.UUID, limit int) ([]model.Movement, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, bookID, limit)
}

// normalize merges duplicate books and sorts by id.
func normalize(items []model.LineQuantity) []model.LineQuantity {
	merged := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		merged[it.BookID] += it.Quantity
	}

	out := make([]model.LineQuantity, 0, len(merged))
	for id, qty := range merged {
		out = append(out, model.LineQuantity{BookID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].BookID[:], out[j].BookID[:]) < 0
	})
	return out
}
