package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	cartModel "bookstore-settlement/internal/domains/cart/model"
	cart "bookstore-settlement/internal/domains/cart/repository"
	invModel "bookstore-settlement/internal/domains/inventory/model"
	inventory "bookstore-settlement/internal/domains/inventory/service"
	notifModel "bookstore-settlement/internal/domains/notification/model"
	notifRepo "bookstore-settlement/internal/domains/notification/repository"
	"bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/order/repository"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/logger"
)

// =====================================================
// ORDER SERVICE IMPLEMENTATION
// =====================================================
type orderService struct {
	txm              database.TxManager
	orderRepo        repository.OrderRepository
	cartRepo         cart.RepositoryInterface
	inventoryService inventory.ServiceInterface
	payments         PendingPaymentChecker
	outbox           notifRepo.OutboxRepository
	policy           model.TotalsPolicy
	currency         string
	now              func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	txm database.TxManager,
	orderRepo repository.OrderRepository,
	cartRepo cart.RepositoryInterface,
	inventoryService inventory.ServiceInterface,
	payments PendingPaymentChecker,
	outbox notifRepo.OutboxRepository,
	policy model.TotalsPolicy,
	currency string,
) OrderService {
	return &orderService{
		txm:              txm,
		orderRepo:        orderRepo,
		cartRepo:         cartRepo,
		inventoryService: inventoryService,
		payments:         payments,
		outbox:           outbox,
		policy:           policy,
		currency:         currency,
		now:              time.Now,
	}
}

// =====================================================
// CREATE ORDER (checkout)
// =====================================================

// CreateOrder turns the user's cart into a PENDING_PAYMENT order. Prices
// are re-read from the catalog and must match the cart snapshot. Stock is
// reserved, the order inserted, the cart cleared and order.created queued in
// one transaction, so a failure leaves stock and cart untouched.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, req model.CreateOrderRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewOrderError(model.ErrCodeInvalidAddress, apperr.ErrValidation, "invalid order request", err)
	}

	lines, err := s.cartRepo.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, model.NewValidationError(model.ErrCodeCartEmpty, model.ErrCartEmpty.Error())
	}

	items, priced, err := s.priceLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	totals, err := model.CalculateTotals(priced, s.policy)
	if err != nil {
		return nil, err
	}
	// Every order settles through the gateway, which cannot charge zero.
	if !totals.Total.IsPositive() {
		return nil, model.NewValidationError(model.ErrCodeInvalidTotals, "order total must be greater than zero")
	}

	now := s.now()
	order := model.NewOrder(userID, newOrderCode(now), s.currency, totals, req.ShippingAddress, req.Note, items, now)

	err = database.WithTx(ctx, s.txm, func(tx pgx.Tx) error {
		ref := invModel.Reference{Type: "order", ID: &order.ID, Note: order.OrderCode}
		if err := s.inventoryService.ReserveItems(ctx, tx, lineQuantities(order.Items), ref); err != nil {
			return mapReserveError(err)
		}
		if err := s.orderRepo.CreateWithTx(ctx, tx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := s.cartRepo.ClearWithTx(ctx, tx, userID); err != nil {
			return err
		}

		ev, err := notifModel.NewOutboxEvent(notifModel.AggregateOrder, order.ID, notifModel.EventOrderCreated,
			notifModel.OrderEventPayload{
				OrderID:    order.ID,
				OrderCode:  order.OrderCode,
				UserID:     userID,
				Status:     string(order.Status),
				OccurredAt: now,
			}, now)
		if err != nil {
			return err
		}
		if err := s.outbox.AppendWithTx(ctx, tx, ev); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Order created", map[string]interface{}{
		"order_id":   order.ID,
		"order_code": order.OrderCode,
		"user_id":    userID,
		"total":      order.Total.String(),
		"items":      len(order.Items),
	})

	return order, nil
}

// priceLines checks every cart line against the live catalog and builds the
// order item snapshots.
func (s *orderService) priceLines(ctx context.Context, lines []cartModel.CartLine) ([]model.OrderItem, []model.PricedLine, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.BookID)
	}

	books, err := s.inventoryService.GetBooks(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load books: %w", err)
	}

	items := make([]model.OrderItem, 0, len(lines))
	priced := make([]model.PricedLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, nil, model.NewValidationError(model.ErrCodeInvalidQuantity,
				fmt.Sprintf("invalid quantity %d for book %s", l.Quantity, l.BookID))
		}

		b, ok := books[l.BookID]
		if !ok || !b.IsActive {
			return nil, nil, model.NewOrderError(model.ErrCodeBookUnavailable, apperr.ErrValidation,
				fmt.Sprintf("book %s is no longer available", l.BookID), nil)
		}
		if !b.Price.Equal(l.UnitPriceSnapshot) {
			return nil, nil, model.NewOrderError(model.ErrCodeStalePrice, apperr.ErrValidation,
				fmt.Sprintf("price of %q changed from %s to %s", b.Title, l.UnitPriceSnapshot, b.Price), nil)
		}

		items = append(items, model.OrderItem{
			BookID:    b.ID,
			Title:     b.Title,
			ISBN:      b.ISBN,
			Quantity:  l.Quantity,
			UnitPrice: b.Price,
			LineTotal: model.LineTotal(b.Price, l.Quantity),
		})
		priced = append(priced, model.PricedLine{BookID: b.ID, Quantity: l.Quantity, UnitPrice: b.Price})
	}
	return items, priced, nil
}

// =====================================================
// READS
// =====================================================

func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if order.UserID != userID {
		return nil, forbidden()
	}
	return order, nil
}

func (s *orderService) GetOrderByCode(ctx context.Context, userID uuid.UUID, code string) (*model.Order, error) {
	order, err := s.orderRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if order.UserID != userID {
		return nil, forbidden()
	}
	return order, nil
}

func (s *orderService) GetOrderAdmin(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, req model.ListOrdersRequest) (*model.ListOrdersResponse, error) {
	req.Normalize()

	orders, total, err := s.orderRepo.ListByUser(ctx, userID, req.Page, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	summaries := make([]model.OrderSummary, 0, len(orders))
	for i := range orders {
		summaries = append(summaries, orders[i].ToSummary())
	}

	return &model.ListOrdersResponse{
		Orders:     summaries,
		Total:      total,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(req.Limit))),
	}, nil
}

func (s *orderService) GetStatusHistory(ctx context.Context, userID, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return s.orderRepo.ListStatusHistory(ctx, orderID)
}

// =====================================================
// CANCEL ORDER
// =====================================================

// CancelOrder cancels an unpaid order on behalf of its owner and returns its
// stock. It is refused while a payment attempt is still open at the
// gateway: the customer may be on the payment page right now.
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID, req model.CancelOrderRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewOrderError(model.ErrCodeInvalidTransition, apperr.ErrValidation, "invalid cancel request", err)
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by customer"
	}

	order, err := database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*model.Order, error) {
		order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, orderID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if order.UserID != userID {
			return nil, forbidden()
		}

		pending, err := s.payments.HasPendingWithTx(ctx, tx, orderID)
		if err != nil {
			return nil, fmt.Errorf("check pending payment: %w", err)
		}
		if pending {
			return nil, model.NewOrderError(model.ErrCodePendingPayment, apperr.ErrInvalidTransition,
				"order has a payment in progress", nil)
		}

		now := s.now()
		if err := order.Cancel(&userID, reason, now); err != nil {
			return nil, err
		}

		ref := invModel.Reference{Type: "order", ID: &order.ID, Note: "order cancelled"}
		if err := s.inventoryService.ReleaseItems(ctx, tx, lineQuantities(order.Items), ref); err != nil {
			return nil, err
		}

		if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
			return nil, mapRepoError(err)
		}

		ev, err := notifModel.NewOutboxEvent(notifModel.AggregateOrder, order.ID, notifModel.EventOrderCancelled,
			notifModel.OrderEventPayload{
				OrderID:    order.ID,
				OrderCode:  order.OrderCode,
				UserID:     order.UserID,
				Status:     string(order.Status),
				Reason:     reason,
				OccurredAt: now,
			}, now)
		if err != nil {
			return nil, err
		}
		if err := s.outbox.AppendWithTx(ctx, tx, ev); err != nil {
			return nil, fmt.Errorf("append outbox event: %w", err)
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Order cancelled", map[string]interface{}{
		"order_id": order.ID,
		"user_id":  userID,
		"reason":   reason,
	})
	return order, nil
}

// =====================================================
// ADMIN: FULFILMENT
// =====================================================

func (s *orderService) UpdateStatus(ctx context.Context, orderID, adminID uuid.UUID, req model.UpdateStatusRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewOrderError(model.ErrCodeInvalidTransition, apperr.ErrValidation, "invalid status update", err)
	}

	order, err := database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*model.Order, error) {
		order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, orderID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		if err := order.Advance(req.Status, &adminID, s.now()); err != nil {
			return nil, err
		}
		if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
			return nil, mapRepoError(err)
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Order status updated", map[string]interface{}{
		"order_id": order.ID,
		"status":   order.Status,
		"admin_id": adminID,
	})
	return order, nil
}

// =====================================================
// HELPERS
// =====================================================

// newOrderCode returns ORD-YYYYMMDD-XXXXXX with six random hex digits.
func newOrderCode(now time.Time) string {
	id := uuid.New()
	return "ORD-" + now.Format("20060102") + "-" + strings.ToUpper(fmt.Sprintf("%x", id[:3]))
}

func lineQuantities(items []model.OrderItem) []invModel.LineQuantity {
	out := make([]invModel.LineQuantity, 0, len(items))
	for _, it := range items {
		out = append(out, invModel.LineQuantity{BookID: it.BookID, Quantity: it.Quantity})
	}
	return out
}

func mapReserveError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrOutOfStock):
		return model.NewOrderError(model.ErrCodeOutOfStock, apperr.ErrOutOfStock, "insufficient stock", err)
	case errors.Is(err, apperr.ErrNotFound):
		return model.NewOrderError(model.ErrCodeBookUnavailable, apperr.ErrValidation, "book is no longer available", err)
	default:
		return fmt.Errorf("reserve stock: %w", err)
	}
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return model.NewOrderError(model.ErrCodeOrderNotFound, apperr.ErrNotFound, "order not found", err)
	case errors.Is(err, model.ErrVersionMismatch):
		return model.NewOrderError(model.ErrCodeVersionMismatch, apperr.ErrConflict, "order was modified concurrently", err)
	default:
		return err
	}
}

func forbidden() error {
	return model.NewOrderError(model.ErrCodeUnauthorized, apperr.ErrForbidden, "order belongs to another user", nil)
}
