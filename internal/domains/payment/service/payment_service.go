package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	invModel "bookstore-settlement/internal/domains/inventory/model"
	inventory "bookstore-settlement/internal/domains/inventory/service"
	notifModel "bookstore-settlement/internal/domains/notification/model"
	notifRepo "bookstore-settlement/internal/domains/notification/repository"
	orderModel "bookstore-settlement/internal/domains/order/model"
	orderRepo "bookstore-settlement/internal/domains/order/repository"
	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/domains/payment/repository"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/pkg/cache"
	"bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/logger"
)

// =====================================================
// PAYMENT SERVICE IMPLEMENTATION
// =====================================================

// Every operation that touches both rows locks the payment first and the
// order second.
type paymentService struct {
	txm              database.TxManager
	paymentRepo      repository.PaymentRepository
	orderRepo        orderRepo.OrderRepository
	inventoryService inventory.ServiceInterface
	outbox           notifRepo.OutboxRepository
	gateway          gateway.Gateway
	cache            cache.Cache
	settings         Settings
	now              func() time.Time
}

func NewPaymentService(
	txm database.TxManager,
	paymentRepo repository.PaymentRepository,
	orderRepo orderRepo.OrderRepository,
	inventoryService inventory.ServiceInterface,
	outbox notifRepo.OutboxRepository,
	gw gateway.Gateway,
	c cache.Cache,
	settings Settings,
) PaymentService {
	settings.applyDefaults()
	return &paymentService{
		txm:              txm,
		paymentRepo:      paymentRepo,
		orderRepo:        orderRepo,
		inventoryService: inventoryService,
		outbox:           outbox,
		gateway:          gw,
		cache:            c,
		settings:         settings,
		now:              time.Now,
	}
}

// =====================================================
// CREATE PAYMENT
// =====================================================

type createOutcome struct {
	payment *model.Payment
	order   *orderModel.Order
	reused  bool
}

// CreatePayment opens a payment attempt for a PENDING_PAYMENT order and
// returns the gateway redirect URL. A live PENDING attempt is handed back
// instead of creating a second one, so retries from the client are safe.
func (s *paymentService) CreatePayment(ctx context.Context, userID uuid.UUID, req model.CreatePaymentRequest, clientIP string) (*model.CreatePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidRequest, apperr.ErrValidation, "invalid payment request", err)
	}
	orderID := uuid.MustParse(req.OrderID)

	out, err := database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*createOutcome, error) {
		return s.createPaymentTx(ctx, tx, userID, orderID)
	})
	if errors.Is(err, model.ErrPendingPaymentExists) {
		// Lost the insert race to a concurrent request; its payment is
		// committed now and will be picked up as reusable.
		out, err = database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*createOutcome, error) {
			return s.createPaymentTx(ctx, tx, userID, orderID)
		})
		if errors.Is(err, model.ErrPendingPaymentExists) {
			return nil, model.NewPaymentError(model.ErrCodePendingExists, apperr.ErrConflict,
				"order already has a payment in progress", err)
		}
	}
	if err != nil {
		return nil, err
	}

	p := out.payment
	url, err := s.gateway.BuildRedirect(ctx, gateway.RedirectRequest{
		TxnRef:    p.TxnRef,
		Amount:    p.Amount,
		Currency:  p.Currency,
		OrderInfo: "Thanh toan don hang " + out.order.OrderCode,
		ClientIP:  clientIP,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return nil, model.ErrGatewayUnavailable("build redirect", err)
	}

	logger.Info("Payment created", map[string]interface{}{
		"payment_code": p.PaymentCode,
		"txn_ref":      p.TxnRef,
		"order_id":     p.OrderID,
		"amount":       p.Amount.String(),
		"reused":       out.reused,
	})

	return &model.CreatePaymentResponse{Payment: p, PaymentURL: url, Reused: out.reused}, nil
}

func (s *paymentService) createPaymentTx(ctx context.Context, tx pgx.Tx, userID, orderID uuid.UUID) (*createOutcome, error) {
	now := s.now()

	existing, err := s.paymentRepo.FindPendingByOrderForUpdateWithTx(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find pending payment: %w", err)
	}

	order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if order.UserID != userID {
		return nil, model.NewPaymentError(model.ErrCodeUnauthorized, apperr.ErrForbidden, "order belongs to another user", nil)
	}
	if order.Status != orderModel.StatusPendingPayment {
		return nil, model.NewPaymentError(model.ErrCodeOrderNotPayable, apperr.ErrInvalidTransition,
			fmt.Sprintf("order %s is %s and cannot be paid", order.OrderCode, order.Status), nil)
	}
	if !order.Total.IsPositive() {
		return nil, model.NewPaymentError(model.ErrCodeOrderNotPayable, apperr.ErrInvalidTransition,
			fmt.Sprintf("order %s has no amount to pay", order.OrderCode), nil)
	}

	if existing != nil {
		if existing.IsLive(now) {
			return &createOutcome{payment: existing, order: order, reused: true}, nil
		}
		// Past its TTL but not swept yet: close it here so a new attempt
		// can take the pending slot.
		if err := s.expirePayment(ctx, tx, existing, now, "expired on new payment attempt"); err != nil {
			return nil, err
		}
	}

	count, err := s.paymentRepo.CountByOrderWithTx(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("count payments: %w", err)
	}
	if count >= s.settings.MaxAttempts {
		return nil, model.NewPaymentError(model.ErrCodeRetryLimitExceeded, apperr.ErrLimit,
			fmt.Sprintf("order reached the limit of %d payment attempts", s.settings.MaxAttempts), nil)
	}

	p := &model.Payment{
		ID:             uuid.New(),
		PaymentCode:    newPaymentCode(now),
		OrderID:        order.ID,
		UserID:         userID,
		Gateway:        s.gateway.Name(),
		Amount:         order.Total,
		Currency:       order.Currency,
		TxnRef:         newTxnRef(now),
		Status:         model.StatusPending,
		RefundedAmount: decimal.Zero,
		ExpiresAt:      now.Add(s.settings.PaymentTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.paymentRepo.CreateWithTx(ctx, tx, p); err != nil {
		return nil, err
	}

	return &createOutcome{payment: p, order: order}, nil
}

// expirePayment moves a PENDING payment past its TTL to EXPIRED and
// records the TIMEOUT audit row. The order is left alone.
func (s *paymentService) expirePayment(ctx context.Context, tx pgx.Tx, p *model.Payment, now time.Time, note string) error {
	if err := p.Expire(now); err != nil {
		return err
	}
	if err := s.paymentRepo.UpdateWithTx(ctx, tx, p); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	txn := model.NewTransaction(p, model.TxnTypeTimeout, model.TxnStatusFailed, nil, note, now)
	return s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn)
}

// =====================================================
// READS
// =====================================================

func (s *paymentService) GetPayment(ctx context.Context, userID uuid.UUID, paymentCode string) (*model.Payment, error) {
	p, err := s.paymentRepo.GetByCode(ctx, paymentCode)
	if err != nil {
		return nil, mapPaymentError(err, paymentCode)
	}
	if p.UserID != userID {
		return nil, model.NewPaymentError(model.ErrCodeUnauthorized, apperr.ErrForbidden, "payment belongs to another user", nil)
	}
	return p, nil
}

func (s *paymentService) ListOrderPayments(ctx context.Context, userID, orderID uuid.UUID) ([]model.Payment, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	if order.UserID != userID {
		return nil, model.NewPaymentError(model.ErrCodeUnauthorized, apperr.ErrForbidden, "order belongs to another user", nil)
	}
	return s.paymentRepo.ListByOrder(ctx, orderID)
}

func (s *paymentService) ListTransactions(ctx context.Context, paymentCode string) ([]model.PaymentTransaction, error) {
	p, err := s.paymentRepo.GetByCode(ctx, paymentCode)
	if err != nil {
		return nil, mapPaymentError(err, paymentCode)
	}
	return s.paymentRepo.ListTransactions(ctx, p.ID)
}

// =====================================================
// HELPERS
// =====================================================

func (s *paymentService) emitPaymentEvent(ctx context.Context, tx pgx.Tx, eventType string, p *model.Payment, order *orderModel.Order, now time.Time, mutate func(*notifModel.PaymentEventPayload)) error {
	payload := notifModel.PaymentEventPayload{
		PaymentCode: p.PaymentCode,
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		OccurredAt:  now,
	}
	if order != nil {
		payload.OrderCode = order.OrderCode
	}
	if p.ResponseCode != nil {
		payload.ResponseCode = *p.ResponseCode
	}
	if mutate != nil {
		mutate(&payload)
	}

	ev, err := notifModel.NewOutboxEvent(notifModel.AggregatePayment, p.ID, eventType, payload, now)
	if err != nil {
		return err
	}
	if err := s.outbox.AppendWithTx(ctx, tx, ev); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

func (s *paymentService) releaseOrderStock(ctx context.Context, tx pgx.Tx, order *orderModel.Order, note string) error {
	items := make([]invModel.LineQuantity, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, invModel.LineQuantity{BookID: it.BookID, Quantity: it.Quantity})
	}
	ref := invModel.Reference{Type: "order", ID: &order.ID, Note: note}
	return s.inventoryService.ReleaseItems(ctx, tx, items, ref)
}

func mapOrderError(err error) error {
	if errors.Is(err, orderModel.ErrOrderNotFound) {
		return model.NewPaymentError(model.ErrCodeOrderNotFound, apperr.ErrNotFound, "order not found", err)
	}
	return err
}

func mapPaymentError(err error, ref string) error {
	if errors.Is(err, model.ErrPaymentNotFound) {
		return model.ErrNotFound(ref)
	}
	return err
}

// newPaymentCode returns PAY-YYYYMMDD-XXXXXXXX.
func newPaymentCode(now time.Time) string {
	id := uuid.New()
	return "PAY-" + now.Format("20060102") + "-" + strings.ToUpper(fmt.Sprintf("%x", id[:4]))
}

// newTxnRef is alphanumeric only; VNPay rejects other characters in
// vnp_TxnRef.
func newTxnRef(now time.Time) string {
	id := uuid.New()
	return now.Format("060102150405") + strings.ToUpper(fmt.Sprintf("%x", id[:5]))
}
