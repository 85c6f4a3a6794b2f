package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bookstore-settlement/internal/shared/apperr"
)

// =====================================================
// ORDER ENTITY
// =====================================================

// Order is the aggregate root. Status fields change only through the
// transition methods below; each successful transition is recorded in
// PendingHistory so the repository can persist it in the same tx.
type Order struct {
	ID        uuid.UUID `json:"id"`
	OrderCode string    `json:"order_code"`
	UserID    uuid.UUID `json:"user_id"`

	SubTotal    decimal.Decimal `json:"sub_total"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	ShippingAddress ShippingAddress `json:"shipping_address"`
	Note            *string         `json:"note,omitempty"`

	Items []OrderItem `json:"items,omitempty"`

	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	ShippedAt          *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time `json:"delivered_at,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PendingHistory []OrderStatusHistory `json:"-"`
}

// OrderItem is a snapshot of the book taken at checkout. It never follows
// later catalog changes.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	BookID    uuid.UUID       `json:"book_id"`
	Title     string          `json:"title"`
	ISBN      string          `json:"isbn"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	CreatedAt time.Time       `json:"created_at"`
}

type ShippingAddress struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Line1         string `json:"line1"`
	Ward          string `json:"ward,omitempty"`
	District      string `json:"district,omitempty"`
	City          string `json:"city"`
}

type OrderStatusHistory struct {
	ID         uuid.UUID  `json:"id"`
	OrderID    uuid.UUID  `json:"order_id"`
	FromStatus *Status    `json:"from_status,omitempty"`
	ToStatus   Status     `json:"to_status"`
	ChangedBy  *uuid.UUID `json:"changed_by,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewOrder builds a PENDING_PAYMENT order from priced lines and records the
// initial history row.
func NewOrder(userID uuid.UUID, code, currency string, totals Totals, addr ShippingAddress, note *string, items []OrderItem, now time.Time) *Order {
	o := &Order{
		ID:              uuid.New(),
		OrderCode:       code,
		UserID:          userID,
		SubTotal:        totals.SubTotal,
		ShippingFee:     totals.ShippingFee,
		Discount:        totals.Discount,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Currency:        currency,
		Status:          StatusPendingPayment,
		PaymentStatus:   PaymentStatusUnpaid,
		ShippingAddress: addr,
		Note:            note,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, it := range items {
		it.OrderID = o.ID
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		o.Items = append(o.Items, it)
	}
	actor := userID
	o.PendingHistory = append(o.PendingHistory, OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   o.ID,
		ToStatus:  StatusPendingPayment,
		ChangedBy: &actor,
		Reason:    "order placed",
		CreatedAt: now,
	})
	return o
}

// =====================================================
// STATE TRANSITIONS
// =====================================================

func (o *Order) transition(to Status, actor *uuid.UUID, reason string, now time.Time) error {
	if !o.Status.CanTransitionTo(to) {
		return NewTransitionError(o.Status, to)
	}
	from := o.Status
	o.Status = to
	o.UpdatedAt = now
	o.PendingHistory = append(o.PendingHistory, OrderStatusHistory{
		ID:         uuid.New(),
		OrderID:    o.ID,
		FromStatus: &from,
		ToStatus:   to,
		ChangedBy:  actor,
		Reason:     reason,
		CreatedAt:  now,
	})
	return nil
}

func (o *Order) setPaymentStatus(to PaymentStatus) error {
	if !o.PaymentStatus.CanTransitionTo(to) {
		return NewOrderError(ErrCodeInvalidTransition, apperr.ErrInvalidTransition,
			"cannot move payment status from "+string(o.PaymentStatus)+" to "+string(to), nil)
	}
	o.PaymentStatus = to
	return nil
}

// MarkPaid moves PENDING_PAYMENT → PAID after a completed payment.
func (o *Order) MarkPaid(now time.Time) error {
	if !o.Status.CanTransitionTo(StatusPaid) {
		return NewTransitionError(o.Status, StatusPaid)
	}
	if err := o.setPaymentStatus(PaymentStatusPaid); err != nil {
		return err
	}
	paidAt := now
	o.PaidAt = &paidAt
	return o.transition(StatusPaid, nil, "payment completed", now)
}

// MarkPaymentFailed records a failed attempt. The order stays in
// PENDING_PAYMENT so the customer can retry.
func (o *Order) MarkPaymentFailed(now time.Time) error {
	if o.Status != StatusPendingPayment {
		return NewTransitionError(o.Status, o.Status)
	}
	if err := o.setPaymentStatus(PaymentStatusFailed); err != nil {
		return err
	}
	o.UpdatedAt = now
	return nil
}

// Cancel is only legal while nothing has been paid.
func (o *Order) Cancel(actor *uuid.UUID, reason string, now time.Time) error {
	if o.PaymentStatus == PaymentStatusPaid {
		return NewTransitionError(o.Status, StatusCancelled)
	}
	if err := o.transition(StatusCancelled, actor, reason, now); err != nil {
		return err
	}
	cancelledAt := now
	o.CancelledAt = &cancelledAt
	o.CancellationReason = &reason
	return nil
}

// Advance applies a fulfilment transition (PROCESSING, SHIPPED, DELIVERED).
func (o *Order) Advance(to Status, actor *uuid.UUID, now time.Time) error {
	switch to {
	case StatusProcessing, StatusShipped, StatusDelivered:
	default:
		return NewTransitionError(o.Status, to)
	}
	if err := o.transition(to, actor, "", now); err != nil {
		return err
	}
	switch to {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
	return nil
}

// CanRefundFully reports whether a full refund may move the order to
// REFUNDED. Checked before calling the gateway.
func (o *Order) CanRefundFully() bool {
	return o.Status.CanTransitionTo(StatusRefunded) &&
		o.PaymentStatus.CanTransitionTo(PaymentStatusRefunded)
}

// MarkRefunded applies a successful refund. full=false leaves the order
// status alone and only marks the payment side PARTIALLY_REFUNDED.
func (o *Order) MarkRefunded(full bool, actor *uuid.UUID, reason string, now time.Time) error {
	if !full {
		if err := o.setPaymentStatus(PaymentStatusPartiallyRefunded); err != nil {
			return err
		}
		o.UpdatedAt = now
		return nil
	}

	if !o.CanRefundFully() {
		return NewTransitionError(o.Status, StatusRefunded)
	}
	if err := o.setPaymentStatus(PaymentStatusRefunded); err != nil {
		return err
	}
	refundedAt := now
	o.RefundedAt = &refundedAt
	return o.transition(StatusRefunded, actor, reason, now)
}

// TakeHistory returns and clears the transitions recorded since the last call.
func (o *Order) TakeHistory() []OrderStatusHistory {
	h := o.PendingHistory
	o.PendingHistory = nil
	return h
}
