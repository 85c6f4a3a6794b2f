package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	notifModel "bookstore-settlement/internal/domains/notification/model"
	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/logger"
)

// =====================================================
// REFUND (admin)
// =====================================================

// Refund pays back a COMPLETED payment, fully when req.Amount is nil.
// Both rows stay locked across the gateway call; if the gateway fails the
// transaction rolls back and nothing changes. There is no automatic retry.
func (s *paymentService) Refund(ctx context.Context, req model.RefundRequest, clientIP string) (*model.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewPaymentError(model.ErrCodeInvalidRequest, apperr.ErrValidation, "invalid refund request", err)
	}

	result, err := database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*model.RefundResult, error) {
		p, err := s.paymentRepo.GetByCodeForUpdateWithTx(ctx, tx, req.PaymentCode)
		if err != nil {
			return nil, mapPaymentError(err, req.PaymentCode)
		}
		if p.Status != model.StatusCompleted {
			return nil, model.ErrInvalidTransition(p.Status, model.StatusRefunded)
		}

		amount := p.Amount
		if req.Amount != nil {
			amount = *req.Amount
		}
		if !amount.IsPositive() || amount.GreaterThan(p.Amount) {
			return nil, model.NewPaymentError(model.ErrCodeInvalidRefundAmount, apperr.ErrValidation,
				fmt.Sprintf("refund amount must be in (0, %s]", p.Amount), nil)
		}
		full := p.IsFullRefund(amount)

		order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, p.OrderID)
		if err != nil {
			return nil, mapOrderError(err)
		}
		if full && !order.CanRefundFully() {
			return nil, orderModel.NewTransitionError(order.Status, orderModel.StatusRefunded)
		}
		if !full && !order.PaymentStatus.CanTransitionTo(orderModel.PaymentStatusPartiallyRefunded) {
			return nil, model.NewPaymentError(model.ErrCodeInvalidTransition, apperr.ErrInvalidTransition,
				"order payment status "+string(order.PaymentStatus)+" cannot be partially refunded", nil)
		}

		gwRes, err := s.gateway.Refund(ctx, gateway.RefundRequest{
			TxnRef:               p.TxnRef,
			GatewayTransactionNo: deref(p.GatewayTransactionNo),
			Amount:               amount,
			Full:                 full,
			TransactionDate:      p.CreatedAt,
			CreatedBy:            req.AdminID.String(),
			Reason:               req.Reason,
			ClientIP:             clientIP,
		})
		if err != nil {
			if !errors.Is(err, apperr.ErrGatewayUnavailable) {
				err = model.ErrGatewayUnavailable("refund", err)
			}
			return nil, err
		}

		now := s.now()
		if err := p.Refund(amount, now); err != nil {
			return nil, err
		}
		if err := s.paymentRepo.UpdateWithTx(ctx, tx, p); err != nil {
			return nil, fmt.Errorf("update payment: %w", err)
		}

		wasUnshipped := order.Status == orderModel.StatusPaid
		if err := order.MarkRefunded(full, &req.AdminID, req.Reason, now); err != nil {
			return nil, err
		}
		if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
		if full && wasUnshipped {
			if err := s.releaseOrderStock(ctx, tx, order, "order refunded"); err != nil {
				return nil, err
			}
		}

		txn := model.NewTransaction(p, model.TxnTypeRefund, model.TxnStatusSuccess, gwRes.Raw, req.Reason, now)
		txn.Amount = amount
		if gwRes.ResponseCode != "" {
			code := gwRes.ResponseCode
			txn.ResponseCode = &code
		}
		if err := s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn); err != nil {
			return nil, err
		}

		if err := s.emitPaymentEvent(ctx, tx, model.EventPaymentRefunded, p, order, now, func(pl *notifModel.PaymentEventPayload) {
			refunded := amount
			pl.RefundedAmount = &refunded
		}); err != nil {
			return nil, err
		}

		return &model.RefundResult{
			Payment:             p,
			RefundedAmount:      amount,
			FullRefund:          full,
			GatewayRefundNo:     gwRes.RefundNo,
			GatewayResponseCode: gwRes.ResponseCode,
		}, nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrGatewayUnavailable) {
			logger.ErrorWithFields("Refund failed at gateway", err, map[string]interface{}{
				"payment_code": req.PaymentCode,
				"admin_id":     req.AdminID,
			})
		}
		return nil, err
	}

	logger.Info("Payment refunded", map[string]interface{}{
		"payment_code": req.PaymentCode,
		"amount":       result.RefundedAmount.String(),
		"full":         result.FullRefund,
		"admin_id":     req.AdminID,
	})
	return result, nil
}

// =====================================================
// STATUS CHECK (admin reconciliation)
// =====================================================

// CheckStatus asks the gateway about a payment and settles it when it is
// still PENDING and the gateway has a definitive answer. The gateway is
// queried before any row is locked.
func (s *paymentService) CheckStatus(ctx context.Context, paymentCode string, clientIP string) (*model.StatusCheckResult, error) {
	current, err := s.paymentRepo.GetByCode(ctx, paymentCode)
	if err != nil {
		return nil, mapPaymentError(err, paymentCode)
	}

	gwRes, err := s.gateway.QueryStatus(ctx, gateway.StatusQuery{
		TxnRef:          current.TxnRef,
		TransactionDate: current.CreatedAt,
		ClientIP:        clientIP,
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrGatewayUnavailable) {
			err = model.ErrGatewayUnavailable("querydr", err)
		}
		return nil, err
	}

	return database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*model.StatusCheckResult, error) {
		p, err := s.paymentRepo.GetByCodeForUpdateWithTx(ctx, tx, paymentCode)
		if err != nil {
			return nil, mapPaymentError(err, paymentCode)
		}
		now := s.now()
		res := &model.StatusCheckResult{
			Payment:       p,
			GatewayStatus: gwRes.TransactionStatus,
			ResponseCode:  gwRes.ResponseCode,
		}

		note := "gateway status " + gwRes.TransactionStatus
		amountOK := gwRes.Amount.IsZero() || gwRes.Amount.Equal(p.Amount)
		if p.Status == model.StatusPending && (gwRes.IsPaid() || gwRes.IsFailed()) {
			if !amountOK {
				note = fmt.Sprintf("gateway amount %s does not match %s, not applied", gwRes.Amount, p.Amount)
			} else {
				order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, p.OrderID)
				if err != nil {
					return nil, mapOrderError(err)
				}
				var settleNote string
				if gwRes.IsPaid() {
					settleNote, err = s.settleSuccess(ctx, tx, p, order, gwRes.GatewayTransactionNo, "", model.VNPayCodeSuccess, now)
				} else {
					settleNote, err = s.settleFailure(ctx, tx, p, order, gwRes.GatewayTransactionNo, "", gwRes.TransactionStatus, now)
				}
				if err != nil {
					return nil, err
				}
				if settleNote != "" {
					note += "; " + settleNote
				}
				res.Changed = true
			}
		}

		status := model.TxnStatusPending
		switch {
		case gwRes.IsPaid():
			status = model.TxnStatusSuccess
		case gwRes.IsFailed():
			status = model.TxnStatusFailed
		}
		txn := model.NewTransaction(p, model.TxnTypeStatusCheck, status, gwRes.Raw, note, now)
		if gwRes.ResponseCode != "" {
			code := gwRes.ResponseCode
			txn.ResponseCode = &code
		}
		if err := s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn); err != nil {
			return nil, err
		}
		return res, nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
