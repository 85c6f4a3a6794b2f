package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	orderModel "bookstore-settlement/internal/domains/order/model"
	"bookstore-settlement/internal/domains/payment/gateway"
	"bookstore-settlement/internal/domains/payment/model"
	"bookstore-settlement/internal/shared/apperr"
	"bookstore-settlement/pkg/database"
	"bookstore-settlement/pkg/logger"
)

// =====================================================
// GATEWAY CALLBACKS
// =====================================================

type callbackOutcome struct {
	result   *model.CallbackResult
	mismatch *model.PaymentError
}

// HandleCallback verifies and applies a gateway callback. The return URL
// and the IPN carry the same signed fields and share this path; whichever
// arrives first settles the payment and the other is recorded as a
// duplicate.
//
// Every callback, valid or not, ends up in the webhook log, which is
// written after the business transaction so a rollback cannot erase it.
func (s *paymentService) HandleCallback(ctx context.Context, channel model.Channel, params map[string]string, clientIP string) (*model.CallbackResult, error) {
	data, err := s.gateway.VerifyCallback(params)
	if err != nil {
		logger.Warn("Rejected gateway callback with invalid signature", map[string]interface{}{
			"channel":   channel,
			"txn_ref":   params["vnp_TxnRef"],
			"client_ip": clientIP,
			"error":     err.Error(),
		})
		s.logWebhook(ctx, channel, params["vnp_TxnRef"], params, clientIP, false, err)
		return nil, err
	}

	out, err := database.WithTxResult(ctx, s.txm, func(tx pgx.Tx) (*callbackOutcome, error) {
		return s.applyCallbackTx(ctx, tx, channel, data)
	})
	if err == nil && out.mismatch != nil {
		err = out.mismatch
	}

	s.logWebhook(ctx, channel, data.TxnRef, params, clientIP, true, err)

	if err != nil {
		if errors.Is(err, apperr.ErrUnknownTransaction) || errors.Is(err, apperr.ErrValidation) {
			logger.Warn("Rejected gateway callback", map[string]interface{}{
				"channel":   channel,
				"txn_ref":   data.TxnRef,
				"client_ip": clientIP,
				"error":     err.Error(),
			})
		}
		return nil, err
	}

	return out.result, nil
}

func (s *paymentService) applyCallbackTx(ctx context.Context, tx pgx.Tx, channel model.Channel, data *gateway.CallbackData) (*callbackOutcome, error) {
	now := s.now()
	raw := model.StringParams(data.Raw)
	txnType := model.TxnTypePayment
	if channel == model.ChannelWebhook {
		txnType = model.TxnTypeWebhook
	}

	p, err := s.paymentRepo.GetByTxnRefForUpdateWithTx(ctx, tx, data.TxnRef)
	if err != nil {
		if errors.Is(err, model.ErrPaymentNotFound) {
			return nil, model.ErrUnknownTransaction(data.TxnRef)
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	result := &model.CallbackResult{
		PaymentCode:  p.PaymentCode,
		OrderID:      p.OrderID,
		ResponseCode: data.ResponseCode,
		Message:      model.DescribeResponseCode(data.ResponseCode),
	}

	if !data.Amount.Equal(p.Amount) {
		note := fmt.Sprintf("amount mismatch: expected %s, got %s", p.Amount, data.Amount)
		txn := model.NewTransaction(p, txnType, model.TxnStatusRejected, raw, note, now)
		txn.Amount = data.Amount
		if err := s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn); err != nil {
			return nil, err
		}
		return &callbackOutcome{mismatch: model.ErrAmountMismatch(p.Amount.String(), data.Amount.String())}, nil
	}

	if p.Status.IsTerminal() {
		note := "duplicate callback, payment already " + string(p.Status)
		if p.Status != model.StatusCompleted && p.Status != model.StatusRefunded && data.IsSuccess() {
			note = "success callback after payment was " + string(p.Status) + ", manual refund required"
			logger.ErrorWithFields("Gateway captured money for a closed payment", nil, map[string]interface{}{
				"payment_code": p.PaymentCode,
				"txn_ref":      p.TxnRef,
				"status":       p.Status,
			})
		}
		txn := model.NewTransaction(p, txnType, model.TxnStatusDuplicate, raw, note, now)
		if err := s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn); err != nil {
			return nil, err
		}
		result.Status = p.Status
		result.AlreadyProcessed = true
		return &callbackOutcome{result: result}, nil
	}

	order, err := s.orderRepo.GetByIDForUpdateWithTx(ctx, tx, p.OrderID)
	if err != nil {
		return nil, mapOrderError(err)
	}

	var note string
	if data.IsSuccess() {
		note, err = s.settleSuccess(ctx, tx, p, order, data.GatewayTransactionNo, data.BankCode, data.ResponseCode, now)
	} else {
		note, err = s.settleFailure(ctx, tx, p, order, data.GatewayTransactionNo, data.BankCode, data.ResponseCode, now)
	}
	if err != nil {
		return nil, err
	}

	status := model.TxnStatusSuccess
	if p.Status == model.StatusFailed {
		status = model.TxnStatusFailed
	}
	txn := model.NewTransaction(p, txnType, status, raw, note, now)
	if err := s.paymentRepo.AppendTransactionWithTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	result.Status = p.Status
	return &callbackOutcome{result: result}, nil
}

// settleSuccess completes the payment and marks the order PAID. Both rows
// must already be locked by tx. When the order can no longer be paid (it
// was cancelled meanwhile) the money is still recorded as captured and the
// order is left alone for an admin refund.
func (s *paymentService) settleSuccess(ctx context.Context, tx pgx.Tx, p *model.Payment, order *orderModel.Order, txnNo, bankCode, responseCode string, now time.Time) (string, error) {
	if err := p.Complete(txnNo, bankCode, responseCode, now); err != nil {
		return "", err
	}
	if err := s.paymentRepo.UpdateWithTx(ctx, tx, p); err != nil {
		return "", fmt.Errorf("update payment: %w", err)
	}

	note := ""
	if order.Status == orderModel.StatusPendingPayment {
		if err := order.MarkPaid(now); err != nil {
			return "", err
		}
		if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
			return "", fmt.Errorf("update order: %w", err)
		}
	} else {
		note = "order is " + string(order.Status) + ", manual refund required"
		logger.ErrorWithFields("Payment completed for an order that cannot be paid", nil, map[string]interface{}{
			"payment_code": p.PaymentCode,
			"order_id":     order.ID,
			"order_status": order.Status,
		})
	}

	return note, s.emitPaymentEvent(ctx, tx, model.EventPaymentSucceeded, p, order, now, nil)
}

// settleFailure fails the payment. The order stays PENDING_PAYMENT so the
// customer can try again.
func (s *paymentService) settleFailure(ctx context.Context, tx pgx.Tx, p *model.Payment, order *orderModel.Order, txnNo, bankCode, responseCode string, now time.Time) (string, error) {
	if err := p.Fail(txnNo, bankCode, responseCode, now); err != nil {
		return "", err
	}
	if err := s.paymentRepo.UpdateWithTx(ctx, tx, p); err != nil {
		return "", fmt.Errorf("update payment: %w", err)
	}

	if order.Status == orderModel.StatusPendingPayment {
		if err := order.MarkPaymentFailed(now); err != nil {
			return "", err
		}
		if err := s.orderRepo.UpdateWithTx(ctx, tx, order); err != nil {
			return "", fmt.Errorf("update order: %w", err)
		}
	}

	return model.DescribeResponseCode(responseCode),
		s.emitPaymentEvent(ctx, tx, model.EventPaymentFailed, p, order, now, nil)
}

func (s *paymentService) logWebhook(ctx context.Context, channel model.Channel, txnRef string, params map[string]string, clientIP string, valid bool, procErr error) {
	entry := &model.WebhookLog{
		ID:         uuid.New(),
		Gateway:    s.gateway.Name(),
		Channel:    channel,
		TxnRef:     txnRef,
		Params:     model.StringParams(params),
		ClientIP:   clientIP,
		IsValid:    valid,
		ReceivedAt: s.now(),
	}
	if procErr != nil {
		msg := procErr.Error()
		entry.ProcessingError = &msg
	}
	// The callback outcome must not depend on the audit write.
	if err := s.paymentRepo.LogWebhook(context.WithoutCancel(ctx), entry); err != nil {
		logger.Error("Failed to write webhook log", err)
	}
}
