package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cmsledger/models"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
	"cmsledger/services/ledger"
	"cmsledger/utils"

	"go.uber.org/zap"
)

const refundPrefix = "Refund: "

// Refund returns up to the unrefunded amount of a completed payment. A payment
// takes one refund, after which it is terminal.
func (s *DefaultPaymentService) Refund(ctx context.Context, req RefundRequest) (*models.RefundResult, error) {
	if req.PaymentID == "" {
		return nil, utils.NewValidationError("paymentId is required")
	}
	amount := utils.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, utils.NewValidationError("refund amount must be positive, got %v", req.Amount)
	}

	p, err := s.Payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentCompleted {
		return nil, utils.NewInvalidStateError("cannot refund payment %s in status %s", p.ID, p.Status)
	}
	if remaining := utils.SubMoney(p.Amount, p.RefundAmount); amount > remaining {
		return nil, utils.NewValidationError("refund %.2f exceeds refundable amount %.2f", amount, remaining)
	}

	// 1. Pending ledger row first so every gateway refund call is on record.
	txn, err := s.Ledger.Record(ctx, ledger.Entry{
		Type:        models.TransactionRefund,
		Amount:      amount,
		Currency:    p.Currency,
		Fees:        &models.Fees{},
		Method:      models.MethodGateway,
		PaymentID:   p.ID,
		BookingID:   p.BookingID,
		UserID:      p.UserID,
		Description: refundPrefix + req.Reason,
		Reference:   p.OrderID,
		ProcessedBy: req.ProcessedBy,
		GatewayResponse: &models.GatewayResponse{
			OrderID:   p.OrderID,
			PaymentID: p.GatewayPaymentID,
		},
	})
	if err != nil {
		return nil, err
	}

	// 2. Gateway refund, idempotent per payment.
	receipt, err := s.Gateway.Refund(ctx, p.OrderID, amount, req.Reason, "refund_"+p.ID)
	if err != nil {
		s.Logger.Error("Refund: gateway refund failed", zap.String("paymentId", p.ID), zap.Error(err))
		if ferr := s.Ledger.MarkFailed(ctx, txn, err.Error()); ferr != nil {
			s.Logger.Error("Refund: could not mark refund transaction failed", zap.String("transactionId", txn.TransactionID), zap.Error(ferr))
		}
		return nil, utils.NewGatewayError("refund", err, gateway.IsRetryable(err))
	}

	return s.settleRefund(ctx, p, txn, receipt, amount, req.Reason, req.ProcessedBy)
}

// settleRefund moves the payment completed→refunded and closes its refund row
// once the gateway has accepted the refund.
func (s *DefaultPaymentService) settleRefund(ctx context.Context, p *models.Payment, txn *models.Transaction,
	receipt *gateway.RefundReceipt, amount float64, reason, processedBy string) (*models.RefundResult, error) {
	now := s.clock()
	err := s.Tx.RunInTx(ctx, func(tc context.Context) error {
		ok, err := s.Payments.MarkRefunded(tc, p.ID, amount, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		completed := *txn
		if err := s.Ledger.MarkCompleted(tc, &completed, receipt.ID); err != nil {
			return err
		}
		*txn = completed
		return nil
	})
	if errors.Is(err, errStateChanged) {
		s.Logger.Error("Refund: payment changed after gateway refund", zap.String("paymentId", p.ID), zap.String("refundId", receipt.ID))
		if ferr := s.Ledger.MarkFailed(ctx, txn, "payment state changed during refund"); ferr != nil {
			s.Logger.Error("Refund: could not mark refund transaction failed", zap.String("transactionId", txn.TransactionID), zap.Error(ferr))
		}
		return nil, utils.NewInvalidStateError("payment %s is no longer refundable", p.ID)
	}
	if err != nil {
		return nil, err
	}

	if txn.GatewayResponse == nil {
		txn.GatewayResponse = &models.GatewayResponse{OrderID: p.OrderID, PaymentID: p.GatewayPaymentID}
	}
	txn.GatewayResponse.RefundID = receipt.ID
	txn.GatewayResponse.Status = receipt.Status
	p.Status = models.PaymentRefunded
	p.RefundAmount = amount
	p.RefundReason = reason
	p.UpdatedAt = now

	s.Logger.Info("payment refunded",
		zap.String("paymentId", p.ID), zap.Float64("amount", amount), zap.String("processedBy", processedBy))
	ev := events.NewLedgerEvent(events.PaymentRefunded, p)
	ev.TransactionID = txn.TransactionID
	s.publish(ctx, ev)
	return &models.RefundResult{Transaction: txn, Payment: p}, nil
}

// ResumeRefund finishes a refund row left pending, typically because the
// process stopped between the gateway call and the ledger write. The gateway
// call is repeated under the same idempotency key, so an already accepted
// refund is not issued twice.
func (s *DefaultPaymentService) ResumeRefund(ctx context.Context, transactionID string) error {
	txn, err := s.Ledger.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.Type != models.TransactionRefund || txn.Status != models.TransactionPending {
		return nil
	}
	p, err := s.Payments.GetByID(ctx, txn.PaymentID)
	if err != nil {
		return err
	}
	if p.Status != models.PaymentCompleted {
		s.Logger.Warn("ResumeRefund: payment no longer refundable",
			zap.String("transactionId", txn.TransactionID), zap.String("paymentId", p.ID), zap.String("status", string(p.Status)))
		return s.Ledger.MarkFailed(ctx, txn, fmt.Sprintf("payment is %s", p.Status))
	}

	reason := strings.TrimPrefix(txn.Description, refundPrefix)
	receipt, err := s.Gateway.Refund(ctx, p.OrderID, txn.Amount, reason, "refund_"+p.ID)
	if err != nil {
		if gateway.IsRetryable(err) {
			return utils.NewGatewayError("refund", err, true)
		}
		s.Logger.Error("ResumeRefund: gateway refund failed", zap.String("paymentId", p.ID), zap.Error(err))
		if ferr := s.Ledger.MarkFailed(ctx, txn, err.Error()); ferr != nil {
			return ferr
		}
		return utils.NewGatewayError("refund", err, false)
	}

	_, err = s.settleRefund(ctx, p, txn, receipt, txn.Amount, reason, txn.ProcessedBy)
	return err
}
