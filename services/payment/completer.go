package payment

import (
	"context"
	"errors"
	"fmt"

	paymentRepo "cmsledger/database/repository/payment"
	"cmsledger/models"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
	"cmsledger/services/ledger"
	"cmsledger/utils"

	"go.uber.org/zap"
)

// CompletePayment verifies a gateway callback and settles the payment.
// Replays of the same (orderId, paymentId) return the stored result.
func (s *DefaultPaymentService) CompletePayment(ctx context.Context, req CompleteRequest) (*models.CompletionResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		return nil, utils.NewValidationError("orderId, paymentId and signature are required")
	}
	if !s.Verifier.Verify(req.OrderID, req.PaymentID, req.Signature) {
		s.Logger.Warn("CompletePayment: signature mismatch",
			zap.String("orderId", req.OrderID), zap.String("userId", req.UserID))
		return nil, utils.NewInvalidSignatureError(req.OrderID)
	}
	return s.completeVerified(ctx, req.OrderID, req.PaymentID, req.Signature, req.UserID)
}

// completeVerified collapses concurrent completions of one order in this process.
// Across processes the conditional status update decides the winner. The shared
// work is detached from the first caller's cancellation so a disconnect does not
// fail every waiter.
func (s *DefaultPaymentService) completeVerified(ctx context.Context, orderID, paymentID, signature, userID string) (*models.CompletionResult, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.inflight.Do("complete_payment_"+orderID, func() (interface{}, error) {
		return s.complete(shared, orderID, paymentID, signature)
	})
	if err != nil {
		return nil, err
	}
	result := v.(*models.CompletionResult)
	if userID != "" && result.Payment.UserID != userID {
		return nil, utils.NewNotFoundError("payment", orderID)
	}
	return result, nil
}

func (s *DefaultPaymentService) complete(ctx context.Context, orderID, paymentID, signature string) (*models.CompletionResult, error) {
	if cached, ok := s.cachedCompletion(ctx, orderID); ok && cached.Payment.GatewayPaymentID == paymentID {
		return cached, nil
	}

	p, err := s.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case models.PaymentPending:
	case models.PaymentCompleted:
		return s.replayCompletion(ctx, p, paymentID)
	default:
		return nil, utils.NewInvalidStateError("payment for order %s is %s", orderID, p.Status)
	}

	result, txn, err := s.settle(ctx, p, paymentID, signature)
	if errors.Is(err, errStateChanged) {
		// Someone else moved the payment; answer with whatever they produced.
		current, gerr := s.Payments.GetByOrderID(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == models.PaymentCompleted {
			return s.replayCompletion(ctx, current, paymentID)
		}
		return nil, utils.NewInvalidStateError("payment for order %s is %s", orderID, current.Status)
	}
	if err != nil {
		s.Logger.Error("CompletePayment: unit of work rolled back", zap.String("orderId", orderID), zap.Error(err))
		return nil, err
	}

	s.Logger.Info("payment completed",
		zap.String("orderId", orderID),
		zap.String("paymentId", p.ID),
		zap.String("invoiceNumber", result.Invoice.InvoiceNumber),
		zap.String("transactionId", txn.TransactionID))
	s.afterCompletion(ctx, result, txn)
	return result, nil
}

// settle runs the pending→completed unit of work: payment, ledger row, invoice, booking.
func (s *DefaultPaymentService) settle(ctx context.Context, p *models.Payment, paymentID, signature string) (*models.CompletionResult, *models.Transaction, error) {
	fees := s.Ledger.ComputeFees(p.Amount)
	var (
		result *models.CompletionResult
		txn    *models.Transaction
	)

	err := s.Tx.RunInTx(ctx, func(tc context.Context) error {
		// The closure may run more than once, so it works on a copy.
		paid := *p
		now := s.clock()

		// 1. Conditional pending→completed update.
		ok, err := s.Payments.MarkCompleted(tc, paid.ID, paymentRepo.CompletionUpdate{
			GatewayPaymentID: paymentID,
			Signature:        signature,
			TransactionFee:   fees.Total,
			CompletedAt:      now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		paid.Status = models.PaymentCompleted
		paid.GatewayPaymentID = paymentID
		paid.GatewaySignature = signature
		paid.TransactionFee = fees.Total
		paid.CompletedAt = &now
		paid.UpdatedAt = now

		booking, err := s.Bookings.GetByID(tc, paid.BookingID)
		if err != nil {
			return err
		}
		user, err := s.Users.GetByID(tc, paid.UserID)
		if err != nil {
			return err
		}

		// 2. Ledger row.
		t, err := s.Ledger.Record(tc, ledger.Entry{
			Type:        models.TransactionPayment,
			Amount:      paid.Amount,
			Currency:    paid.Currency,
			Fees:        &fees,
			Method:      models.MethodGateway,
			PaymentID:   paid.ID,
			BookingID:   paid.BookingID,
			UserID:      paid.UserID,
			Description: fmt.Sprintf("Payment for booking %s", booking.TrackingID),
			Reference:   paid.OrderID,
			GatewayResponse: &models.GatewayResponse{
				OrderID:   paid.OrderID,
				PaymentID: paymentID,
				Status:    "captured",
			},
		})
		if err != nil {
			return err
		}
		if err := s.Ledger.MarkCompleted(tc, t, paymentID); err != nil {
			return err
		}

		// 3. Invoice snapshot. Rendering is enqueued after commit.
		inv, err := s.Invoicer.Build(tc, &paid, booking, user)
		if err != nil {
			return err
		}

		// 4. Booking last, once the invoice id is known.
		booking, err = s.Bookings.SetPaymentOutcome(tc, booking.ID, models.BookingStatusPendingPickup, models.PaymentCompleted, inv.ID)
		if err != nil {
			return err
		}

		result = &models.CompletionResult{Payment: &paid, Booking: booking, Invoice: inv}
		txn = t
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, txn, nil
}

// replayCompletion rebuilds the aggregate of an already completed payment.
func (s *DefaultPaymentService) replayCompletion(ctx context.Context, p *models.Payment, paymentID string) (*models.CompletionResult, error) {
	if p.GatewayPaymentID != paymentID {
		s.Logger.Warn("CompletePayment: order already settled by another payment",
			zap.String("orderId", p.OrderID), zap.String("paymentId", paymentID))
		return nil, utils.NewInvalidStateError("order %s is already completed by a different payment", p.OrderID)
	}
	booking, err := s.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	inv, err := s.Invoices.GetByPaymentID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("completed payment %s has no invoice: %w", p.ID, err)
	}
	s.Logger.Info("CompletePayment: replaying completed payment", zap.String("orderId", p.OrderID))
	result := &models.CompletionResult{Payment: p, Booking: booking, Invoice: inv}
	s.storeCompletion(ctx, result)
	return result, nil
}

// afterCompletion runs post-commit side effects. None of them can undo the completion.
func (s *DefaultPaymentService) afterCompletion(ctx context.Context, result *models.CompletionResult, txn *models.Transaction) {
	if s.Renders != nil {
		if err := s.Renders.EnqueueRender(ctx, result.Invoice.ID); err != nil {
			s.Logger.Warn("failed to enqueue invoice render, reconciler will retry",
				zap.String("invoiceId", result.Invoice.ID), zap.Error(err))
		}
	}
	if s.Notifier != nil {
		s.Notifier.SendPaymentConfirmation(ctx, result.Payment.UserID, result.Payment, result.Booking, result.Invoice)
	}
	s.storeCompletion(ctx, result)

	ev := events.NewLedgerEvent(events.PaymentCompleted, result.Payment)
	ev.InvoiceNumber = result.Invoice.InvoiceNumber
	ev.TransactionID = txn.TransactionID
	s.publish(ctx, ev)
}

func (s *DefaultPaymentService) cachedCompletion(ctx context.Context, orderID string) (*models.CompletionResult, bool) {
	if s.Cache == nil {
		return nil, false
	}
	result, ok, err := s.Cache.Get(ctx, orderID)
	if err != nil {
		s.Logger.Warn("completion cache read failed", zap.String("orderId", orderID), zap.Error(err))
		return nil, false
	}
	return result, ok && result != nil && result.Payment != nil
}

func (s *DefaultPaymentService) storeCompletion(ctx context.Context, result *models.CompletionResult) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, result.Payment.OrderID, result); err != nil {
		s.Logger.Warn("completion cache write failed", zap.String("orderId", result.Payment.OrderID), zap.Error(err))
	}
}

// ReconcileOrder polls the gateway for one order and applies what it reports.
// Paid orders settle through the same unit of work as a verified callback.
func (s *DefaultPaymentService) ReconcileOrder(ctx context.Context, orderID string) (ReconcileOutcome, error) {
	p, err := s.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", err
	}
	switch p.Status {
	case models.PaymentPending:
	case models.PaymentFailed, models.PaymentCancelled:
		return s.checkClosedOrder(ctx, p)
	default:
		return ReconcileSettled, nil
	}

	state, err := s.Gateway.GetOrderStatus(ctx, orderID)
	if err != nil {
		return "", utils.NewGatewayError("get order status", err, gateway.IsRetryable(err))
	}

	switch state.Status {
	case gateway.OrderPaid:
		if state.PaymentID == "" {
			return ReconcilePending, nil
		}
		signature := s.Verifier.Sign(orderID, state.PaymentID)
		if _, err := s.completeVerified(ctx, orderID, state.PaymentID, signature, ""); err != nil {
			return "", err
		}
		return ReconcileCompleted, nil
	case gateway.OrderFailed:
		reason := state.FailureReason
		if reason == "" {
			reason = "Payment failed at gateway"
		}
		if _, err := s.HandlePaymentFailure(ctx, orderID, reason, ""); err != nil {
			return "", err
		}
		return ReconcileFailed, nil
	default:
		return ReconcilePending, nil
	}
}

// checkClosedOrder reports a failed or cancelled payment whose order the gateway
// nevertheless captured. The ledger cannot settle it on its own; an operator
// refunds it or books it manually.
func (s *DefaultPaymentService) checkClosedOrder(ctx context.Context, p *models.Payment) (ReconcileOutcome, error) {
	state, err := s.Gateway.GetOrderStatus(ctx, p.OrderID)
	if err != nil {
		return "", utils.NewGatewayError("get order status", err, gateway.IsRetryable(err))
	}
	if state.Status != gateway.OrderPaid {
		return ReconcileSettled, nil
	}
	s.Logger.Error("ReconcileOrder: gateway captured an order the ledger recorded as closed",
		zap.String("orderId", p.OrderID),
		zap.String("paymentId", p.ID),
		zap.String("status", string(p.Status)),
		zap.String("gatewayPaymentId", state.PaymentID))
	return "", utils.NewInvalidStateError("order %s was captured at the gateway but payment %s is %s", p.OrderID, p.ID, p.Status)
}
