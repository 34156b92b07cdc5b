package payment

import (
	"context"
	"errors"

	"cmsledger/models"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
	"cmsledger/utils"

	"go.uber.org/zap"
)

const defaultFailureReason = "Payment failed"

// HandlePaymentFailure cancels the gateway order, then moves the pending payment
// to failed and marks the booking "Payment Failed". Repeating it on a failed
// payment returns the current state. An order that turns out to be captured
// stays pending for the paid path to settle.
func (s *DefaultPaymentService) HandlePaymentFailure(ctx context.Context, orderID, reason, userID string) (*models.FailureResult, error) {
	if orderID == "" {
		return nil, utils.NewValidationError("orderId is required")
	}
	if reason == "" {
		reason = defaultFailureReason
	}

	p, err := s.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != "" && p.UserID != userID {
		return nil, utils.NewNotFoundError("payment", orderID)
	}

	switch p.Status {
	case models.PaymentPending:
	case models.PaymentFailed:
		return s.currentFailure(ctx, p)
	default:
		return nil, utils.NewInvalidStateError("cannot fail payment for order %s in status %s", orderID, p.Status)
	}

	// 1. The gateway order must be dead before the ledger calls it failed.
	if err := s.Gateway.Cancel(ctx, orderID); err != nil {
		if errors.Is(err, gateway.ErrAlreadyCaptured) {
			s.Logger.Warn("HandlePaymentFailure: order already captured, leaving payment pending",
				zap.String("orderId", orderID))
			return nil, utils.NewInvalidStateError("order %s was captured at the gateway", orderID)
		}
		s.Logger.Error("HandlePaymentFailure: gateway cancel failed", zap.String("orderId", orderID), zap.Error(err))
		return nil, utils.NewGatewayError("cancel order", err, gateway.IsRetryable(err))
	}

	// 2. pending→failed and the booking outcome together.
	var booking *models.Booking
	now := s.clock()
	err = s.Tx.RunInTx(ctx, func(tc context.Context) error {
		ok, err := s.Payments.MarkFailed(tc, p.ID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return errStateChanged
		}
		booking, err = s.Bookings.SetPaymentOutcome(tc, p.BookingID, models.BookingStatusPaymentFailed, models.PaymentFailed, "")
		return err
	})
	if errors.Is(err, errStateChanged) {
		current, gerr := s.Payments.GetByOrderID(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == models.PaymentFailed {
			return s.currentFailure(ctx, current)
		}
		return nil, utils.NewInvalidStateError("cannot fail payment for order %s in status %s", orderID, current.Status)
	}
	if err != nil {
		return nil, err
	}

	p.Status = models.PaymentFailed
	p.FailureReason = reason
	p.Attempts++
	p.LastAttemptAt = &now
	p.UpdatedAt = now

	s.Logger.Info("payment failed", zap.String("orderId", orderID), zap.String("reason", reason))
	s.publish(ctx, events.NewLedgerEvent(events.PaymentFailed, p))
	return &models.FailureResult{Payment: p, Booking: booking}, nil
}

func (s *DefaultPaymentService) currentFailure(ctx context.Context, p *models.Payment) (*models.FailureResult, error) {
	booking, err := s.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	return &models.FailureResult{Payment: p, Booking: booking}, nil
}
