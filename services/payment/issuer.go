package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cmsledger/models"
	"cmsledger/services/gateway"
	"cmsledger/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateOrder mints a gateway order for a booking and records a pending payment.
// Retries with the same booking and amount reuse the gateway idempotency key,
// so they resolve to the existing payment. Once an order fails the booking
// moves to its next attempt and a retry mints a fresh order.
func (s *DefaultPaymentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.OrderResult, error) {
	if req.BookingID == "" || req.UserID == "" {
		return nil, utils.NewValidationError("bookingId and userId are required")
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.DefaultCurrency
	}
	amount := utils.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, utils.NewValidationError("amount must be positive, got %v", req.Amount)
	}

	// 1. Booking must exist, belong to the caller and still be unpaid.
	booking, err := s.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != "" && booking.UserID != req.UserID {
		return nil, utils.NewNotFoundError("booking", req.BookingID)
	}
	if booking.PaymentDetails.Paid() {
		return nil, utils.NewInvalidStateError("booking %s is already %s", booking.ID, booking.PaymentDetails.PaymentStatus)
	}

	// 2. Mint the order. Not retried here; the caller decides.
	attempt := orderAttempt(booking.PaymentDetails)
	key := fmt.Sprintf("order_%s_%d_%d", booking.ID, utils.ToMinorUnits(amount), attempt)
	order, err := s.Gateway.CreateOrder(ctx, amount, currency, key, map[string]string{
		"bookingId":  booking.ID,
		"userId":     req.UserID,
		"trackingId": booking.TrackingID,
	})
	if err != nil {
		s.Logger.Error("CreateOrder: gateway order failed", zap.String("bookingId", booking.ID), zap.Error(err))
		return nil, utils.NewGatewayError("create order", err, gateway.IsRetryable(err))
	}

	now := s.clock()
	p := &models.Payment{
		ID:        uuid.New().String(),
		BookingID: booking.ID,
		UserID:    req.UserID,
		OrderID:   order.ID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentPending,
		Method:    models.PaymentMethodOnline,
		Gateway: models.PaymentGatewayDetails{
			Provider:     "stripe",
			Receipt:      "receipt_" + booking.ID,
			ClientSecret: order.ClientSecret,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 3. Persist the payment and link it from the booking together.
	err = s.Tx.RunInTx(ctx, func(tc context.Context) error {
		if err := s.Payments.Create(tc, p); err != nil {
			return err
		}
		return s.Bookings.AttachOrder(tc, booking.ID, models.BookingPaymentDetails{
			OrderID:       p.OrderID,
			PaymentID:     p.ID,
			Amount:        p.Amount,
			PaymentMethod: p.Method,
			PaymentStatus: p.Status,
			Attempt:       attempt,
		})
	})
	switch {
	case errors.Is(err, utils.ErrDuplicate):
		existing, gerr := s.Payments.GetByOrderID(ctx, order.ID)
		if gerr != nil {
			return nil, gerr
		}
		if existing.Status != models.PaymentPending {
			return nil, utils.NewInvalidStateError("order %s is already %s", order.ID, existing.Status)
		}
		s.Logger.Info("CreateOrder: order already recorded", zap.String("orderId", order.ID), zap.String("paymentId", existing.ID))
		existing.Gateway.ClientSecret = order.ClientSecret
		p = existing
	case errors.Is(err, utils.ErrInvalidState):
		// Paid in the meantime; the order just minted must not stay payable.
		if cerr := s.Gateway.Cancel(ctx, order.ID); cerr != nil {
			s.Logger.Warn("CreateOrder: could not cancel orphaned order", zap.String("orderId", order.ID), zap.Error(cerr))
		}
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("record order %s: %w", order.ID, err)
	}

	return &models.OrderResult{
		OrderID:      p.OrderID,
		PaymentID:    p.ID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		KeyID:        s.GatewayKeyID,
		ClientSecret: p.Gateway.ClientSecret,
	}, nil
}

// orderAttempt picks the attempt number for the next order on a booking.
func orderAttempt(d models.BookingPaymentDetails) int {
	attempt := max(d.Attempt, 1)
	switch d.PaymentStatus {
	case models.PaymentFailed, models.PaymentCancelled:
		return attempt + 1
	}
	return attempt
}
