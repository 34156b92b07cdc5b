package notification

import (
	"context"

	"cmsledger/models"

	"go.uber.org/zap"
)

// ConfirmationQueue schedules confirmation delivery.
type ConfirmationQueue interface {
	EnqueuePaymentConfirmation(ctx context.Context, payload models.PaymentConfirmationPayload) error
}

// QueueNotifier hands payment confirmations to the background worker so
// delivery never blocks or fails the ledger.
type QueueNotifier struct {
	queue  ConfirmationQueue
	logger *zap.Logger
}

func NewQueueNotifier(queue ConfirmationQueue, logger *zap.Logger) *QueueNotifier {
	return &QueueNotifier{queue: queue, logger: logger}
}

// ConfirmationPayload flattens the completion aggregate into a task payload.
func ConfirmationPayload(payment *models.Payment, booking *models.Booking, invoice *models.Invoice) models.PaymentConfirmationPayload {
	p := models.PaymentConfirmationPayload{
		UserID:    payment.UserID,
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		BookingID: payment.BookingID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	}
	if booking != nil {
		p.TrackingID = booking.TrackingID
	}
	if invoice != nil {
		p.InvoiceID = invoice.ID
		p.InvoiceNumber = invoice.InvoiceNumber
	}
	return p
}

// SendPaymentConfirmation logs enqueue failures instead of returning them.
func (n *QueueNotifier) SendPaymentConfirmation(ctx context.Context, userID string, payment *models.Payment, booking *models.Booking, invoice *models.Invoice) {
	payload := ConfirmationPayload(payment, booking, invoice)
	payload.UserID = userID
	if err := n.queue.EnqueuePaymentConfirmation(ctx, payload); err != nil {
		n.logger.Warn("failed to queue payment confirmation",
			zap.String("paymentId", payment.ID),
			zap.String("userId", userID),
			zap.Error(err))
	}
}
