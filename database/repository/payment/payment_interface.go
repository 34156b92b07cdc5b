package paymentRepo

import (
	"context"
	"time"

	"cmsledger/models"
)

// CompletionUpdate is applied by the pending→completed compare-and-swap.
type CompletionUpdate struct {
	GatewayPaymentID string
	Signature        string
	TransactionFee   float64
	CompletedAt      time.Time
}

// PaymentRepository defines methods for payment data access. Status changes are
// conditional updates: the returned bool is false when the payment was not in
// the expected source status.
type PaymentRepository interface {
	// Create inserts a pending payment. A second payment for the same order id fails with utils.ErrDuplicate.
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)

	MarkCompleted(ctx context.Context, id string, update CompletionUpdate) (bool, error)
	MarkFailed(ctx context.Context, id, reason string, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, id string, amount float64, reason string, at time.Time) (bool, error)

	// ListByUser returns a page of a user's payments, newest first, and the total match count.
	ListByUser(ctx context.Context, userID string, status models.PaymentStatus, page, limit int) ([]models.Payment, int64, error)
	// ListPendingOlderThan returns up to limit pending payments created before cutoff, oldest first.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}
