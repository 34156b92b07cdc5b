package transactionRepo

import (
	"context"
	"time"

	"cmsledger/models"
)

// StatusUpdate moves a non-terminal ledger row forward.
type StatusUpdate struct {
	Status               models.TransactionStatus
	GatewayTransactionID string
	FailureReason        string
	ProcessedAt          time.Time
}

// TransactionRepository defines ledger data access. Rows are append-only:
// only non-terminal rows accept a status update.
type TransactionRepository interface {
	// Create inserts a ledger row. A colliding transactionId fails with utils.ErrDuplicate.
	Create(ctx context.Context, txn *models.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	// UpdateStatus returns false when the row is already terminal.
	UpdateStatus(ctx context.Context, transactionID string, update StatusUpdate) (bool, error)

	ListByPayment(ctx context.Context, paymentID string) ([]models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int64, error)
	// Summarize groups completed transactions by type.
	Summarize(ctx context.Context, userID string, dateRange models.DateRange) ([]models.TransactionSummary, error)
}
