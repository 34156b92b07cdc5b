package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	transactionRepo "cmsledger/database/repository/transaction"
	"cmsledger/models"
	"cmsledger/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxIDAttempts bounds regeneration of colliding transaction ids.
const maxIDAttempts = 5

// FeePolicy holds the configured fee percentages.
type FeePolicy struct {
	GatewayPercent  float64
	PlatformPercent float64
}

// Entry describes one money movement to append to the ledger. Fees nil means
// the configured policy applies.
type Entry struct {
	Type      models.TransactionType
	Amount    float64
	Currency  string
	Fees      *models.Fees
	Method    models.TransactionMethod
	PaymentID string
	BookingID string
	UserID    string

	Description     string
	Reference       string
	GatewayResponse *models.GatewayResponse
	ProcessedBy     string
}

// Recorder appends Transaction rows. NetAmount is always derived here.
type Recorder struct {
	txns   transactionRepo.TransactionRepository
	fees   FeePolicy
	logger *zap.Logger

	now    func() time.Time
	random func() int
}

func NewRecorder(txns transactionRepo.TransactionRepository, fees FeePolicy, logger *zap.Logger) *Recorder {
	return &Recorder{
		txns:   txns,
		fees:   fees,
		logger: logger,
		now:    time.Now,
		random: func() int { return rand.Intn(1000) },
	}
}

// ComputeFees applies the fee policy to amount.
func (r *Recorder) ComputeFees(amount float64) models.Fees {
	gateway := utils.Percent(amount, r.fees.GatewayPercent)
	platform := utils.Percent(amount, r.fees.PlatformPercent)
	return models.Fees{Gateway: gateway, Platform: platform, Total: utils.AddMoney(gateway, platform)}
}

// NetAmount returns amount - fees.Total with the fee total recomputed from its parts.
func NetAmount(amount float64, fees models.Fees) (float64, models.Fees) {
	fees.Total = utils.AddMoney(fees.Gateway, fees.Platform)
	return utils.SubMoney(amount, fees.Total), fees
}

// NewTransactionID builds {PREFIX}{8 timestamp digits}{3 random digits}.
func (r *Recorder) NewTransactionID(t models.TransactionType) string {
	ms := r.now().UnixMilli() % 100000000
	return fmt.Sprintf("%s%08d%03d", t.Prefix(), ms, r.random()%1000)
}

// Record appends a pending transaction built from e.
func (r *Recorder) Record(ctx context.Context, e Entry) (*models.Transaction, error) {
	if e.Amount <= 0 {
		return nil, utils.NewValidationError("transaction amount must be positive, got %v", e.Amount)
	}

	fees := r.ComputeFees(e.Amount)
	if e.Fees != nil {
		fees = *e.Fees
	}
	net, fees := NetAmount(e.Amount, fees)

	now := r.now()
	txn := &models.Transaction{
		ID:              uuid.New().String(),
		PaymentID:       e.PaymentID,
		BookingID:       e.BookingID,
		UserID:          e.UserID,
		Type:            e.Type,
		Amount:          utils.RoundMoney(e.Amount),
		Currency:        e.Currency,
		Status:          models.TransactionPending,
		Method:          e.Method,
		GatewayResponse: e.GatewayResponse,
		Description:     e.Description,
		Reference:       e.Reference,
		Fees:            fees,
		NetAmount:       net,
		ProcessedBy:     e.ProcessedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		txn.TransactionID = r.NewTransactionID(e.Type)
		err := r.txns.Create(ctx, txn)
		if err == nil {
			return txn, nil
		}
		if !errors.Is(err, utils.ErrDuplicate) || attempt == maxIDAttempts {
			return nil, fmt.Errorf("record %s transaction: %w", e.Type, err)
		}
		r.logger.Debug("transaction id collision, regenerating", zap.String("transactionId", txn.TransactionID))
	}
}

// MarkCompleted moves a pending row to completed.
func (r *Recorder) MarkCompleted(ctx context.Context, txn *models.Transaction, gatewayTxnID string) error {
	return r.finish(ctx, txn, transactionRepo.StatusUpdate{
		Status:               models.TransactionCompleted,
		GatewayTransactionID: gatewayTxnID,
	})
}

// MarkFailed moves a pending row to failed.
func (r *Recorder) MarkFailed(ctx context.Context, txn *models.Transaction, reason string) error {
	return r.finish(ctx, txn, transactionRepo.StatusUpdate{
		Status:        models.TransactionFailed,
		FailureReason: reason,
	})
}

func (r *Recorder) finish(ctx context.Context, txn *models.Transaction, u transactionRepo.StatusUpdate) error {
	u.ProcessedAt = r.now()
	ok, err := r.txns.UpdateStatus(ctx, txn.TransactionID, u)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewInvalidStateError("transaction %s is already %s", txn.TransactionID, txn.Status)
	}

	txn.Status = u.Status
	txn.ProcessedAt = &u.ProcessedAt
	txn.UpdatedAt = u.ProcessedAt
	if u.GatewayTransactionID != "" {
		txn.GatewayTransactionID = u.GatewayTransactionID
	}
	if u.FailureReason != "" {
		txn.FailureReason = u.FailureReason
	}
	return nil
}

// Summarize groups a user's completed transactions by type. An empty userID summarizes everyone.
func (r *Recorder) Summarize(ctx context.Context, userID string, dateRange models.DateRange) ([]models.TransactionSummary, error) {
	return r.txns.Summarize(ctx, userID, dateRange)
}

// List returns one page of transaction history.
func (r *Recorder) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, models.Pagination, error) {
	rows, total, err := r.txns.List(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return rows, models.NewPagination(f.Page, f.Limit, total), nil
}

// Get loads one ledger row.
func (r *Recorder) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return r.txns.GetByTransactionID(ctx, transactionID)
}

// ForPayment returns every ledger row attached to a payment, oldest first.
func (r *Recorder) ForPayment(ctx context.Context, paymentID string) ([]models.Transaction, error) {
	return r.txns.ListByPayment(ctx, paymentID)
}
