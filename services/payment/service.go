package payment

import (
	"context"
	"errors"
	"time"

	"cmsledger/database"
	bookingRepo "cmsledger/database/repository/booking"
	invoiceRepo "cmsledger/database/repository/invoice"
	paymentRepo "cmsledger/database/repository/payment"
	userRepo "cmsledger/database/repository/user"
	"cmsledger/models"
	"cmsledger/services/events"
	"cmsledger/services/ledger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// errStateChanged is returned from inside a unit of work when a conditional
// status update matched nothing. It aborts the transaction.
var errStateChanged = errors.New("payment status changed concurrently")

// DefaultPaymentService orchestrates orders, completions, failures and refunds.
// Cache is optional.
type DefaultPaymentService struct {
	Payments paymentRepo.PaymentRepository
	Bookings bookingRepo.BookingRepository
	Users    userRepo.UserRepository
	Invoices invoiceRepo.InvoiceRepository
	Tx       database.TxRunner

	Ledger   *ledger.Recorder
	Invoicer InvoiceBuilder
	Gateway  Gateway
	Verifier *SignatureVerifier

	Renders  RenderQueue
	Notifier Notifier
	Events   EventPublisher
	Cache    CompletionCache

	Logger          *zap.Logger
	GatewayKeyID    string
	DefaultCurrency string

	inflight singleflight.Group
	now      func() time.Time
}

func (s *DefaultPaymentService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *DefaultPaymentService) publish(ctx context.Context, event events.LedgerEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Logger.Warn("failed to publish ledger event",
			zap.String("type", event.Type), zap.String("paymentId", event.PaymentID), zap.Error(err))
	}
}

// ListPayments returns a user's payments newest first.
func (s *DefaultPaymentService) ListPayments(ctx context.Context, userID string, status models.PaymentStatus, page, limit int) ([]models.Payment, models.Pagination, error) {
	page, limit = NormalizePage(page, limit)
	rows, total, err := s.Payments.ListByUser(ctx, userID, status, page, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if rows == nil {
		rows = []models.Payment{}
	}
	return rows, models.NewPagination(page, limit, total), nil
}

// NormalizePage applies the default page size and caps limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

// CanAccess reports whether requester may read a resource owned by ownerID.
func CanAccess(requesterID string, operator bool, ownerID string) bool {
	return operator || (requesterID != "" && requesterID == ownerID)
}

var _ PaymentService = (*DefaultPaymentService)(nil)
