package payment

import (
	"context"

	"cmsledger/models"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
)

// PaymentService is the ledger's write and history surface.
type PaymentService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.OrderResult, error)
	CompletePayment(ctx context.Context, req CompleteRequest) (*models.CompletionResult, error)
	HandlePaymentFailure(ctx context.Context, orderID, reason, userID string) (*models.FailureResult, error)
	ReconcileOrder(ctx context.Context, orderID string) (ReconcileOutcome, error)
	Refund(ctx context.Context, req RefundRequest) (*models.RefundResult, error)
	ResumeRefund(ctx context.Context, transactionID string) error
	ListPayments(ctx context.Context, userID string, status models.PaymentStatus, page, limit int) ([]models.Payment, models.Pagination, error)
}

type CreateOrderRequest struct {
	BookingID string  `json:"bookingId"`
	UserID    string  `json:"userId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

type CompleteRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	UserID    string `json:"userId"`
}

type RefundRequest struct {
	PaymentID   string  `json:"paymentId"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason"`
	ProcessedBy string  `json:"processedBy"`
}

// ReconcileOutcome reports what a gateway poll did to a payment.
type ReconcileOutcome string

const (
	ReconcileCompleted ReconcileOutcome = "completed"
	ReconcileFailed    ReconcileOutcome = "failed"
	ReconcilePending   ReconcileOutcome = "pending"
	ReconcileSettled   ReconcileOutcome = "settled" // already terminal before the poll
)

// Gateway is the payment provider port.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, idempotencyKey string, metadata map[string]string) (*gateway.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (*gateway.OrderState, error)
	// Cancel makes the order unpayable. It returns gateway.ErrAlreadyCaptured
	// when the order was paid first.
	Cancel(ctx context.Context, orderID string) error
	Refund(ctx context.Context, orderID string, amount float64, reason, idempotencyKey string) (*gateway.RefundReceipt, error)
}

// InvoiceBuilder persists the invoice snapshot for a completed payment.
type InvoiceBuilder interface {
	Build(ctx context.Context, payment *models.Payment, booking *models.Booking, user *models.User) (*models.Invoice, error)
}

type RenderQueue interface {
	EnqueueRender(ctx context.Context, invoiceID string) error
}

// Notifier is fire-and-forget: implementations log their own failures.
type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, userID string, payment *models.Payment, booking *models.Booking, invoice *models.Invoice)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.LedgerEvent) error
}

// CompletionCache stores completion aggregates keyed by order id for replay.
type CompletionCache interface {
	Get(ctx context.Context, orderID string) (*models.CompletionResult, bool, error)
	Set(ctx context.Context, orderID string, result *models.CompletionResult) error
}
