package invoiceRepo

import (
	"context"
	"time"

	"cmsledger/models"
)

// InvoiceRepository defines methods for invoice data access. Amounts and
// snapshots are written once by Create and never updated.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Invoice, error)

	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int64, error)

	// UpdateStatus sets the invoice status; paidDate is stamped when non-nil.
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus, paidDate *time.Time) (*models.Invoice, error)
	IncrementDownload(ctx context.Context, id string) error

	// SetRenderResult records one render attempt. An empty renderErr marks the invoice rendered at pdfPath.
	SetRenderResult(ctx context.Context, id, pdfPath, renderErr string, at time.Time) error
	// ListUnrendered returns invoices created before cutoff whose render status is not rendered.
	ListUnrendered(ctx context.Context, cutoff time.Time, limit int) ([]models.Invoice, error)
}
