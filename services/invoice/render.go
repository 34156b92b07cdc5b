package invoice

import (
	"context"
	"fmt"
	"time"

	invoiceRepo "cmsledger/database/repository/invoice"
	"cmsledger/models"
	"cmsledger/services/storage"
	"cmsledger/utils"

	"go.uber.org/zap"
)

// Renderer turns a persisted invoice into a PDF in the file store and records
// the outcome on the invoice. It runs outside the payment unit of work.
type Renderer struct {
	invoices invoiceRepo.InvoiceRepository
	store    storage.FileStore
	issuer   Issuer
	logger   *zap.Logger
	now      func() time.Time

	render func(*models.Invoice, Issuer) ([]byte, error)
}

func NewRenderer(invoices invoiceRepo.InvoiceRepository, store storage.FileStore, issuer Issuer, logger *zap.Logger) *Renderer {
	return &Renderer{
		invoices: invoices,
		store:    store,
		issuer:   issuer,
		logger:   logger,
		now:      time.Now,
		render:   RenderPDF,
	}
}

// FileKey is the storage key for an invoice's rendered file.
func FileKey(inv *models.Invoice) string {
	return fmt.Sprintf("invoices/invoice_%s.pdf", inv.InvoiceNumber)
}

// Render renders invoiceID. Already rendered invoices are left alone, which
// makes redelivered jobs harmless. Failures are recorded and returned as RenderError.
func (r *Renderer) Render(ctx context.Context, invoiceID string) error {
	inv, err := r.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.RenderStatus == models.RenderRendered && inv.PDFPath != "" {
		return nil
	}

	pointer, renderErr := r.renderAndStore(ctx, inv)
	at := r.now()
	if renderErr != nil {
		if err := r.invoices.SetRenderResult(ctx, inv.ID, "", renderErr.Error(), at); err != nil {
			r.logger.Error("failed to record render failure", zap.String("invoiceId", inv.ID), zap.Error(err))
		}
		r.logger.Warn("invoice render failed",
			zap.String("invoiceId", inv.ID),
			zap.String("invoiceNumber", inv.InvoiceNumber),
			zap.Int("attempt", inv.RenderAttempts+1),
			zap.Error(renderErr))
		return utils.NewRenderError(inv.ID, renderErr)
	}

	if err := r.invoices.SetRenderResult(ctx, inv.ID, pointer, "", at); err != nil {
		return fmt.Errorf("record render result for %s: %w", inv.ID, err)
	}
	r.logger.Info("invoice rendered", zap.String("invoiceNumber", inv.InvoiceNumber), zap.String("pdfPath", pointer))
	return nil
}

func (r *Renderer) renderAndStore(ctx context.Context, inv *models.Invoice) (string, error) {
	data, err := r.render(inv, r.issuer)
	if err != nil {
		return "", err
	}
	return r.store.Save(ctx, FileKey(inv), data, "application/pdf")
}
