package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	invoiceRepo "cmsledger/database/repository/invoice"
	"cmsledger/models"
	"cmsledger/services/storage"
	"cmsledger/utils"

	"go.uber.org/zap"
)

// RenderQueue schedules asynchronous rendering.
type RenderQueue interface {
	EnqueueRender(ctx context.Context, invoiceID string) error
}

// Service is the read and operator side of invoices.
type Service struct {
	invoices invoiceRepo.InvoiceRepository
	store    storage.FileStore
	queue    RenderQueue
	logger   *zap.Logger
}

func NewService(invoices invoiceRepo.InvoiceRepository, store storage.FileStore, queue RenderQueue, logger *zap.Logger) *Service {
	return &Service{invoices: invoices, store: store, queue: queue, logger: logger}
}

func (s *Service) Get(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, invoiceID)
}

// List returns one page of invoices for operators.
func (s *Service) List(ctx context.Context, f models.InvoiceFilter) ([]models.Invoice, models.Pagination, error) {
	rows, total, err := s.invoices.List(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return rows, models.NewPagination(f.Page, f.Limit, total), nil
}

// UpdateStatus changes only the invoice status. Setting paid stamps paidDate.
func (s *Service) UpdateStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) (*models.Invoice, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("invalid invoice status %q", status)
	}
	var paidDate *time.Time
	if status == models.InvoicePaid {
		now := time.Now()
		paidDate = &now
	}
	return s.invoices.UpdateStatus(ctx, invoiceID, status, paidDate)
}

// RequestRender queues a (re)render of invoiceID.
func (s *Service) RequestRender(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueRender(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("request render for %s: %w", inv.InvoiceNumber, err)
	}
	return inv, nil
}

// Open returns the rendered file of inv and counts the download.
// The caller closes the reader.
func (s *Service) Open(ctx context.Context, inv *models.Invoice) (io.ReadCloser, error) {
	if inv.RenderStatus != models.RenderRendered || inv.PDFPath == "" {
		return nil, utils.NewRenderError(inv.ID, errors.New("invoice file is not rendered yet"))
	}
	rc, err := s.store.Open(ctx, inv.PDFPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotStored) {
			return nil, utils.NewRenderError(inv.ID, err)
		}
		return nil, err
	}
	if err := s.invoices.IncrementDownload(ctx, inv.ID); err != nil {
		rc.Close()
		return nil, err
	}
	return rc, nil
}

// SignedURL returns a short-lived link when the store supports one. ok is false otherwise.
func (s *Service) SignedURL(ctx context.Context, inv *models.Invoice, expires time.Duration) (url string, ok bool, err error) {
	signer, supported := s.store.(storage.URLSigner)
	if !supported {
		return "", false, nil
	}
	if inv.RenderStatus != models.RenderRendered || inv.PDFPath == "" {
		return "", true, utils.NewRenderError(inv.ID, errors.New("invoice file is not rendered yet"))
	}
	url, err = signer.SignedURL(ctx, inv.PDFPath, expires)
	if err != nil {
		return "", true, err
	}
	if err := s.invoices.IncrementDownload(ctx, inv.ID); err != nil {
		return "", true, err
	}
	return url, true, nil
}
