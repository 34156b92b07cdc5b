package memoryRepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	paymentRepo "cmsledger/database/repository/payment"
	transactionRepo "cmsledger/database/repository/transaction"
	"cmsledger/models"
	"cmsledger/utils"
)

func page[T any](rows []T, pageNum, limit int) []T {
	start := (pageNum - 1) * limit
	if start < 0 || start >= len(rows) {
		return []T{}
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func inRange(t time.Time, r models.DateRange) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

type payments struct{ s *Store }

func (r *payments) Create(_ context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.ID == p.ID || existing.OrderID == p.OrderID {
			return fmt.Errorf("payment for order %s: %w", p.OrderID, utils.ErrDuplicate)
		}
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r *payments) GetByID(_ context.Context, id string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, utils.NewNotFoundError("payment", id)
	}
	return &p, nil
}

func (r *payments) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			return &p, nil
		}
	}
	return nil, utils.NewNotFoundError("payment", orderID)
}

func (r *payments) transition(id string, from models.PaymentStatus, apply func(p *models.Payment) error) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	if err := apply(&p); err != nil {
		return false, err
	}
	r.s.payments[id] = p
	return true, nil
}

func (r *payments) MarkCompleted(_ context.Context, id string, u paymentRepo.CompletionUpdate) (bool, error) {
	return r.transition(id, models.PaymentPending, func(p *models.Payment) error {
		for otherID, other := range r.s.payments {
			if otherID != id && other.GatewayPaymentID != "" && other.GatewayPaymentID == u.GatewayPaymentID {
				return fmt.Errorf("payment %s: %w", id, utils.ErrDuplicate)
			}
		}
		at := u.CompletedAt
		p.Status = models.PaymentCompleted
		p.GatewayPaymentID = u.GatewayPaymentID
		p.GatewaySignature = u.Signature
		p.TransactionFee = u.TransactionFee
		p.CompletedAt = &at
		p.UpdatedAt = at
		return nil
	})
}

func (r *payments) MarkFailed(_ context.Context, id, reason string, at time.Time) (bool, error) {
	return r.transition(id, models.PaymentPending, func(p *models.Payment) error {
		p.Status = models.PaymentFailed
		p.FailureReason = reason
		p.Attempts++
		p.LastAttemptAt = &at
		p.UpdatedAt = at
		return nil
	})
}

func (r *payments) MarkRefunded(_ context.Context, id string, amount float64, reason string, at time.Time) (bool, error) {
	return r.transition(id, models.PaymentCompleted, func(p *models.Payment) error {
		p.Status = models.PaymentRefunded
		p.RefundAmount = amount
		p.RefundReason = reason
		p.UpdatedAt = at
		return nil
	})
}

func (r *payments) ListByUser(_ context.Context, userID string, status models.PaymentStatus, pageNum, limit int) ([]models.Payment, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID && (status == "" || p.Status == status) {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return page(rows, pageNum, limit), int64(len(rows)), nil
}

func (r *payments) ListPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.Payment
	for _, p := range r.s.payments {
		if p.Status == models.PaymentPending && p.CreatedAt.Before(cutoff) {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type invoices struct{ s *Store }

func (r *invoices) Create(_ context.Context, inv *models.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invoices {
		if existing.ID == inv.ID || existing.InvoiceNumber == inv.InvoiceNumber || existing.PaymentID == inv.PaymentID {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, utils.ErrDuplicate)
		}
	}
	r.s.invoices[inv.ID] = *inv
	return nil
}

func (r *invoices) GetByID(_ context.Context, id string) (*models.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, utils.NewNotFoundError("invoice", id)
	}
	return &inv, nil
}

func (r *invoices) GetByPaymentID(_ context.Context, paymentID string) (*models.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.PaymentID == paymentID {
			return &inv, nil
		}
	}
	return nil, utils.NewNotFoundError("invoice", "for payment "+paymentID)
}

func (r *invoices) List(_ context.Context, f models.InvoiceFilter) ([]models.Invoice, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var rows []models.Invoice
	for _, inv := range r.s.invoices {
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if !inRange(inv.CreatedAt, f.Range) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(inv.InvoiceNumber), search) &&
			!strings.Contains(strings.ToLower(inv.Customer.Name), search) &&
			!strings.Contains(strings.ToLower(inv.Customer.Email), search) {
			continue
		}
		rows = append(rows, inv)
	}
	asc := f.SortOrder == "asc"
	sort.Slice(rows, func(i, j int) bool {
		if asc {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return page(rows, f.Page, f.Limit), int64(len(rows)), nil
}

func (r *invoices) update(id string, apply func(inv *models.Invoice)) (*models.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, utils.NewNotFoundError("invoice", id)
	}
	apply(&inv)
	r.s.invoices[id] = inv
	return &inv, nil
}

func (r *invoices) UpdateStatus(_ context.Context, id string, status models.InvoiceStatus, paidDate *time.Time) (*models.Invoice, error) {
	return r.update(id, func(inv *models.Invoice) {
		inv.Status = status
		if paidDate != nil {
			inv.PaidDate = paidDate
		}
		inv.UpdatedAt = time.Now()
	})
}

func (r *invoices) IncrementDownload(_ context.Context, id string) error {
	_, err := r.update(id, func(inv *models.Invoice) { inv.DownloadCount++ })
	return err
}

func (r *invoices) SetRenderResult(_ context.Context, id, pdfPath, renderErr string, at time.Time) error {
	_, err := r.update(id, func(inv *models.Invoice) {
		inv.RenderAttempts++
		inv.LastRenderAt = &at
		inv.UpdatedAt = at
		if renderErr == "" {
			inv.RenderStatus = models.RenderRendered
			inv.PDFPath = pdfPath
			inv.RenderError = ""
			return
		}
		inv.RenderStatus = models.RenderFailed
		inv.RenderError = renderErr
	})
	return err
}

func (r *invoices) ListUnrendered(_ context.Context, cutoff time.Time, limit int) ([]models.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.Invoice
	for _, inv := range r.s.invoices {
		if inv.RenderStatus != models.RenderRendered && inv.CreatedAt.Before(cutoff) {
			rows = append(rows, inv)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type transactions struct{ s *Store }

func (r *transactions) Create(_ context.Context, t *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transactions[t.TransactionID]; ok {
		return fmt.Errorf("transaction %s: %w", t.TransactionID, utils.ErrDuplicate)
	}
	r.s.transactions[t.TransactionID] = *t
	return nil
}

func (r *transactions) GetByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[transactionID]
	if !ok {
		return nil, utils.NewNotFoundError("transaction", transactionID)
	}
	return &t, nil
}

func (r *transactions) UpdateStatus(_ context.Context, transactionID string, u transactionRepo.StatusUpdate) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[transactionID]
	if !ok || t.Status.Terminal() {
		return false, nil
	}
	at := u.ProcessedAt
	t.Status = u.Status
	t.ProcessedAt = &at
	t.UpdatedAt = at
	if u.GatewayTransactionID != "" {
		t.GatewayTransactionID = u.GatewayTransactionID
	}
	if u.FailureReason != "" {
		t.FailureReason = u.FailureReason
	}
	r.s.transactions[transactionID] = t
	return true, nil
}

func (r *transactions) ListByPayment(_ context.Context, paymentID string) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.Transaction
	for _, t := range r.s.transactions {
		if t.PaymentID == paymentID {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (r *transactions) matching(f models.TransactionFilter) []models.Transaction {
	var rows []models.Transaction
	for _, t := range r.s.transactions {
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if !inRange(t.CreatedAt, f.Range) {
			continue
		}
		rows = append(rows, t)
	}
	return rows
}

func (r *transactions) List(_ context.Context, f models.TransactionFilter) ([]models.Transaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.matching(f)
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return page(rows, f.Page, f.Limit), int64(len(rows)), nil
}

func (r *transactions) Summarize(_ context.Context, userID string, dateRange models.DateRange) ([]models.TransactionSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byType := map[models.TransactionType]*models.TransactionSummary{}
	for _, t := range r.matching(models.TransactionFilter{UserID: userID, Status: models.TransactionCompleted, Range: dateRange}) {
		sum, ok := byType[t.Type]
		if !ok {
			sum = &models.TransactionSummary{Type: t.Type}
			byType[t.Type] = sum
		}
		sum.TotalAmount = utils.AddMoney(sum.TotalAmount, t.Amount)
		sum.TotalNetAmount = utils.AddMoney(sum.TotalNetAmount, t.NetAmount)
		sum.Count++
	}
	out := []models.TransactionSummary{}
	for _, sum := range byType {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

type counters struct{ s *Store }

func (r *counters) Next(_ context.Context, key string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.counters[key]++
	return r.s.counters[key], nil
}

type bookings struct{ s *Store }

func (r *bookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, utils.NewNotFoundError("booking", id)
	}
	return &b, nil
}

func (r *bookings) AttachOrder(_ context.Context, id string, d models.BookingPaymentDetails) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return utils.NewNotFoundError("booking", id)
	}
	if b.PaymentDetails.Paid() {
		return utils.NewInvalidStateError("booking %s is already paid", id)
	}
	d.InvoiceID = b.PaymentDetails.InvoiceID
	b.PaymentDetails = d
	b.UpdatedAt = time.Now()
	r.s.bookings[id] = b
	return nil
}

func (r *bookings) SetPaymentOutcome(_ context.Context, id, status string, paymentStatus models.PaymentStatus, invoiceID string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, utils.NewNotFoundError("booking", id)
	}
	b.Status = status
	b.PaymentDetails.PaymentStatus = paymentStatus
	if invoiceID != "" {
		b.PaymentDetails.InvoiceID = invoiceID
	}
	b.UpdatedAt = time.Now()
	r.s.bookings[id] = b
	return &b, nil
}

type users struct{ s *Store }

func (r *users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("user", id)
	}
	return &u, nil
}
