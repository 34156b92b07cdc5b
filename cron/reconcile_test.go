package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memoryRepo "cmsledger/database/repository/memory"
	"cmsledger/models"
	"cmsledger/services/payment"

	"go.uber.org/zap"
)

type fakeOrders struct {
	mu       sync.Mutex
	outcomes map[string]payment.ReconcileOutcome
	seen     []string
	resumed  []string
	stuck    map[string]bool
}

func (f *fakeOrders) ReconcileOrder(_ context.Context, orderID string) (payment.ReconcileOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, orderID)
	outcome, ok := f.outcomes[orderID]
	if !ok {
		return "", errors.New("gateway unavailable")
	}
	return outcome, nil
}

func (f *fakeOrders) ResumeRefund(_ context.Context, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, transactionID)
	if f.stuck[transactionID] {
		return errors.New("gateway unavailable")
	}
	return nil
}

type fakeRenders struct {
	ids []string
}

func (f *fakeRenders) EnqueueRender(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestReconcilerRunOnce(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	store := memoryRepo.NewStore()

	for _, p := range []models.Payment{
		{ID: "p1", OrderID: "o1", Status: models.PaymentPending, CreatedAt: old},
		{ID: "p2", OrderID: "o2", Status: models.PaymentPending, CreatedAt: old},
		{ID: "p3", OrderID: "o3", Status: models.PaymentPending, CreatedAt: old},
		{ID: "p4", OrderID: "o4", Status: models.PaymentPending, CreatedAt: old},
		{ID: "p5", OrderID: "o5", Status: models.PaymentPending, CreatedAt: now}, // too fresh
		{ID: "p6", OrderID: "o6", Status: models.PaymentCompleted, CreatedAt: old},
	} {
		store.PutPayment(p)
	}
	ctx := context.Background()
	for _, inv := range []models.Invoice{
		{ID: "i1", InvoiceNumber: "INV-202501-0001", PaymentID: "p6", RenderStatus: models.RenderFailed, CreatedAt: old},
		{ID: "i2", InvoiceNumber: "INV-202501-0002", PaymentID: "p7", RenderStatus: models.RenderRendered, CreatedAt: old},
	} {
		inv := inv
		if err := store.Invoices().Create(ctx, &inv); err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}

	orders := &fakeOrders{outcomes: map[string]payment.ReconcileOutcome{
		"o1": payment.ReconcileCompleted,
		"o2": payment.ReconcileFailed,
		"o3": payment.ReconcilePending,
	}}
	renders := &fakeRenders{}
	r := NewReconciler(store.Payments(), store.Invoices(), store.Transactions(), orders, renders, zap.NewNop(), 15*time.Minute, 50, 3)
	r.now = func() time.Time { return now }

	report := r.RunOnce(ctx)
	want := Report{Completed: 1, Failed: 1, Pending: 1, Errors: 1, Rerendered: 1}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}
	if len(orders.seen) != 4 {
		t.Fatalf("expected 4 orders polled, got %v", orders.seen)
	}
	if len(renders.ids) != 1 || renders.ids[0] != "i1" {
		t.Fatalf("unexpected re-renders %v", renders.ids)
	}
}

func TestReconcilerResumesStaleRefunds(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	store := memoryRepo.NewStore()
	ctx := context.Background()

	for _, txn := range []models.Transaction{
		{TransactionID: "RFD-1", Type: models.TransactionRefund, Status: models.TransactionPending, Amount: 10, CreatedAt: old},
		{TransactionID: "RFD-2", Type: models.TransactionRefund, Status: models.TransactionPending, Amount: 10, CreatedAt: old},
		{TransactionID: "RFD-3", Type: models.TransactionRefund, Status: models.TransactionPending, Amount: 10, CreatedAt: now}, // in flight
		{TransactionID: "RFD-4", Type: models.TransactionRefund, Status: models.TransactionCompleted, Amount: 10, CreatedAt: old},
		{TransactionID: "PAY-1", Type: models.TransactionPayment, Status: models.TransactionPending, Amount: 10, CreatedAt: old},
	} {
		txn := txn
		if err := store.Transactions().Create(ctx, &txn); err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	orders := &fakeOrders{stuck: map[string]bool{"RFD-2": true}}
	r := NewReconciler(store.Payments(), store.Invoices(), store.Transactions(), orders, &fakeRenders{}, zap.NewNop(), 15*time.Minute, 50, 3)
	r.now = func() time.Time { return now }

	report := r.RunOnce(ctx)
	want := Report{Refunds: 1, Errors: 1}
	if report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}
	if len(orders.resumed) != 2 {
		t.Fatalf("expected the two stale refunds to be resumed, got %v", orders.resumed)
	}
	for _, id := range orders.resumed {
		if id != "RFD-1" && id != "RFD-2" {
			t.Fatalf("unexpected refund resumed: %s", id)
		}
	}
}

func TestStartReconcilerRejectsBadSchedule(t *testing.T) {
	r := NewReconciler(nil, nil, nil, nil, nil, zap.NewNop(), time.Minute, 0, 0)
	if _, err := StartReconciler(context.Background(), r, "not a schedule"); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
}
