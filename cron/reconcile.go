package cron

import (
	"context"
	"sync"
	"time"

	invoiceRepo "cmsledger/database/repository/invoice"
	paymentRepo "cmsledger/database/repository/payment"
	transactionRepo "cmsledger/database/repository/transaction"
	"cmsledger/models"
	"cmsledger/services/payment"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OrderReconciler settles one order from what the gateway reports.
type OrderReconciler interface {
	ReconcileOrder(ctx context.Context, orderID string) (payment.ReconcileOutcome, error)
	ResumeRefund(ctx context.Context, transactionID string) error
}

type RenderQueue interface {
	EnqueueRender(ctx context.Context, invoiceID string) error
}

// Report counts what one reconciliation cycle did.
type Report struct {
	Completed  int
	Failed     int
	Pending    int
	Settled    int
	Errors     int
	Rerendered int
	Refunds    int
}

// Reconciler finds payments stuck in pending, refunds left half-recorded and
// invoices that never rendered, and syncs them with the gateway and the render queue.
type Reconciler struct {
	payments paymentRepo.PaymentRepository
	invoices invoiceRepo.InvoiceRepository
	txns     transactionRepo.TransactionRepository
	orders   OrderReconciler
	renders  RenderQueue
	logger   *zap.Logger

	staleAfter  time.Duration
	batchSize   int
	workerCount int
	now         func() time.Time
}

func NewReconciler(
	payments paymentRepo.PaymentRepository,
	invoices invoiceRepo.InvoiceRepository,
	txns transactionRepo.TransactionRepository,
	orders OrderReconciler,
	renders RenderQueue,
	logger *zap.Logger,
	staleAfter time.Duration,
	batchSize, workerCount int,
) *Reconciler {
	if batchSize < 1 {
		batchSize = 50
	}
	if workerCount < 1 {
		workerCount = 5
	}
	return &Reconciler{
		payments:    payments,
		invoices:    invoices,
		txns:        txns,
		orders:      orders,
		renders:     renders,
		logger:      logger,
		staleAfter:  staleAfter,
		batchSize:   batchSize,
		workerCount: workerCount,
		now:         time.Now,
	}
}

// StartReconciler schedules RunOnce on spec and returns the started scheduler.
func StartReconciler(ctx context.Context, r *Reconciler, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report := r.RunOnce(ctx)
		r.logger.Info("[Reconciler] cycle completed",
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("pending", report.Pending),
			zap.Int("refunds", report.Refunds),
			zap.Int("errors", report.Errors),
			zap.Int("rerendered", report.Rerendered))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	r.logger.Info("[Reconciler] scheduler started", zap.String("schedule", spec))
	return c, nil
}

// RunOnce performs one reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) Report {
	var report Report
	cutoff := r.now().Add(-r.staleAfter)
	r.syncPayments(ctx, cutoff, &report)
	r.resumeRefunds(ctx, cutoff, &report)
	r.resendRenders(ctx, cutoff, &report)
	return report
}

func (r *Reconciler) syncPayments(ctx context.Context, cutoff time.Time, report *Report) {
	stuck, err := r.payments.ListPendingOlderThan(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("[Reconciler] failed to list pending payments", zap.Error(err))
		report.Errors++
		return
	}
	if len(stuck) == 0 {
		return
	}
	r.logger.Info("[Reconciler] processing stuck payments", zap.Int("count", len(stuck)))

	jobs := make(chan models.Payment, len(stuck))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < r.workerCount; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for p := range jobs {
				outcome, err := r.orders.ReconcileOrder(ctx, p.OrderID)
				mu.Lock()
				if err != nil {
					report.Errors++
				} else {
					switch outcome {
					case payment.ReconcileCompleted:
						report.Completed++
					case payment.ReconcileFailed:
						report.Failed++
					case payment.ReconcilePending:
						report.Pending++
					default:
						report.Settled++
					}
				}
				mu.Unlock()
				if err != nil {
					r.logger.Warn("[Reconciler] order sync failed",
						zap.Int("worker", id), zap.String("orderId", p.OrderID), zap.Error(err))
				}
			}
		}(w)
	}
	for _, p := range stuck {
		jobs <- p
	}
	close(jobs)
	wg.Wait()
}

// resumeRefunds finishes refund rows still pending past the cutoff.
func (r *Reconciler) resumeRefunds(ctx context.Context, cutoff time.Time, report *Report) {
	rows, _, err := r.txns.List(ctx, models.TransactionFilter{
		Type:   models.TransactionRefund,
		Status: models.TransactionPending,
		Range:  models.DateRange{To: &cutoff},
		Page:   1,
		Limit:  r.batchSize,
	})
	if err != nil {
		r.logger.Error("[Reconciler] failed to list pending refunds", zap.Error(err))
		report.Errors++
		return
	}
	for _, txn := range rows {
		if err := r.orders.ResumeRefund(ctx, txn.TransactionID); err != nil {
			r.logger.Warn("[Reconciler] refund resume failed", zap.String("transactionId", txn.TransactionID), zap.Error(err))
			report.Errors++
			continue
		}
		report.Refunds++
	}
}

// resendRenders re-enqueues invoices whose rendering has not succeeded.
func (r *Reconciler) resendRenders(ctx context.Context, cutoff time.Time, report *Report) {
	pending, err := r.invoices.ListUnrendered(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("[Reconciler] failed to list unrendered invoices", zap.Error(err))
		report.Errors++
		return
	}
	for _, inv := range pending {
		if err := r.renders.EnqueueRender(ctx, inv.ID); err != nil {
			r.logger.Warn("[Reconciler] failed to re-enqueue render", zap.String("invoiceId", inv.ID), zap.Error(err))
			report.Errors++
			continue
		}
		report.Rerendered++
	}
}
