package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cmsledger/models"

	"github.com/hibiken/asynq"
)

const (
	TypeRenderInvoice       = "invoice:render"
	TypePaymentConfirmation = "payment:confirmation"

	// QueueLedger carries all ledger follow-up work.
	QueueLedger = "ledger"
)

// NewRenderInvoiceTask builds a render job. The task id dedups jobs already queued for the invoice.
func NewRenderInvoiceTask(invoiceID string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(models.RenderInvoicePayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeRenderInvoice, b)
	opts := []asynq.Option{
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(8),
		asynq.TaskID("render:" + invoiceID),
	}
	return task, opts, nil
}

func NewPaymentConfirmationTask(payload models.PaymentConfirmationPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypePaymentConfirmation, b)
	opts := []asynq.Option{
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(3),
		asynq.TaskID("confirm:" + payload.PaymentID),
	}
	return task, opts, nil
}

// Client is the part of *asynq.Client the enqueuer uses.
type Client interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules ledger follow-up work on asynq.
type Enqueuer struct {
	client Client
}

func NewEnqueuer(client Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueRender queues rendering for invoiceID. An identical job already in the queue counts as success.
func (e *Enqueuer) EnqueueRender(ctx context.Context, invoiceID string) error {
	task, opts, err := NewRenderInvoiceTask(invoiceID)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts)
}

func (e *Enqueuer) EnqueuePaymentConfirmation(ctx context.Context, payload models.PaymentConfirmationPayload) error {
	task, opts, err := NewPaymentConfirmationTask(payload)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task, opts)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task, opts []asynq.Option) error {
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}
