package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cmsledger/models"
	"cmsledger/services/notification"
	"cmsledger/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	rendered []string
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, invoiceID string) error {
	f.rendered = append(f.rendered, invoiceID)
	return f.err
}

type fakeSender struct {
	err error
}

func (f *fakeSender) DeliverPaymentConfirmation(context.Context, models.PaymentConfirmationPayload) error {
	return f.err
}

func TestRenderTaskHandler(t *testing.T) {
	renderer := &fakeRenderer{}
	mux := NewLedgerMux(renderer, &fakeSender{}, zap.NewNop())

	task, _, err := tasks.NewRenderInvoiceTask("inv-1")
	if err != nil {
		t.Fatalf("NewRenderInvoiceTask: %v", err)
	}
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(renderer.rendered) != 1 || renderer.rendered[0] != "inv-1" {
		t.Fatalf("unexpected renders %v", renderer.rendered)
	}

	renderer.err = errors.New("storage down")
	if err := mux.ProcessTask(context.Background(), task); err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("render failures must be retried, got %v", err)
	}

	bad := asynq.NewTask(tasks.TypeRenderInvoice, []byte("{"))
	if err := mux.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for a bad payload, got %v", err)
	}
}

func TestConfirmationTaskHandler(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("user U1: %w", notification.ErrNoDeviceToken)}
	mux := NewLedgerMux(&fakeRenderer{}, sender, zap.NewNop())

	task, _, err := tasks.NewPaymentConfirmationTask(models.PaymentConfirmationPayload{UserID: "U1", PaymentID: "P1"})
	if err != nil {
		t.Fatalf("NewPaymentConfirmationTask: %v", err)
	}
	if err := mux.ProcessTask(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry without a device token, got %v", err)
	}

	sender.err = nil
	if err := mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
}
