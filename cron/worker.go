package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cmsledger/config"
	"cmsledger/models"
	"cmsledger/services/notification"
	"cmsledger/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// InvoiceRenderer renders and stores one invoice.
type InvoiceRenderer interface {
	Render(ctx context.Context, invoiceID string) error
}

// ConfirmationSender delivers a payment confirmation to the user's device.
type ConfirmationSender interface {
	DeliverPaymentConfirmation(ctx context.Context, payload models.PaymentConfirmationPayload) error
}

// NewLedgerMux routes ledger background tasks to their handlers.
func NewLedgerMux(renderer InvoiceRenderer, sender ConfirmationSender, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRenderInvoice, handleRenderTask(renderer, logger))
	mux.HandleFunc(tasks.TypePaymentConfirmation, handleConfirmationTask(sender, logger))
	return mux
}

// InitLedgerWorker runs the asynq worker in background and returns the server for shutdown.
func InitLedgerWorker(renderer InvoiceRenderer, sender ConfirmationSender, logger *zap.Logger) *asynq.Server {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueLedger: 1,
			},
		},
	)
	mux := NewLedgerMux(renderer, sender, logger)

	go func() {
		logger.Info("[LedgerWorker] starting async worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil || errors.Is(err, asynq.ErrServerClosed) {
				return
			}
			logger.Error("[LedgerWorker] failed to start worker",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Fatal("[LedgerWorker] max retry attempts reached")
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func handleRenderTask(renderer InvoiceRenderer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.RenderInvoicePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("[RenderHandler] invalid payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := renderer.Render(ctx, p.InvoiceID); err != nil {
			logger.Warn("[RenderHandler] render failed", zap.String("invoiceId", p.InvoiceID), zap.Error(err))
			return err
		}
		return nil
	}
}

func handleConfirmationTask(sender ConfirmationSender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p models.PaymentConfirmationPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("[ConfirmationHandler] invalid payload", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		err := sender.DeliverPaymentConfirmation(ctx, p)
		if errors.Is(err, notification.ErrNoDeviceToken) {
			logger.Info("[ConfirmationHandler] user has no device, dropping", zap.String("userId", p.UserID))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			logger.Warn("[ConfirmationHandler] delivery failed", zap.String("paymentId", p.PaymentID), zap.Error(err))
		}
		return err
	}
}
