package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmsledger/config"
	"cmsledger/cron"
	"cmsledger/database"
	"cmsledger/database/repository"
	"cmsledger/handlers"
	"cmsledger/middleware"
	"cmsledger/models"
	"cmsledger/routes"
	"cmsledger/services/events"
	"cmsledger/services/gateway"
	"cmsledger/services/invoice"
	"cmsledger/services/ledger"
	"cmsledger/services/notification"
	"cmsledger/services/payment"
	"cmsledger/services/sequence"
	"cmsledger/services/storage"
	"cmsledger/services/tasks"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	if err := config.AppConfig.Validate(); err != nil {
		logger.Fatal("main: invalid configuration", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	database.InitDB()
	utils.InitCache()
	utils.StartHealthMonitor(rootCtx, utils.GetCacheClient(), database.MongoClient, 15*time.Second)

	// repositories.
	repos := repository.NewMongoRepositories()
	txManager := database.NewTxManager(database.MongoClient)

	// infrastructure.
	fileStore, err := storage.NewFromConfig(rootCtx)
	if err != nil {
		logger.Fatal("main: failed to initialize invoice file store", zap.Error(err))
	}

	queueOpts := utils.QueueRedisOptions()
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: queueOpts.Addr, Password: queueOpts.Password, DB: queueOpts.DB})
	defer asynqClient.Close()
	enqueuer := tasks.NewEnqueuer(asynqClient)

	var publisher interface {
		payment.EventPublisher
		Close() error
	} = events.NopPublisher{}
	if config.AppConfig.KafkaBrokers != "" {
		publisher = events.NewKafkaPublisher(config.AppConfig.KafkaBrokers, config.AppConfig.KafkaLedgerTopic, logger)
	}
	defer publisher.Close()

	// services.
	recorder := ledger.NewRecorder(repos.Transactions, ledger.FeePolicy{
		GatewayPercent:  config.AppConfig.GatewayFeePercent,
		PlatformPercent: config.AppConfig.PlatformFeePercent,
	}, logger)
	builder := invoice.NewBuilder(repos.Invoices, sequence.NewAllocator(repos.Counters), config.AppConfig.GSTRatePercent)
	issuer := invoice.Issuer{
		Name:    config.AppConfig.IssuerName,
		Address: config.AppConfig.IssuerAddress,
		Contact: config.AppConfig.IssuerContact,
	}
	renderer := invoice.NewRenderer(repos.Invoices, fileStore, issuer, logger)
	invoiceService := invoice.NewService(repos.Invoices, fileStore, enqueuer, logger)

	paymentService := &payment.DefaultPaymentService{
		Payments:        repos.Payments,
		Bookings:        repos.Bookings,
		Users:           repos.Users,
		Invoices:        repos.Invoices,
		Tx:              txManager,
		Ledger:          recorder,
		Invoicer:        builder,
		Gateway:         gateway.NewStripeGateway(config.AppConfig.StripeSecretKey, logger),
		Verifier:        payment.NewSignatureVerifier(config.AppConfig.GatewayKeySecret),
		Renders:         enqueuer,
		Notifier:        notification.NewQueueNotifier(enqueuer, logger),
		Events:          publisher,
		Cache:           payment.NewRedisCompletionCache(utils.GetCacheClient(), config.AppConfig.CompletionCacheTTL),
		Logger:          logger,
		GatewayKeyID:    config.AppConfig.GatewayKeyID,
		DefaultCurrency: config.AppConfig.DefaultCurrency,
	}

	// background workers.
	var sender cron.ConfirmationSender = disabledPush{logger: logger}
	if fcm, err := utils.NewFCMClient(rootCtx); err == nil {
		sender = notification.NewPushService(repos.Users, fcm, logger)
	} else {
		logger.Warn("main: push notifications disabled", zap.Error(err))
	}
	worker := cron.InitLedgerWorker(renderer, sender, logger)

	reconciler := cron.NewReconciler(repos.Payments, repos.Invoices, repos.Transactions, paymentService, enqueuer, logger,
		config.AppConfig.ReconcileStaleAfter, config.AppConfig.ReconcileBatchSize, config.AppConfig.ReconcileWorkers)
	scheduler, err := cron.StartReconciler(rootCtx, reconciler, config.AppConfig.ReconcileSchedule)
	if err != nil {
		logger.Fatal("main: invalid reconcile schedule", zap.Error(err))
	}

	// http.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))

	handlerBundle := handlers.NewHandlerBundle(
		repos.Users,
		&handlers.PaymentHandler{Payments: paymentService, Ledger: recorder},
		&handlers.InvoiceHandler{Invoices: invoiceService},
		&handlers.WebhookHandler{Payments: paymentService, Secret: config.AppConfig.StripeWebhookSecret},
	)
	routes.RegisterRoutes(router, handlerBundle)

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	worker.Shutdown()
	stop()
	if err := database.MongoClient.Disconnect(ctx); err != nil {
		logger.Sugar().Errorf("main: mongo disconnect: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// disabledPush stands in when FCM credentials are not configured.
type disabledPush struct {
	logger *zap.Logger
}

func (d disabledPush) DeliverPaymentConfirmation(_ context.Context, p models.PaymentConfirmationPayload) error {
	d.logger.Debug("push disabled, skipping payment confirmation", zap.String("paymentId", p.PaymentID))
	return nil
}
