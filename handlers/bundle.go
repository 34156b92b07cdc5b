package handlers

import (
	userRepoPkg "cmsledger/database/repository/user"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	UserRepo userRepoPkg.UserRepository

	// Payment endpoints
	CreateOrderHandler      gin.HandlerFunc
	VerifyPaymentHandler    gin.HandlerFunc
	PaymentFailureHandler   gin.HandlerFunc
	ListPaymentsHandler     gin.HandlerFunc
	ListTransactionsHandler gin.HandlerFunc
	RefundHandler           gin.HandlerFunc
	StripeWebhookHandler    gin.HandlerFunc

	// Invoice endpoints
	GetInvoiceHandler          gin.HandlerFunc
	DownloadInvoiceHandler     gin.HandlerFunc
	ListInvoicesHandler        gin.HandlerFunc
	UpdateInvoiceStatusHandler gin.HandlerFunc
	RenderInvoiceHandler       gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

func NewHandlerBundle(users userRepoPkg.UserRepository, ph *PaymentHandler, ih *InvoiceHandler, wh *WebhookHandler) *HandlerBundle {
	return &HandlerBundle{
		UserRepo: users,

		CreateOrderHandler:      ph.CreateOrderHandler,
		VerifyPaymentHandler:    ph.VerifyPaymentHandler,
		PaymentFailureHandler:   ph.PaymentFailureHandler,
		ListPaymentsHandler:     ph.ListPaymentsHandler,
		ListTransactionsHandler: ph.ListTransactionsHandler,
		RefundHandler:           ph.RefundHandler,
		StripeWebhookHandler:    wh.StripeWebhookHandler,

		GetInvoiceHandler:          ih.GetInvoiceHandler,
		DownloadInvoiceHandler:     ih.DownloadInvoiceHandler,
		ListInvoicesHandler:        ih.ListInvoicesHandler,
		UpdateInvoiceStatusHandler: ih.UpdateInvoiceStatusHandler,
		RenderInvoiceHandler:       ih.RenderInvoiceHandler,

		HealthHandler: HealthHandler,
	}
}
