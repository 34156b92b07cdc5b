package routes

import (
	"time"

	"cmsledger/handlers"
	"cmsledger/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes registers payment, ledger and webhook endpoints.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/payments")
	{
		// Authenticated by the gateway signature, not a bearer token.
		api.POST("/webhook/stripe", hb.StripeWebhookHandler)

		user := api.Group("")
		user.Use(middleware.JWTAuthUserMiddleware(hb.UserRepo))
		user.POST("/create-order", hb.CreateOrderHandler)
		user.POST("/verify", hb.VerifyPaymentHandler)
		user.POST("/failure", hb.PaymentFailureHandler)

		// Users see their own records, operators see everyone's.
		shared := api.Group("")
		shared.Use(middleware.UserOrOperatorMiddleware(hb.UserRepo))
		shared.GET("/user/:userId", hb.ListPaymentsHandler)
		shared.GET("/invoice/:invoiceId", hb.GetInvoiceHandler)
		shared.GET("/invoice/:invoiceId/download", hb.DownloadInvoiceHandler)
		shared.GET("/transactions/:userId", hb.ListTransactionsHandler)

		api.POST("/refund", middleware.OperatorAuthMiddleware(), hb.RefundHandler)
	}
}

// RegisterBillingRoutes registers operator invoice management endpoints.
func RegisterBillingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	billing := r.Group("/api/billing")
	{
		billing.Use(middleware.OperatorAuthMiddleware())
		billing.GET("/invoices", hb.ListInvoicesHandler)
		billing.PUT("/invoice/:invoiceId/status", hb.UpdateInvoiceStatusHandler)
		billing.POST("/invoice/:invoiceId/render", hb.RenderInvoiceHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterPaymentRoutes(r, hb)
	RegisterBillingRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
