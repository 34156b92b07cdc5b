package handlers

import (
	"errors"
	"io"
	"net/http"

	"cmsledger/middleware"
	"cmsledger/services/gateway"
	"cmsledger/services/payment"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

type WebhookHandler struct {
	Payments payment.PaymentService
	Secret   string
}

// StripeWebhookHandler handles POST /api/payments/webhook/stripe. Unknown orders
// and already settled payments are acknowledged so the gateway stops retrying.
func (h *WebhookHandler) StripeWebhookHandler(c *gin.Context) {
	logger := getLogger(c)
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusServiceUnavailable, "could not read body", err.Error())
		return
	}

	event, err := gateway.ParseStripeWebhook(payload, c.GetHeader("Stripe-Signature"), h.Secret)
	if err != nil {
		logger.Warn("webhook signature rejected", zap.String("ip", middleware.ClientIP(c)), zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "invalid webhook signature", "")
		return
	}
	if event == nil {
		respond(c, http.StatusOK, "event ignored", nil)
		return
	}

	ctx := c.Request.Context()
	switch event.Kind {
	case gateway.WebhookPaymentSucceeded:
		_, err = h.Payments.ReconcileOrder(ctx, event.OrderID)
	case gateway.WebhookPaymentFailed:
		_, err = h.Payments.HandlePaymentFailure(ctx, event.OrderID, event.FailureReason, "")
	}
	if err != nil && (errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrInvalidState)) {
		logger.Info("webhook acknowledged without change", zap.String("eventId", event.ID), zap.Error(err))
		err = nil
	}
	if err != nil {
		logger.Error("webhook processing failed", zap.String("eventId", event.ID), zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "event processed", gin.H{"eventId": event.ID})
}
