package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookKind classifies the gateway events the ledger acts on.
type WebhookKind string

const (
	WebhookPaymentSucceeded WebhookKind = "payment_succeeded"
	WebhookPaymentFailed    WebhookKind = "payment_failed"
)

// WebhookEvent is a verified, normalized gateway event.
type WebhookEvent struct {
	ID            string
	Kind          WebhookKind
	OrderID       string
	PaymentID     string
	FailureReason string
}

// ParseStripeWebhook verifies the Stripe-Signature header and normalizes the event.
// It returns nil, nil for event types the ledger ignores.
func ParseStripeWebhook(payload []byte, signatureHeader, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe signature invalid: %w", err)
	}

	var kind WebhookKind
	switch event.Type {
	case "payment_intent.succeeded":
		kind = WebhookPaymentSucceeded
	case "payment_intent.payment_failed":
		kind = WebhookPaymentFailed
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe webhook: decode payment intent: %w", err)
	}

	state := intentState(&pi)
	return &WebhookEvent{
		ID:            event.ID,
		Kind:          kind,
		OrderID:       pi.ID,
		PaymentID:     state.PaymentID,
		FailureReason: state.FailureReason,
	}, nil
}
