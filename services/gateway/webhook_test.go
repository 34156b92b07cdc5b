package gateway

import (
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

const testWebhookSecret = "whsec_test"

func signed(t *testing.T, payload string) string {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return sp.Header
}

func TestParseStripeWebhook(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantNil   bool
		wantKind  WebhookKind
		wantOrder string
		wantPay   string
		wantWhy   string
	}{
		{
			name:      "succeeded",
			payload:   `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","status":"succeeded","latest_charge":"ch_1"}}}`,
			wantKind:  WebhookPaymentSucceeded,
			wantOrder: "pi_1",
			wantPay:   "ch_1",
		},
		{
			name:      "failed",
			payload:   `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent","status":"requires_payment_method","last_payment_error":{"message":"card declined"}}}}`,
			wantKind:  WebhookPaymentFailed,
			wantOrder: "pi_2",
			wantWhy:   "card declined",
		},
		{
			name:    "ignored type",
			payload: `{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseStripeWebhook([]byte(tt.payload), signed(t, tt.payload), testWebhookSecret)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if ev != nil {
					t.Fatalf("expected ignored event, got %+v", ev)
				}
				return
			}
			if ev.Kind != tt.wantKind || ev.OrderID != tt.wantOrder || ev.PaymentID != tt.wantPay || ev.FailureReason != tt.wantWhy {
				t.Fatalf("unexpected event %+v", ev)
			}
		})
	}
}

func TestParseStripeWebhookRejectsBadSignature(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`
	header := signed(t, payload)

	if _, err := ParseStripeWebhook([]byte(payload+" "), header, testWebhookSecret); err == nil {
		t.Fatal("expected tampered payload to be rejected")
	}
	if _, err := ParseStripeWebhook([]byte(payload), header, "whsec_other"); err == nil {
		t.Fatal("expected wrong secret to be rejected")
	}
}
