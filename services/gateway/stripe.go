package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cmsledger/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway mints orders as PaymentIntents and refunds through the Stripe API.
type StripeGateway struct {
	client *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a StripeGateway with its own client; no global stripe.Key is set.
func NewStripeGateway(apiKey string, logger *zap.Logger) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{client: sc, logger: logger}
}

// CreateOrder creates a PaymentIntent for amount (major units). The idempotency
// key makes a retried call return the same intent instead of minting a second one.
func (g *StripeGateway) CreateOrder(ctx context.Context, amount float64, currency, idempotencyKey string, metadata map[string]string) (*Order, error) {
	minor := utils.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, g.mapStripeError(err)
	}

	return &Order{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Status:       normalizeIntentStatus(pi.Status),
	}, nil
}

// GetOrderStatus polls the PaymentIntent behind orderID.
func (g *StripeGateway) GetOrderStatus(ctx context.Context, orderID string) (*OrderState, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.client.PaymentIntents.Get(orderID, params)
	if err != nil {
		return nil, g.mapStripeError(err)
	}
	return intentState(pi), nil
}

// Cancel closes the PaymentIntent behind orderID so it can no longer be paid.
// An intent that is already cancelled is not an error; one that already
// succeeded yields ErrAlreadyCaptured.
func (g *StripeGateway) Cancel(ctx context.Context, orderID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	_, err := g.client.PaymentIntents.Cancel(orderID, params)
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) || stripeErr.Code != stripe.ErrorCodePaymentIntentUnexpectedState {
		return g.mapStripeError(err)
	}
	state, gerr := g.GetOrderStatus(ctx, orderID)
	if gerr != nil {
		return gerr
	}
	switch state.Status {
	case OrderFailed:
		return nil
	case OrderPaid:
		return ErrAlreadyCaptured
	default:
		return g.mapStripeError(err)
	}
}

// Refund refunds amount (major units) of the intent behind orderID.
func (g *StripeGateway) Refund(ctx context.Context, orderID string, amount float64, reason, idempotencyKey string) (*RefundReceipt, error) {
	minor := utils.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, ErrInvalidAmount
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(orderID),
		Amount:        stripe.Int64(minor),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := g.client.Refunds.New(params)
	if err != nil {
		return nil, g.mapStripeError(err)
	}
	return &RefundReceipt{ID: r.ID, Status: string(r.Status)}, nil
}

func intentState(pi *stripe.PaymentIntent) *OrderState {
	state := &OrderState{OrderID: pi.ID, Status: normalizeIntentStatus(pi.Status)}
	if pi.LatestCharge != nil {
		state.PaymentID = pi.LatestCharge.ID
	}
	if pi.LastPaymentError != nil {
		state.FailureReason = pi.LastPaymentError.Msg
	}
	return state
}

func normalizeIntentStatus(s stripe.PaymentIntentStatus) OrderStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return OrderPaid
	case stripe.PaymentIntentStatusCanceled:
		return OrderFailed
	default:
		// requires_payment_method is also the initial state, so it only counts as
		// failed when the webhook reports payment_failed.
		return OrderPending
	}
}

// mapStripeError keeps stripe-go types out of the ledger services.
func (g *StripeGateway) mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		g.logger.Warn("stripe request failed",
			zap.String("code", string(stripeErr.Code)),
			zap.Int("httpStatus", stripeErr.HTTPStatusCode),
			zap.String("requestId", stripeErr.RequestID))

		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeBalanceInsufficient:
			return fmt.Errorf("%w: %s: %w", ErrDeclined, stripeErr.Msg, err)
		case stripe.ErrorCodeIdempotencyKeyInUse:
			return fmt.Errorf("gateway: idempotency key collision: %w", err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrProviderDown, err)
		}
	}
	return fmt.Errorf("gateway internal error: %w", err)
}
