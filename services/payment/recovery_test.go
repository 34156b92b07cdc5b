package payment

import (
	"context"
	"errors"
	"testing"

	"cmsledger/database"
	bookingRepo "cmsledger/database/repository/booking"
	"cmsledger/models"
	"cmsledger/services/gateway"
	"cmsledger/utils"
)

// staleBookings serves bookings as they looked before any payment landed.
type staleBookings struct {
	bookingRepo.BookingRepository
}

func (b staleBookings) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := b.BookingRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	booking.PaymentDetails = models.BookingPaymentDetails{}
	return booking, nil
}

type abortingTx struct{}

func (abortingTx) RunInTx(context.Context, func(context.Context) error) error {
	return errors.New("transaction aborted")
}

// ctxTx refuses to start a unit of work on a cancelled context, as a real session would.
type ctxTx struct {
	next database.TxRunner
}

func (t ctxTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.next.RunInTx(ctx, fn)
}

func TestHandlePaymentFailureCancelsGatewayOrder(t *testing.T) {
	cases := []struct {
		name       string
		state      *gateway.OrderState
		cancelErr  error
		wantErr    error
		wantStatus models.PaymentStatus
	}{
		{name: "open order", wantStatus: models.PaymentFailed},
		{name: "captured order", state: &gateway.OrderState{Status: gateway.OrderPaid, PaymentID: "pi_1"}, wantErr: utils.ErrInvalidState, wantStatus: models.PaymentPending},
		{name: "gateway down", cancelErr: gateway.ErrProviderDown, wantErr: utils.ErrGateway, wantStatus: models.PaymentPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			order := h.order(t, "B1", 500)
			if tc.state != nil {
				tc.state.OrderID = order.OrderID
				h.gw.states[order.OrderID] = tc.state
			}
			h.gw.cancelErr = tc.cancelErr

			_, err := h.svc.HandlePaymentFailure(ctx, order.OrderID, "card declined", "U1")
			if tc.wantErr == nil && err != nil {
				t.Fatalf("HandlePaymentFailure: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			p, _ := h.store.Payments().GetByID(ctx, order.PaymentID)
			if p.Status != tc.wantStatus {
				t.Fatalf("payment status = %s, want %s", p.Status, tc.wantStatus)
			}
			if tc.wantErr == nil && (len(h.gw.cancels) != 1 || h.gw.cancels[0] != order.OrderID) {
				t.Fatalf("gateway order not cancelled: %v", h.gw.cancels)
			}
		})
	}
}

func TestCapturedOrderSettlesAfterRejectedFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	h.gw.states[order.OrderID] = &gateway.OrderState{OrderID: order.OrderID, Status: gateway.OrderPaid, PaymentID: "pi_1"}

	if _, err := h.svc.HandlePaymentFailure(ctx, order.OrderID, "timeout", "U1"); !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	got, err := h.svc.ReconcileOrder(ctx, order.OrderID)
	if err != nil || got != ReconcileCompleted {
		t.Fatalf("ReconcileOrder = %s, %v", got, err)
	}
	if _, err := h.store.Invoices().GetByPaymentID(ctx, order.PaymentID); err != nil {
		t.Fatalf("captured payment has no invoice: %v", err)
	}
}

func TestReconcileFlagsClosedOrderPaidAtGateway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	if _, err := h.svc.HandlePaymentFailure(ctx, order.OrderID, "card declined", "U1"); err != nil {
		t.Fatalf("HandlePaymentFailure: %v", err)
	}

	got, err := h.svc.ReconcileOrder(ctx, order.OrderID)
	if err != nil || got != ReconcileSettled {
		t.Fatalf("cancelled order: ReconcileOrder = %s, %v", got, err)
	}

	h.gw.states[order.OrderID] = &gateway.OrderState{OrderID: order.OrderID, Status: gateway.OrderPaid, PaymentID: "pi_late"}
	if _, err := h.svc.ReconcileOrder(ctx, order.OrderID); !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a failed payment captured at the gateway, got %v", err)
	}
	p, _ := h.store.Payments().GetByID(ctx, order.PaymentID)
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status = %s", p.Status)
	}
	if n := len(h.transactionsOfType(order.PaymentID, models.TransactionPayment)); n != 0 {
		t.Fatalf("expected no payment transactions, got %d", n)
	}
}

func TestRetryAfterFailureMintsNewOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.order(t, "B1", 500)
	if _, err := h.svc.HandlePaymentFailure(ctx, first.OrderID, "card declined", "U1"); err != nil {
		t.Fatalf("HandlePaymentFailure: %v", err)
	}

	second := h.order(t, "B1", 500)
	if second.OrderID == first.OrderID || second.PaymentID == first.PaymentID {
		t.Fatalf("retry reused the failed order: %+v", second)
	}
	p, _ := h.store.Payments().GetByID(ctx, second.PaymentID)
	if p.Status != models.PaymentPending {
		t.Fatalf("new payment status = %s", p.Status)
	}
	b, _ := h.store.Bookings().GetByID(ctx, "B1")
	if b.PaymentDetails.OrderID != second.OrderID || b.PaymentDetails.Attempt != 2 || b.PaymentDetails.PaymentStatus != models.PaymentPending {
		t.Fatalf("booking not moved to the new order: %+v", b.PaymentDetails)
	}

	again := h.order(t, "B1", 500)
	if again.OrderID != second.OrderID || again.PaymentID != second.PaymentID {
		t.Fatalf("retry of a pending attempt created another order: %+v", again)
	}
	if _, err := h.complete(second.OrderID, "pay_2"); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestCreateOrderRejectsPaidBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	if _, err := h.complete(order.OrderID, "pay_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	before, _ := h.store.Bookings().GetByID(ctx, "B1")

	_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{BookingID: "B1", UserID: "U1", Amount: 700})
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	after, _ := h.store.Bookings().GetByID(ctx, "B1")
	if after.PaymentDetails != before.PaymentDetails {
		t.Fatalf("booking payment details changed: %+v -> %+v", before.PaymentDetails, after.PaymentDetails)
	}
	if n := len(h.store.AllPayments()); n != 1 {
		t.Fatalf("expected 1 payment, got %d", n)
	}
}

func TestCreateOrderCancelsOrderWhenBookingPaidMeanwhile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	if _, err := h.complete(order.OrderID, "pay_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	h.svc.Bookings = staleBookings{h.store.Bookings()}

	_, err := h.svc.CreateOrder(ctx, CreateOrderRequest{BookingID: "B1", UserID: "U1", Amount: 700})
	if !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(h.gw.cancels) != 1 || h.gw.cancels[0] == order.OrderID {
		t.Fatalf("orphaned order not cancelled: %v", h.gw.cancels)
	}
	b, _ := h.store.Bookings().GetByID(ctx, "B1")
	if b.PaymentDetails.OrderID != order.OrderID || b.PaymentDetails.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("paid booking was relinked: %+v", b.PaymentDetails)
	}
	if _, err := h.store.Payments().GetByOrderID(ctx, h.gw.cancels[0]); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("orphaned payment was kept: %v", err)
	}
}

func TestSubCentAmountsAreRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	if _, err := h.complete(order.OrderID, "pay_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := h.svc.CreateOrder(ctx, CreateOrderRequest{BookingID: "B2", UserID: "U1", Amount: 0.004}); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("CreateOrder: expected ErrValidation, got %v", err)
	}
	if _, err := h.svc.Refund(ctx, RefundRequest{PaymentID: order.PaymentID, Amount: 0.004, Reason: "x", ProcessedBy: "ops"}); !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("Refund: expected ErrValidation, got %v", err)
	}
	if n := len(h.transactionsOfType(order.PaymentID, models.TransactionRefund)); n != 0 {
		t.Fatalf("expected no refund rows, got %d", n)
	}
}

// strandRefund leaves a pending refund row behind an accepted gateway refund.
func strandRefund(t *testing.T, h *harness, paymentID string) models.Transaction {
	t.Helper()
	h.svc.Tx = abortingTx{}
	if _, err := h.svc.Refund(context.Background(), RefundRequest{PaymentID: paymentID, Amount: 200, Reason: "damaged parcel", ProcessedBy: "ops"}); err == nil {
		t.Fatal("expected the refund write to fail")
	}
	h.svc.Tx = h.store
	var pending []models.Transaction
	for _, txn := range h.transactionsOfType(paymentID, models.TransactionRefund) {
		if txn.Status == models.TransactionPending {
			pending = append(pending, txn)
		}
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending refund row, got %+v", pending)
	}
	return pending[0]
}

func TestResumeRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.order(t, "B1", 500)
	if _, err := h.complete(order.OrderID, "pay_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	txn := strandRefund(t, h, order.PaymentID)

	if err := h.svc.ResumeRefund(ctx, txn.TransactionID); err != nil {
		t.Fatalf("ResumeRefund: %v", err)
	}
	p, _ := h.store.Payments().GetByID(ctx, order.PaymentID)
	if p.Status != models.PaymentRefunded || p.RefundAmount != 200 || p.RefundReason != "damaged parcel" {
		t.Fatalf("unexpected payment %+v", p)
	}
	stored, _ := h.store.Transactions().GetByTransactionID(ctx, txn.TransactionID)
	if stored.Status != models.TransactionCompleted || stored.GatewayTransactionID != "re_"+order.OrderID {
		t.Fatalf("unexpected refund row %+v", stored)
	}
	for _, key := range h.gw.refunds {
		if key != "refund_"+order.PaymentID {
			t.Fatalf("gateway refund used key %s", key)
		}
	}

	// Finished rows are left alone.
	if err := h.svc.ResumeRefund(ctx, txn.TransactionID); err != nil {
		t.Fatalf("second ResumeRefund: %v", err)
	}
	if len(h.gw.refunds) != 2 {
		t.Fatalf("expected no further gateway refund, got %v", h.gw.refunds)
	}
}

func TestResumeRefundClosesUnrecoverableRows(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(t *testing.T, h *harness, paymentID string)
		wantErr error
	}{
		{
			name: "payment refunded by a later request",
			prepare: func(t *testing.T, h *harness, paymentID string) {
				if _, err := h.svc.Refund(context.Background(), RefundRequest{PaymentID: paymentID, Amount: 100, Reason: "retry", ProcessedBy: "ops"}); err != nil {
					t.Fatalf("Refund: %v", err)
				}
			},
		},
		{
			name:    "gateway rejects the refund",
			prepare: func(_ *testing.T, h *harness, _ string) { h.gw.refundErr = gateway.ErrDeclined },
			wantErr: utils.ErrGateway,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			order := h.order(t, "B1", 500)
			if _, err := h.complete(order.OrderID, "pay_1"); err != nil {
				t.Fatalf("complete: %v", err)
			}
			txn := strandRefund(t, h, order.PaymentID)
			tc.prepare(t, h, order.PaymentID)

			err := h.svc.ResumeRefund(ctx, txn.TransactionID)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("ResumeRefund: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			stored, _ := h.store.Transactions().GetByTransactionID(ctx, txn.TransactionID)
			if stored.Status != models.TransactionFailed {
				t.Fatalf("refund row status = %s, want failed", stored.Status)
			}
		})
	}
}

func TestCompletionOutlivesCallerContext(t *testing.T) {
	h := newHarness(t)
	order := h.order(t, "B1", 500)
	h.svc.Tx = ctxTx{next: h.store}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.svc.CompletePayment(ctx, CompleteRequest{
		OrderID:   order.OrderID,
		PaymentID: "pay_1",
		Signature: h.svc.Verifier.Sign(order.OrderID, "pay_1"),
		UserID:    "U1",
	})
	if err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}
	if res.Payment.Status != models.PaymentCompleted {
		t.Fatalf("payment status = %s", res.Payment.Status)
	}
}
