package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	memoryRepo "cmsledger/database/repository/memory"
	"cmsledger/models"
	"cmsledger/utils"

	"go.uber.org/zap"
)

func newTestRecorder(store *memoryRepo.Store) *Recorder {
	r := NewRecorder(store.Transactions(), FeePolicy{GatewayPercent: 2}, zap.NewNop())
	r.now = func() time.Time { return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRecordPaymentFees(t *testing.T) {
	store := memoryRepo.NewStore()
	r := newTestRecorder(store)

	txn, err := r.Record(context.Background(), Entry{
		Type: models.TransactionPayment, Amount: 500, Currency: "INR", Method: models.MethodGateway,
		PaymentID: "P1", BookingID: "B1", UserID: "U1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if txn.Fees.Gateway != 10 || txn.Fees.Total != 10 || txn.NetAmount != 490 {
		t.Fatalf("unexpected fees %+v net %v", txn.Fees, txn.NetAmount)
	}
	if txn.Status != models.TransactionPending {
		t.Fatalf("status = %s", txn.Status)
	}
	if !strings.HasPrefix(txn.TransactionID, "PAY") || len(txn.TransactionID) != 14 {
		t.Fatalf("unexpected transaction id %q", txn.TransactionID)
	}
}

func TestNetAmountIgnoresCallerTotal(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		fees    models.Fees
		wantNet float64
	}{
		{"total understated", 100, models.Fees{Gateway: 2, Platform: 1, Total: 0}, 97},
		{"total overstated", 100, models.Fees{Gateway: 2, Platform: 0, Total: 50}, 98},
		{"no fees", 42.5, models.Fees{}, 42.5},
		{"fractional", 333.33, models.Fees{Gateway: 6.67}, 326.66},
	}
	store := memoryRepo.NewStore()
	r := newTestRecorder(store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees := tt.fees
			txn, err := r.Record(context.Background(), Entry{Type: models.TransactionAdjustment, Amount: tt.amount, Fees: &fees})
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if txn.NetAmount != tt.wantNet {
				t.Fatalf("net = %v, want %v", txn.NetAmount, tt.wantNet)
			}
			if utils.SubMoney(txn.Amount, txn.Fees.Total) != txn.NetAmount {
				t.Fatalf("netAmount != amount - fees.total: %+v", txn)
			}
		})
	}

	for _, row := range store.AllTransactions() {
		if utils.SubMoney(row.Amount, row.Fees.Total) != row.NetAmount {
			t.Fatalf("persisted row breaks net-amount invariant: %+v", row)
		}
	}
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	r := newTestRecorder(memoryRepo.NewStore())
	_, err := r.Record(context.Background(), Entry{Type: models.TransactionRefund, Amount: 0})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordRegeneratesCollidingID(t *testing.T) {
	store := memoryRepo.NewStore()
	r := newTestRecorder(store)
	draws := []int{7, 7, 8}
	r.random = func() int {
		n := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return n
	}

	first, err := r.Record(context.Background(), Entry{Type: models.TransactionFee, Amount: 1})
	if err != nil {
		t.Fatalf("first Record: %v", err)
	}
	second, err := r.Record(context.Background(), Entry{Type: models.TransactionFee, Amount: 1})
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if first.TransactionID == second.TransactionID {
		t.Fatalf("ids collided: %s", first.TransactionID)
	}
}

func TestTerminalTransactionsAreFrozen(t *testing.T) {
	store := memoryRepo.NewStore()
	r := newTestRecorder(store)
	ctx := context.Background()

	txn, err := r.Record(ctx, Entry{Type: models.TransactionPayment, Amount: 500})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.MarkCompleted(ctx, txn, "pay_1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := r.MarkFailed(ctx, txn, "late failure"); !errors.Is(err, utils.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}

	stored, err := store.Transactions().GetByTransactionID(ctx, txn.TransactionID)
	if err != nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
	if stored.Status != models.TransactionCompleted || stored.GatewayTransactionID != "pay_1" {
		t.Fatalf("completed row was altered: %+v", stored)
	}
}

func TestSummarize(t *testing.T) {
	store := memoryRepo.NewStore()
	r := newTestRecorder(store)
	ctx := context.Background()

	for _, e := range []Entry{
		{Type: models.TransactionPayment, Amount: 500, UserID: "U1"},
		{Type: models.TransactionPayment, Amount: 250, UserID: "U1"},
		{Type: models.TransactionRefund, Amount: 100, UserID: "U1", Fees: &models.Fees{}},
		{Type: models.TransactionPayment, Amount: 999, UserID: "U2"},
	} {
		txn, err := r.Record(ctx, e)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if err := r.MarkCompleted(ctx, txn, ""); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
	}
	// Pending rows are excluded.
	if _, err := r.Record(ctx, Entry{Type: models.TransactionPayment, Amount: 1000, UserID: "U1"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	summary, err := r.Summarize(ctx, "U1", models.DateRange{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := map[models.TransactionType]models.TransactionSummary{
		models.TransactionPayment: {Type: models.TransactionPayment, TotalAmount: 750, TotalNetAmount: 735, Count: 2},
		models.TransactionRefund:  {Type: models.TransactionRefund, TotalAmount: 100, TotalNetAmount: 100, Count: 1},
	}
	if len(summary) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(summary), len(want), summary)
	}
	for _, row := range summary {
		if row != want[row.Type] {
			t.Fatalf("row %s = %+v, want %+v", row.Type, row, want[row.Type])
		}
	}
}

