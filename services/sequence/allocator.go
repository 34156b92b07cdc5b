package sequence

import (
	"context"
	"fmt"
	"time"

	counterRepo "cmsledger/database/repository/counter"
)

// Allocator issues invoice numbers INV-YYYYMM-NNNN from an atomic per-month
// counter. Numbers within a month strictly increase and are never reused.
type Allocator struct {
	counters counterRepo.CounterRepository
}

func NewAllocator(counters counterRepo.CounterRepository) *Allocator {
	return &Allocator{counters: counters}
}

// MonthPrefix is the counter bucket for now, evaluated in UTC.
func MonthPrefix(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("INV-%04d%02d", now.Year(), int(now.Month()))
}

// NextInvoiceNumber allocates the next number in now's month. Called inside a
// unit of work, an aborted transaction also rolls the counter back.
func (a *Allocator) NextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := MonthPrefix(now)
	seq, err := a.counters.Next(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("allocate invoice number for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%04d", prefix, seq), nil
}
