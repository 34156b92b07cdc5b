package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	memoryRepo "cmsledger/database/repository/memory"
)

func TestNextInvoiceNumberFormat(t *testing.T) {
	a := NewAllocator(memoryRepo.NewStore().Counters())
	jan := time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

	for _, want := range []string{"INV-202501-0001", "INV-202501-0002"} {
		got, err := a.NextInvoiceNumber(context.Background(), jan)
		if err != nil {
			t.Fatalf("NextInvoiceNumber: %v", err)
		}
		if got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}

	feb := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	got, err := a.NextInvoiceNumber(context.Background(), feb)
	if err != nil {
		t.Fatalf("NextInvoiceNumber: %v", err)
	}
	if got != "INV-202502-0001" {
		t.Fatalf("new month should restart, got %s", got)
	}
}

func TestMonthPrefixUsesUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2025-02-01 02:00 IST is still January in UTC.
	local := time.Date(2025, time.February, 1, 2, 0, 0, 0, ist)
	if got := MonthPrefix(local); got != "INV-202501" {
		t.Fatalf("got %s", got)
	}
}

func TestNextInvoiceNumberConcurrent(t *testing.T) {
	const callers = 50
	a := NewAllocator(memoryRepo.NewStore().Counters())
	now := time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.NextInvoiceNumber(context.Background(), now)
			if err != nil {
				t.Errorf("NextInvoiceNumber: %v", err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	var got []string
	seen := map[string]bool{}
	for n := range results {
		if seen[n] {
			t.Fatalf("duplicate invoice number %s", n)
		}
		seen[n] = true
		got = append(got, n)
	}
	if len(got) != callers {
		t.Fatalf("expected %d numbers, got %d", callers, len(got))
	}

	sort.Strings(got)
	if got[0] != "INV-202501-0001" || got[callers-1] != "INV-202501-0050" {
		t.Fatalf("expected a gapless 0001..0050 range, got %s..%s", got[0], got[callers-1])
	}
}
