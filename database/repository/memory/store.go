// Package memoryRepo holds in-memory repositories used by service and handler tests.
package memoryRepo

import (
	"context"
	"sync"

	bookingRepo "cmsledger/database/repository/booking"
	counterRepo "cmsledger/database/repository/counter"
	invoiceRepo "cmsledger/database/repository/invoice"
	paymentRepo "cmsledger/database/repository/payment"
	transactionRepo "cmsledger/database/repository/transaction"
	userRepo "cmsledger/database/repository/user"
	"cmsledger/models"
)

// Store keeps every collection in maps guarded by one mutex. RunInTx serializes
// units of work and restores a snapshot when fn fails.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	payments     map[string]models.Payment     // by id
	invoices     map[string]models.Invoice     // by id
	transactions map[string]models.Transaction // by transactionId
	counters     map[string]int64
	bookings     map[string]models.Booking
	users        map[string]models.User
}

func NewStore() *Store {
	return &Store{
		payments:     map[string]models.Payment{},
		invoices:     map[string]models.Invoice{},
		transactions: map[string]models.Transaction{},
		counters:     map[string]int64{},
		bookings:     map[string]models.Booking{},
		users:        map[string]models.User{},
	}
}

func (s *Store) Payments() paymentRepo.PaymentRepository { return &payments{s} }

func (s *Store) Invoices() invoiceRepo.InvoiceRepository { return &invoices{s} }

func (s *Store) Transactions() transactionRepo.TransactionRepository { return &transactions{s} }

func (s *Store) Counters() counterRepo.CounterRepository { return &counters{s} }

func (s *Store) Bookings() bookingRepo.BookingRepository { return &bookings{s} }

func (s *Store) Users() userRepo.UserRepository { return &users{s} }

// PutBooking and PutUser seed collections the ledger only reads.
func (s *Store) PutBooking(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutPayment seeds a payment directly, bypassing uniqueness checks.
func (s *Store) PutPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

// AllPayments, AllTransactions and AllInvoices return copies of every row for assertions.
func (s *Store) AllPayments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func (s *Store) AllTransactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	return out
}

func (s *Store) AllInvoices() []models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	return out
}

type snapshot struct {
	payments     map[string]models.Payment
	invoices     map[string]models.Invoice
	transactions map[string]models.Transaction
	counters     map[string]int64
	bookings     map[string]models.Booking
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		payments:     copyMap(s.payments),
		invoices:     copyMap(s.invoices),
		transactions: copyMap(s.transactions),
		counters:     copyMap(s.counters),
		bookings:     copyMap(s.bookings),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = snap.payments
	s.invoices = snap.invoices
	s.transactions = snap.transactions
	s.counters = snap.counters
	s.bookings = snap.bookings
}

// RunInTx implements database.TxRunner.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}
