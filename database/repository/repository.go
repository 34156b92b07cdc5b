package repository

import (
	bookingRepo "cmsledger/database/repository/booking"
	counterRepo "cmsledger/database/repository/counter"
	invoiceRepo "cmsledger/database/repository/invoice"
	paymentRepo "cmsledger/database/repository/payment"
	transactionRepo "cmsledger/database/repository/transaction"
	userRepo "cmsledger/database/repository/user"
)

// Repositories groups the ledger's Mongo-backed stores.
type Repositories struct {
	Payments     paymentRepo.PaymentRepository
	Invoices     invoiceRepo.InvoiceRepository
	Transactions transactionRepo.TransactionRepository
	Counters     counterRepo.CounterRepository
	Bookings     bookingRepo.BookingRepository
	Users        userRepo.UserRepository
}

// NewMongoRepositories constructs every repository and ensures its indexes.
// database.InitDB must have been called.
func NewMongoRepositories() Repositories {
	return Repositories{
		Payments:     paymentRepo.NewMongoPaymentRepo(),
		Invoices:     invoiceRepo.NewMongoInvoiceRepo(),
		Transactions: transactionRepo.NewMongoTransactionRepo(),
		Counters:     counterRepo.NewMongoCounterRepo(),
		Bookings:     bookingRepo.NewMongoBookingRepo(),
		Users:        userRepo.NewMongoUserRepo(),
	}
}
