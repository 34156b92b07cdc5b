package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// paymentTransitions lists every legal Payment state change.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransitionTo reports whether moving from s to next is a legal Payment transition.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Payment is one attempt to pay for one booking.
type Payment struct {
	ID        string `bson:"id" json:"id"`
	BookingID string `bson:"bookingId" json:"bookingId"`
	UserID    string `bson:"userId" json:"userId"`

	OrderID          string `bson:"orderId" json:"orderId"`                                       // Gateway order reference (unique).
	GatewayPaymentID string `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"` // Unique once set.
	GatewaySignature string `bson:"gatewaySignature,omitempty" json:"-"`

	Amount         float64       `bson:"amount" json:"amount"` // Major currency units.
	Currency       string        `bson:"currency" json:"currency"`
	Status         PaymentStatus `bson:"status" json:"status"`
	Method         PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	TransactionFee float64       `bson:"transactionFee" json:"transactionFee"`

	RefundAmount float64 `bson:"refundAmount" json:"refundAmount"`
	RefundReason string  `bson:"refundReason,omitempty" json:"refundReason,omitempty"`

	Attempts      int        `bson:"paymentAttempts" json:"paymentAttempts"`
	LastAttemptAt *time.Time `bson:"lastAttemptDate,omitempty" json:"lastAttemptDate,omitempty"`
	CompletedAt   *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`

	Gateway PaymentGatewayDetails `bson:"gateway" json:"gateway"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PaymentGatewayDetails carries the known optional fields a gateway hands back at order creation.
type PaymentGatewayDetails struct {
	Provider     string `bson:"provider,omitempty" json:"provider,omitempty"`
	Receipt      string `bson:"receipt,omitempty" json:"receipt,omitempty"`
	ClientSecret string `bson:"-" json:"clientSecret,omitempty"`
}

// OrderResult is returned to the client after a gateway order is minted.
type OrderResult struct {
	OrderID      string  `json:"orderId"`
	PaymentID    string  `json:"paymentId"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	KeyID        string  `json:"keyId,omitempty"`
	ClientSecret string  `json:"clientSecret,omitempty"`
}

// CompletionResult is the aggregate returned by payment completion and replayed on duplicates.
type CompletionResult struct {
	Payment *Payment `json:"payment"`
	Booking *Booking `json:"booking"`
	Invoice *Invoice `json:"invoice"`
}

// FailureResult is returned after a payment failure is recorded.
type FailureResult struct {
	Payment *Payment `json:"payment"`
	Booking *Booking `json:"booking"`
}

// RefundResult is returned after a refund is processed.
type RefundResult struct {
	Transaction *Transaction `json:"transaction"`
	Payment     *Payment     `json:"payment"`
}
