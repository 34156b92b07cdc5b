package models

import (
	"strings"
	"time"
)

type TransactionType string

const (
	TransactionPayment    TransactionType = "payment"
	TransactionRefund     TransactionType = "refund"
	TransactionFee        TransactionType = "fee"
	TransactionAdjustment TransactionType = "adjustment"
)

// Prefix is the id prefix for the type, e.g. "PAY" for payment.
func (t TransactionType) Prefix() string {
	p := strings.ToUpper(string(t))
	if len(p) > 3 {
		p = p[:3]
	}
	return p
}

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionProcessing TransactionStatus = "processing"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
	TransactionCancelled  TransactionStatus = "cancelled"
)

// Terminal reports whether a transaction in status s is frozen for audit.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionCompleted || s == TransactionFailed || s == TransactionCancelled
}

type TransactionMethod string

const (
	MethodGateway      TransactionMethod = "gateway"
	MethodBankTransfer TransactionMethod = "bank_transfer"
	MethodWallet       TransactionMethod = "wallet"
	MethodCash         TransactionMethod = "cash"
	MethodAdjustment   TransactionMethod = "adjustment"
)

type Fees struct {
	Gateway  float64 `bson:"gateway" json:"gateway"`
	Platform float64 `bson:"platform" json:"platform"`
	Total    float64 `bson:"total" json:"total"`
}

// GatewayResponse keeps the gateway references the ledger needs for audit.
type GatewayResponse struct {
	OrderID   string `bson:"orderId,omitempty" json:"orderId,omitempty"`
	PaymentID string `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	RefundID  string `bson:"refundId,omitempty" json:"refundId,omitempty"`
	Status    string `bson:"status,omitempty" json:"status,omitempty"`
}

// Transaction is an append-only ledger row. NetAmount is always Amount - Fees.Total.
type Transaction struct {
	ID            string `bson:"id" json:"id"`
	TransactionID string `bson:"transactionId" json:"transactionId"`
	PaymentID     string `bson:"paymentId" json:"paymentId"`
	BookingID     string `bson:"bookingId" json:"bookingId"`
	UserID        string `bson:"userId" json:"userId"`

	Type     TransactionType   `bson:"type" json:"type"`
	Amount   float64           `bson:"amount" json:"amount"`
	Currency string            `bson:"currency" json:"currency"`
	Status   TransactionStatus `bson:"status" json:"status"`
	Method   TransactionMethod `bson:"method" json:"method"`

	GatewayTransactionID string           `bson:"gatewayTransactionId,omitempty" json:"gatewayTransactionId,omitempty"`
	GatewayResponse      *GatewayResponse `bson:"gatewayResponse,omitempty" json:"gatewayResponse,omitempty"`

	Description string  `bson:"description" json:"description"`
	Reference   string  `bson:"reference,omitempty" json:"reference,omitempty"`
	Fees        Fees    `bson:"fees" json:"fees"`
	NetAmount   float64 `bson:"netAmount" json:"netAmount"`

	ProcessedAt   *time.Time `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	ProcessedBy   string     `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TransactionSummary is one row of the per-type ledger aggregation.
type TransactionSummary struct {
	Type           TransactionType `bson:"_id" json:"type"`
	TotalAmount    float64         `bson:"totalAmount" json:"totalAmount"`
	TotalNetAmount float64         `bson:"totalNetAmount" json:"totalNetAmount"`
	Count          int             `bson:"count" json:"count"`
}

// TransactionFilter narrows transaction history listings.
type TransactionFilter struct {
	UserID string
	Type   TransactionType
	Status TransactionStatus
	Range  DateRange
	Page   int
	Limit  int
}
