// services/gateway/gateway.go
package gateway

import "errors"

// OrderStatus is the gateway-side state of an order, normalized across providers.
type OrderStatus string

const (
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
	OrderPending OrderStatus = "pending"
)

// Order is a minted gateway order. Amounts stay in minor units on this side of the boundary.
type Order struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       OrderStatus
}

// OrderState is what the gateway reports when an order is polled.
type OrderState struct {
	OrderID       string
	Status        OrderStatus
	PaymentID     string // Set once the order is paid.
	FailureReason string
}

// RefundReceipt is the gateway acknowledgement for a refund.
type RefundReceipt struct {
	ID     string
	Status string
}

var (
	ErrInvalidAmount = errors.New("gateway: amount must be positive")
	ErrProviderDown  = errors.New("gateway: payment provider unavailable")
	ErrDeclined      = errors.New("gateway: payment declined")
	// ErrAlreadyCaptured is returned by Cancel when the order was paid before it could be cancelled.
	ErrAlreadyCaptured = errors.New("gateway: order already captured")
)
