package models

import "time"

const (
	BookingStatusPendingPickup = "Pending Pickup"
	BookingStatusPaymentFailed = "Payment Failed"
)

// Booking is the courier shipment record a payment is attached to.
// Only the fields the ledger reads or writes are modelled.
type Booking struct {
	ID              string                `bson:"id" json:"id"`
	TrackingID      string                `bson:"trackingId" json:"trackingId"`
	UserID          string                `bson:"userId" json:"userId"`
	PickupAddress   Address               `bson:"pickupAddress" json:"pickupAddress"`
	DeliveryAddress Address               `bson:"deliveryAddress" json:"deliveryAddress"`
	Weight          float64               `bson:"weight" json:"weight"`
	PackageType     string                `bson:"packageType" json:"packageType"`
	DeliverySpeed   string                `bson:"deliverySpeed" json:"deliverySpeed"`
	Status          string                `bson:"status" json:"status"`
	PaymentDetails  BookingPaymentDetails `bson:"paymentDetails" json:"paymentDetails"`
	CreatedAt       time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time             `bson:"updatedAt" json:"updatedAt"`
}

type BookingPaymentDetails struct {
	OrderID       string        `bson:"orderId,omitempty" json:"orderId,omitempty"`
	PaymentID     string        `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	Amount        float64       `bson:"amount" json:"amount"`
	PaymentMethod PaymentMethod `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	PaymentStatus PaymentStatus `bson:"paymentStatus,omitempty" json:"paymentStatus,omitempty"`
	InvoiceID     string        `bson:"invoiceId,omitempty" json:"invoiceId,omitempty"`
	// Attempt numbers the orders minted for the booking; it moves on after a failed one.
	Attempt int `bson:"attempt" json:"attempt"`
}

// Paid reports whether the booking's payment already went through.
func (d BookingPaymentDetails) Paid() bool {
	return d.PaymentStatus == PaymentCompleted || d.PaymentStatus == PaymentRefunded
}

type Address struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Pincode string `bson:"pincode" json:"pincode"`
	Country string `bson:"country" json:"country"`
}
