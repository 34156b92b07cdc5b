package models

import "time"

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is one of the known invoice statuses.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// RenderStatus tracks the rendered-file outbox state of an invoice.
type RenderStatus string

const (
	RenderPending  RenderStatus = "pending"
	RenderRendered RenderStatus = "rendered"
	RenderFailed   RenderStatus = "failed"
)

// Invoice is the immutable financial snapshot issued once a payment completes.
type Invoice struct {
	ID            string `bson:"id" json:"id"`
	InvoiceNumber string `bson:"invoiceNumber" json:"invoiceNumber"` // INV-YYYYMM-NNNN
	BookingID     string `bson:"bookingId" json:"bookingId"`
	PaymentID     string `bson:"paymentId" json:"paymentId"`
	UserID        string `bson:"userId" json:"userId"`

	Customer CustomerSnapshot `bson:"customerDetails" json:"customerDetails"`
	Service  ServiceSnapshot  `bson:"serviceDetails" json:"serviceDetails"`

	Amounts    InvoiceAmounts `bson:"amounts" json:"amounts"`
	TaxDetails TaxDetails     `bson:"taxDetails" json:"taxDetails"`
	Currency   string         `bson:"currency" json:"currency"`

	Status   InvoiceStatus `bson:"status" json:"status"`
	DueDate  time.Time     `bson:"dueDate" json:"dueDate"`
	PaidDate *time.Time    `bson:"paidDate,omitempty" json:"paidDate,omitempty"`

	PDFPath        string       `bson:"pdfPath,omitempty" json:"pdfPath,omitempty"`
	RenderStatus   RenderStatus `bson:"renderStatus" json:"renderStatus"`
	RenderAttempts int          `bson:"renderAttempts" json:"renderAttempts"`
	RenderError    string       `bson:"renderError,omitempty" json:"renderError,omitempty"`
	LastRenderAt   *time.Time   `bson:"lastRenderAt,omitempty" json:"lastRenderAt,omitempty"`

	DownloadCount int    `bson:"downloadCount" json:"downloadCount"`
	Notes         string `bson:"notes,omitempty" json:"notes,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type CustomerSnapshot struct {
	Name    string  `bson:"name" json:"name"`
	Email   string  `bson:"email" json:"email"`
	Phone   string  `bson:"phone" json:"phone"`
	Address Address `bson:"address" json:"address"`
}

type ServiceSnapshot struct {
	Description   string  `bson:"description" json:"description"`
	TrackingID    string  `bson:"trackingId,omitempty" json:"trackingId,omitempty"`
	Weight        float64 `bson:"weight" json:"weight"` // kg
	PackageType   string  `bson:"packageType" json:"packageType"`
	DeliverySpeed string  `bson:"deliverySpeed" json:"deliverySpeed"`
	Origin        string  `bson:"origin" json:"origin"`
	Destination   string  `bson:"destination" json:"destination"`
}

// InvoiceAmounts must satisfy Total == Subtotal + Tax - Discount.
type InvoiceAmounts struct {
	Subtotal float64 `bson:"subtotal" json:"subtotal"`
	Tax      float64 `bson:"tax" json:"tax"`
	Discount float64 `bson:"discount" json:"discount"`
	Total    float64 `bson:"total" json:"total"`
}

type TaxDetails struct {
	CGST    float64 `bson:"cgst" json:"cgst"`
	SGST    float64 `bson:"sgst" json:"sgst"`
	IGST    float64 `bson:"igst" json:"igst"`
	TaxRate float64 `bson:"taxRate" json:"taxRate"` // percent
}

// InvoiceFilter narrows operator invoice listings.
type InvoiceFilter struct {
	Status    InvoiceStatus
	Range     DateRange
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}
