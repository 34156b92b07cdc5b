package models

import "time"

// DateRange is an inclusive createdAt window; nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

type Pagination struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
}

// NewPagination builds pagination metadata for a page of size limit out of total rows.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Current: page, Pages: pages, Total: total}
}

// RenderInvoicePayload is the asynq payload for invoice rendering.
type RenderInvoicePayload struct {
	InvoiceID string `json:"invoiceId"`
}

// PaymentConfirmationPayload is the asynq payload for a payment confirmation push.
type PaymentConfirmationPayload struct {
	UserID        string  `json:"userId"`
	PaymentID     string  `json:"paymentId"`
	OrderID       string  `json:"orderId"`
	BookingID     string  `json:"bookingId"`
	TrackingID    string  `json:"trackingId"`
	InvoiceID     string  `json:"invoiceId"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}
