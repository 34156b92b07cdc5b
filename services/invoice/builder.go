package invoice

import (
	"context"
	"fmt"
	"time"

	invoiceRepo "cmsledger/database/repository/invoice"
	"cmsledger/models"
	"cmsledger/utils"

	"github.com/google/uuid"
)

// NumberAllocator hands out invoice numbers.
type NumberAllocator interface {
	NextInvoiceNumber(ctx context.Context, now time.Time) (string, error)
}

// Builder snapshots a completed payment into an Invoice. Rendering is not
// done here; the caller enqueues it once the unit of work has committed.
type Builder struct {
	invoices invoiceRepo.InvoiceRepository
	numbers  NumberAllocator
	taxRate  float64 // percent, split evenly into CGST and SGST
	now      func() time.Time
}

func NewBuilder(invoices invoiceRepo.InvoiceRepository, numbers NumberAllocator, taxRatePercent float64) *Builder {
	return &Builder{invoices: invoices, numbers: numbers, taxRate: taxRatePercent, now: time.Now}
}

// WithClock replaces the clock used for invoice dates and the number month.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// ComputeTax splits total into amounts and intra-state GST. Prices are tax
// inclusive: total is what the customer paid and tax is taxRate% of it.
func ComputeTax(total, discount, taxRatePercent float64) (models.InvoiceAmounts, models.TaxDetails) {
	total = utils.RoundMoney(total)
	half := taxRatePercent / 2
	cgst := utils.Percent(total, half)
	sgst := utils.Percent(total, half)
	tax := utils.AddMoney(cgst, sgst)

	amounts := models.InvoiceAmounts{
		Subtotal: utils.AddMoney(utils.SubMoney(total, tax), discount),
		Tax:      tax,
		Discount: utils.RoundMoney(discount),
		Total:    total,
	}
	return amounts, models.TaxDetails{CGST: cgst, SGST: sgst, IGST: 0, TaxRate: taxRatePercent}
}

// Snapshot copies customer and service fields by value so later edits to the
// booking or user never reach a finalized invoice.
func Snapshot(booking *models.Booking, user *models.User) (models.CustomerSnapshot, models.ServiceSnapshot) {
	pickup, delivery := booking.PickupAddress, booking.DeliveryAddress
	customer := models.CustomerSnapshot{
		Name:    user.DisplayName(),
		Email:   user.Email,
		Phone:   user.PhoneNumber,
		Address: pickup,
	}
	service := models.ServiceSnapshot{
		Description:   fmt.Sprintf("Courier service from %s to %s", pickup.City, delivery.City),
		TrackingID:    booking.TrackingID,
		Weight:        booking.Weight,
		PackageType:   booking.PackageType,
		DeliverySpeed: booking.DeliverySpeed,
		Origin:        fmt.Sprintf("%s, %s", pickup.City, pickup.State),
		Destination:   fmt.Sprintf("%s, %s", delivery.City, delivery.State),
	}
	return customer, service
}

// Build allocates a number and persists the invoice for a completed payment.
func (b *Builder) Build(ctx context.Context, payment *models.Payment, booking *models.Booking, user *models.User) (*models.Invoice, error) {
	if payment.Status != models.PaymentCompleted {
		return nil, utils.NewInvalidStateError("cannot invoice payment %s in status %s", payment.ID, payment.Status)
	}

	now := b.now()
	number, err := b.numbers.NextInvoiceNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	paidAt := now
	if payment.CompletedAt != nil {
		paidAt = *payment.CompletedAt
	}

	customer, service := Snapshot(booking, user)
	amounts, tax := ComputeTax(payment.Amount, 0, b.taxRate)
	inv := &models.Invoice{
		ID:            uuid.New().String(),
		InvoiceNumber: number,
		BookingID:     booking.ID,
		PaymentID:     payment.ID,
		UserID:        payment.UserID,
		Customer:      customer,
		Service:       service,
		Amounts:       amounts,
		TaxDetails:    tax,
		Currency:      payment.Currency,
		Status:        models.InvoicePaid,
		DueDate:       now,
		PaidDate:      &paidAt,
		RenderStatus:  models.RenderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := b.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("persist invoice %s: %w", number, err)
	}
	return inv, nil
}
