package invoice

import (
	"bytes"
	"fmt"

	"cmsledger/models"

	"github.com/go-pdf/fpdf"
)

// Issuer is the business printed in the invoice header.
type Issuer struct {
	Name    string
	Address string
	Contact string
}

// RenderPDF lays out inv as a single A4 page using the core Helvetica font.
func RenderPDF(inv *models.Invoice, issuer Issuer) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(100, 10, "INVOICE", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Invoice Number: "+inv.InvoiceNumber, "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+inv.CreatedAt.Format("02 Jan 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 7, issuer.Name, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Address: "+issuer.Address, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, issuer.Contact, "", 1, "L", false, 0, "")
	pdf.Ln(8)

	section := func(title string, lines ...string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, l := range lines {
			pdf.CellFormat(0, 5, l, "", 1, "L", false, 0, "")
		}
		pdf.Ln(5)
	}

	c := inv.Customer
	section("Bill To:", c.Name, c.Email, c.Phone,
		fmt.Sprintf("%s, %s, %s - %s", c.Address.Street, c.Address.City, c.Address.State, c.Address.Pincode))

	s := inv.Service
	section("Service Details:",
		"Description: "+s.Description,
		"Package Type: "+s.PackageType,
		fmt.Sprintf("Weight: %g kg", s.Weight),
		"Delivery Speed: "+s.DeliverySpeed,
		fmt.Sprintf("Route: %s -> %s", s.Origin, s.Destination))

	money := func(v float64) string { return fmt.Sprintf("%s %.2f", inv.Currency, v) }
	half := inv.TaxDetails.TaxRate / 2
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Amount Details:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	rows := [][2]string{
		{"Subtotal", money(inv.Amounts.Subtotal)},
		{fmt.Sprintf("CGST (%g%%)", half), money(inv.TaxDetails.CGST)},
		{fmt.Sprintf("SGST (%g%%)", half), money(inv.TaxDetails.SGST)},
	}
	if inv.Amounts.Discount > 0 {
		rows = append(rows, [2]string{"Discount", "-" + money(inv.Amounts.Discount)})
	}
	for _, r := range rows {
		pdf.CellFormat(60, 6, r[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, r[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(60, 8, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, money(inv.Amounts.Total), "T", 1, "R", false, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 4, "Thank you for choosing "+issuer.Name+"!", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 4, "This is a computer-generated invoice.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}
