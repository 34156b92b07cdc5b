package handlers

import (
	"fmt"
	"net/http"

	"cmsledger/middleware"
	"cmsledger/models"
	"cmsledger/services/invoice"
	"cmsledger/services/payment"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	Invoices *invoice.Service
}

// ownsInvoice answers 404 to callers who may not see the invoice, so invoice
// ids cannot be enumerated.
func ownsInvoice(c *gin.Context, inv *models.Invoice) bool {
	if payment.CanAccess(c.GetString(utils.CtxUserID), middleware.IsOperator(c), inv.UserID) {
		return true
	}
	utils.RespondError(c, utils.NewNotFoundError("invoice", inv.ID))
	return false
}

// GetInvoiceHandler handles GET /api/payments/invoice/:invoiceId.
func (h *InvoiceHandler) GetInvoiceHandler(c *gin.Context) {
	inv, err := h.Invoices.Get(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if !ownsInvoice(c, inv) {
		return
	}
	respond(c, http.StatusOK, "Invoice retrieved", inv)
}

// DownloadInvoiceHandler streams the rendered PDF and counts the download.
func (h *InvoiceHandler) DownloadInvoiceHandler(c *gin.Context) {
	ctx := c.Request.Context()
	inv, err := h.Invoices.Get(ctx, c.Param("invoiceId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if !ownsInvoice(c, inv) {
		return
	}

	rc, err := h.Invoices.Open(ctx, inv)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	defer rc.Close()

	getLogger(c).Info("invoice downloaded", zap.String("invoiceNumber", inv.InvoiceNumber))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="invoice_%s.pdf"`, inv.InvoiceNumber),
	})
}

// ListInvoicesHandler handles GET /api/billing/invoices. Operators only.
func (h *InvoiceHandler) ListInvoicesHandler(c *gin.Context) {
	dr, err := dateRange(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	status := models.InvoiceStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		utils.RespondError(c, utils.NewValidationError("invalid invoice status %q", status))
		return
	}
	page, limit := pageParams(c)

	rows, pg, err := h.Invoices.List(c.Request.Context(), models.InvoiceFilter{
		Status:    status,
		Range:     dr,
		Search:    c.Query("search"),
		SortBy:    c.DefaultQuery("sortBy", "createdAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Invoice{}
	}
	respond(c, http.StatusOK, "Invoices retrieved", gin.H{"invoices": rows, "pagination": pg})
}

// UpdateInvoiceStatusHandler handles PUT /api/billing/invoice/:invoiceId/status.
func (h *InvoiceHandler) UpdateInvoiceStatusHandler(c *gin.Context) {
	var input struct {
		Status models.InvoiceStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	inv, err := h.Invoices.UpdateStatus(c.Request.Context(), c.Param("invoiceId"), input.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Invoice status updated successfully", inv)
}

// RenderInvoiceHandler handles POST /api/billing/invoice/:invoiceId/render.
func (h *InvoiceHandler) RenderInvoiceHandler(c *gin.Context) {
	inv, err := h.Invoices.RequestRender(c.Request.Context(), c.Param("invoiceId"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusAccepted, "Invoice render queued", gin.H{"invoiceId": inv.ID, "invoiceNumber": inv.InvoiceNumber})
}
