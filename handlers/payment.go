package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"cmsledger/middleware"
	"cmsledger/models"
	"cmsledger/services/ledger"
	"cmsledger/services/payment"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	Payments payment.PaymentService
	Ledger   *ledger.Recorder
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	return payment.NormalizePage(page, limit)
}

// CreateOrderHandler handles POST /api/payments/create-order.
func (h *PaymentHandler) CreateOrderHandler(c *gin.Context) {
	var req payment.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	userID := c.GetString(utils.CtxUserID)
	if req.UserID != "" && req.UserID != userID && !middleware.IsOperator(c) {
		utils.JSONError(c, http.StatusForbidden, "Access denied", "")
		return
	}
	if req.UserID == "" {
		req.UserID = userID
	}

	res, err := h.Payments.CreateOrder(c.Request.Context(), req)
	if err != nil {
		getLogger(c).Error("CreateOrder failed", zap.String("bookingId", req.BookingID), zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Payment order created successfully", res)
}

// VerifyPaymentHandler handles POST /api/payments/verify.
func (h *PaymentHandler) VerifyPaymentHandler(c *gin.Context) {
	var req payment.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	if !middleware.IsOperator(c) {
		req.UserID = c.GetString(utils.CtxUserID)
	}

	res, err := h.Payments.CompletePayment(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, utils.ErrInvalidSignature) {
			getLogger(c).Warn("payment signature rejected",
				zap.String("orderId", req.OrderID), zap.String("ip", middleware.ClientIP(c)))
		}
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Payment verified successfully", res)
}

// PaymentFailureHandler handles POST /api/payments/failure.
func (h *PaymentHandler) PaymentFailureHandler(c *gin.Context) {
	var input struct {
		OrderID string `json:"orderId" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	userID := c.GetString(utils.CtxUserID)
	if middleware.IsOperator(c) {
		userID = ""
	}

	res, err := h.Payments.HandlePaymentFailure(c.Request.Context(), input.OrderID, input.Reason, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Payment failure recorded", res)
}

// ListPaymentsHandler handles GET /api/payments/user/:userId.
func (h *PaymentHandler) ListPaymentsHandler(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeOwner(c, userID) {
		return
	}
	status := models.PaymentStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		utils.RespondError(c, utils.NewValidationError("invalid payment status %q", status))
		return
	}
	page, limit := pageParams(c)

	rows, pg, err := h.Payments.ListPayments(c.Request.Context(), userID, status, page, limit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Payments retrieved", gin.H{"payments": rows, "pagination": pg})
}

// ListTransactionsHandler handles GET /api/payments/transactions/:userId.
func (h *PaymentHandler) ListTransactionsHandler(c *gin.Context) {
	userID := c.Param("userId")
	if !authorizeOwner(c, userID) {
		return
	}
	dr, err := dateRange(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	page, limit := pageParams(c)
	filter := models.TransactionFilter{
		UserID: userID,
		Type:   models.TransactionType(c.Query("type")),
		Status: models.TransactionStatus(c.Query("status")),
		Range:  dr,
		Page:   page,
		Limit:  limit,
	}

	rows, pg, err := h.Ledger.List(c.Request.Context(), filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	summary, err := h.Ledger.Summarize(c.Request.Context(), userID, dr)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Transaction{}
	}
	if summary == nil {
		summary = []models.TransactionSummary{}
	}
	respond(c, http.StatusOK, "Transactions retrieved", gin.H{"transactions": rows, "summary": summary, "pagination": pg})
}

// RefundHandler handles POST /api/payments/refund. Operators only.
func (h *PaymentHandler) RefundHandler(c *gin.Context) {
	var input struct {
		PaymentID string  `json:"paymentId" binding:"required"`
		Amount    float64 `json:"amount" binding:"required"`
		Reason    string  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	res, err := h.Payments.Refund(c.Request.Context(), payment.RefundRequest{
		PaymentID:   input.PaymentID,
		Amount:      input.Amount,
		Reason:      input.Reason,
		ProcessedBy: c.GetString(utils.CtxOperatorID),
	})
	if err != nil {
		getLogger(c).Error("Refund failed", zap.String("paymentId", input.PaymentID), zap.Error(err))
		utils.RespondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Refund processed successfully", res)
}
