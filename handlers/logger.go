package handlers

import (
	"net/http"
	"time"

	"cmsledger/middleware"
	"cmsledger/models"
	"cmsledger/services/payment"
	"cmsledger/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getLogger retrieves the request logger set by middleware.RequestLogger, or the global one.
func getLogger(c *gin.Context) *zap.Logger {
	if l, exists := c.Get("logger"); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return utils.GetLogger()
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"success": true, "message": message, "data": data})
}

// authorizeOwner aborts with 403 unless the caller owns the resource or is an operator.
func authorizeOwner(c *gin.Context, ownerID string) bool {
	if payment.CanAccess(c.GetString(utils.CtxUserID), middleware.IsOperator(c), ownerID) {
		return true
	}
	utils.JSONError(c, http.StatusForbidden, "Access denied", "")
	return false
}

const dateOnly = "2006-01-02"

func parseTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return nil, utils.NewValidationError("invalid date %q, want YYYY-MM-DD or RFC3339", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// dateRange reads the inclusive ?from= and ?to= query parameters.
func dateRange(c *gin.Context) (models.DateRange, error) {
	from, err := parseTime(c.Query("from"), false)
	if err != nil {
		return models.DateRange{}, err
	}
	to, err := parseTime(c.Query("to"), true)
	if err != nil {
		return models.DateRange{}, err
	}
	return models.DateRange{From: from, To: to}, nil
}
