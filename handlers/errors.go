package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"turnero/database"
	"turnero/services/agent"
	"turnero/services/appointment"
	"turnero/services/availability"
	"turnero/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Anything unknown is
// logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	if ve, ok := appointment.AsValidation(err); ok {
		status := http.StatusUnprocessableEntity
		switch ve.Code {
		case appointment.CodeSlotUnavailable, appointment.CodeNoCapacity, appointment.CodeDailyLimit:
			status = http.StatusConflict
		case appointment.CodeInvalidInput, appointment.CodeInvalidField:
			status = http.StatusBadRequest
		}
		utils.JSONErrorCode(c, status, ve.Code, ve.Message, "")
		return
	}
	switch {
	case errors.Is(err, agent.ErrInvalid):
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, availability.ErrAgentUnavailable):
		utils.JSONErrorCode(c, http.StatusNotFound, appointment.CodeAgentUnavailable, availability.ReasonAgentUnavailable, "")
	case errors.Is(err, database.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, "Not found", "")
	case errors.Is(err, database.ErrDuplicate):
		utils.JSONError(c, http.StatusConflict, "Already exists", "")
	case errors.Is(err, appointment.ErrInvalidTransition):
		utils.JSONError(c, http.StatusConflict, "Invalid status transition", err.Error())
	default:
		getLogger(c).Error("request failed", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func badRequest(c *gin.Context, details string) {
	utils.JSONError(c, http.StatusBadRequest, "Invalid request", details)
}

// parseDate accepts YYYY-MM-DD (in loc) or RFC 3339.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}
