package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/appointment"

	"github.com/gin-gonic/gin"
)

// AppointmentHandler exposes the appointment lifecycle to admin callers.
type AppointmentHandler struct {
	Service  *appointment.Service
	Settings repository.SettingsRepository
}

func NewAppointmentHandler(svc *appointment.Service, settings repository.SettingsRepository) *AppointmentHandler {
	return &AppointmentHandler{Service: svc, Settings: settings}
}

func (h *AppointmentHandler) CreateAppointmentHandler(c *gin.Context) {
	var in appointment.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	in.TenantID = c.Param("tenantId")
	appt, err := h.Service.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// ListAppointmentsHandler filters by agentId, clientId, status (comma
// separated), from, to and limit.
func (h *AppointmentHandler) ListAppointmentsHandler(c *gin.Context) {
	filter := models.AppointmentFilter{
		TenantID: c.Param("tenantId"),
		AgentID:  c.Query("agentId"),
		ClientID: c.Query("clientId"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.AppointmentStatus(strings.TrimSpace(s))
			if !status.Valid() {
				badRequest(c, "unknown status "+string(status))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative number")
			return
		}
		filter.Limit = n
	}
	var ok bool
	if filter.From, filter.To, ok = h.rangeQuery(c); !ok {
		return
	}

	appts, err := h.Service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (h *AppointmentHandler) GetAppointmentHandler(c *gin.Context) {
	appt, err := h.Service.Get(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) CancelAppointmentHandler(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	appt, err := h.Service.Cancel(c.Request.Context(), c.Param("tenantId"), c.Param("id"), body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) UpdateStatusHandler(c *gin.Context) {
	var body struct {
		Status models.AppointmentStatus `json:"status" binding:"required"`
		Reason string                   `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !body.Status.Valid() {
		badRequest(c, "unknown status "+string(body.Status))
		return
	}
	appt, err := h.Service.UpdateStatus(c.Request.Context(), c.Param("tenantId"), c.Param("id"), body.Status, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) UpdateFieldsHandler(c *gin.Context) {
	var body struct {
		Fields map[string]any `json:"fields" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.Service.UpdateFields(c.Request.Context(), c.Param("tenantId"), c.Param("id"), body.Fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *AppointmentHandler) RescheduleHandler(c *gin.Context) {
	var body struct {
		Start time.Time `json:"start" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	appt, err := h.Service.Reschedule(c.Request.Context(), c.Param("tenantId"), c.Param("id"), body.Start)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// TodayHandler lists today's appointments in the tenant time zone.
func (h *AppointmentHandler) TodayHandler(c *gin.Context) {
	appts, err := h.Service.ListForDay(c.Request.Context(), c.Param("tenantId"), c.Query("agentId"), time.Time{})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

func (h *AppointmentHandler) StatsHandler(c *gin.Context) {
	from, to, ok := h.rangeQuery(c)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(c.Request.Context(), c.Param("tenantId"), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// rangeQuery reads the optional ?from= and ?to= bounds. A bare date for "to"
// includes that whole day.
func (h *AppointmentHandler) rangeQuery(c *gin.Context) (from, to time.Time, ok bool) {
	rawFrom, rawTo := c.Query("from"), c.Query("to")
	if rawFrom == "" && rawTo == "" {
		return from, to, true
	}
	settings, err := h.Settings.Get(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return from, to, false
	}
	loc := settings.Schedule.Location()
	if rawFrom != "" {
		if from, err = parseDate(rawFrom, loc); err != nil {
			badRequest(c, "from must be YYYY-MM-DD or RFC 3339")
			return from, to, false
		}
	}
	if rawTo != "" {
		if to, err = parseDate(rawTo, loc); err != nil {
			badRequest(c, "to must be YYYY-MM-DD or RFC 3339")
			return from, to, false
		}
		if len(strings.TrimSpace(rawTo)) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1)
		}
	}
	return from, to, true
}
