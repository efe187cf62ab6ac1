package handlers

import (
	"net/http"
	"time"

	"turnero/database/repository"
	"turnero/models"

	"github.com/gin-gonic/gin"
)

// SettingsHandler reads and replaces a tenant's configuration document.
type SettingsHandler struct {
	Settings repository.SettingsRepository
}

func NewSettingsHandler(settings repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{Settings: settings}
}

func (h *SettingsHandler) GetSettingsHandler(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SettingsHandler) PutSettingsHandler(c *gin.Context) {
	var s models.TenantSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err.Error())
		return
	}
	if s.Schedule.TimeZone != "" {
		if _, err := time.LoadLocation(s.Schedule.TimeZone); err != nil {
			badRequest(c, "unknown time zone "+s.Schedule.TimeZone)
			return
		}
	}
	if s.Schedule.DefaultDuration <= 0 {
		badRequest(c, "schedule.defaultDuration must be positive")
		return
	}
	if s.Schedule.MinLeadHours < 0 || s.Schedule.MaxLeadDays < 0 || s.Schedule.CancellationWindowHours < 0 {
		badRequest(c, "schedule limits cannot be negative")
		return
	}
	if agenda := s.Schedule.AgentAgenda; agenda.Active && agenda.SendAt != "" {
		if _, err := models.ParseClock(agenda.SendAt); err != nil {
			badRequest(c, "schedule.agentAgenda.sendAt must be HH:MM")
			return
		}
	}
	for _, f := range s.Schedule.Fields {
		if f.Key == "" {
			badRequest(c, "every field needs a key")
			return
		}
		if f.Kind == models.FieldEnum && len(f.Options) == 0 {
			badRequest(c, "enum field "+f.Key+" needs options")
			return
		}
	}

	s.TenantID = c.Param("tenantId")
	s.UpdatedAt = time.Now().UTC()
	if err := h.Settings.Put(c.Request.Context(), &s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
