package handlers

import (
	"net/http"
	"strconv"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/agent"
	"turnero/services/availability"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AgentHandler serves agent administration, blocks and availability queries.
type AgentHandler struct {
	Service      *agent.Service
	Availability *availability.Engine
	Settings     repository.SettingsRepository
}

func NewAgentHandler(svc *agent.Service, engine *availability.Engine, settings repository.SettingsRepository) *AgentHandler {
	return &AgentHandler{Service: svc, Availability: engine, Settings: settings}
}

func (h *AgentHandler) CreateAgentHandler(c *gin.Context) {
	var in agent.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.Service.Create(c.Request.Context(), c.Param("tenantId"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AgentHandler) ListAgentsHandler(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	agents, err := h.Service.List(c.Request.Context(), c.Param("tenantId"), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *AgentHandler) GetAgentHandler(c *gin.Context) {
	a, err := h.Service.Get(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AgentHandler) UpdateAgentHandler(c *gin.Context) {
	var in agent.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.Service.Update(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAgentHandler deactivates the agent.
func (h *AgentHandler) DeleteAgentHandler(c *gin.Context) {
	if err := h.Service.Deactivate(c.Request.Context(), c.Param("tenantId"), c.Param("agentId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent deactivated"})
}

func (h *AgentHandler) SetAvailabilityHandler(c *gin.Context) {
	var body struct {
		Availability []models.AvailabilityWindow `json:"availability"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.Service.SetAvailability(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"), body.Availability)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// AvailableAgentsHandler lists agents working on ?date=.
func (h *AgentHandler) AvailableAgentsHandler(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}
	agents, err := h.Availability.AgentsWorkingOn(c.Request.Context(), c.Param("tenantId"), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// SlotsHandler lists free slots; ?all=true includes taken ones.
func (h *AgentHandler) SlotsHandler(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}
	duration := 0
	if raw := c.Query("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			badRequest(c, "duration must be a positive number of minutes")
			return
		}
		duration = d
	}

	ctx := c.Request.Context()
	tenantID, agentID := c.Param("tenantId"), c.Param("agentId")
	var (
		slots []models.Slot
		err   error
	)
	if c.Query("all") == "true" {
		slots, err = h.Availability.Slots(ctx, tenantID, agentID, date, duration)
	} else {
		slots, err = h.Availability.ComputeSlots(ctx, tenantID, agentID, date, duration)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (h *AgentHandler) CheckAvailabilityHandler(c *gin.Context) {
	var body struct {
		Start     time.Time `json:"start" binding:"required"`
		Duration  int       `json:"duration"`
		ExcludeID string    `json:"excludeId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := h.Availability.CheckAvailability(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"), body.Start, body.Duration, body.ExcludeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AgentHandler) CreateBlockHandler(c *gin.Context) {
	var in agent.BlockInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	b, err := h.Service.CreateBlock(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	getLogger(c).Info("schedule block created", zap.String("agent", b.AgentID), zap.String("block", b.ID))
	c.JSON(http.StatusCreated, b)
}

func (h *AgentHandler) ListBlocksHandler(c *gin.Context) {
	blocks, err := h.Service.ListBlocks(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

func (h *AgentHandler) DeleteBlockHandler(c *gin.Context) {
	if err := h.Service.DeleteBlock(c.Request.Context(), c.Param("tenantId"), c.Param("agentId"), c.Param("blockId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) dateQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		badRequest(c, "date is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	settings, err := h.Settings.Get(c.Request.Context(), c.Param("tenantId"))
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	date, err := parseDate(raw, settings.Schedule.Location())
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
