// File: turnero/handlers/bundle.go
package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Agent endpoints
	CreateAgentHandler     gin.HandlerFunc
	ListAgentsHandler      gin.HandlerFunc
	GetAgentHandler        gin.HandlerFunc
	UpdateAgentHandler     gin.HandlerFunc
	DeleteAgentHandler     gin.HandlerFunc
	SetAvailabilityHandler gin.HandlerFunc
	AvailableAgentsHandler gin.HandlerFunc

	// Availability and block endpoints
	SlotsHandler             gin.HandlerFunc
	CheckAvailabilityHandler gin.HandlerFunc
	CreateBlockHandler       gin.HandlerFunc
	ListBlocksHandler        gin.HandlerFunc
	DeleteBlockHandler       gin.HandlerFunc

	// Appointment endpoints
	CreateAppointmentHandler gin.HandlerFunc
	ListAppointmentsHandler  gin.HandlerFunc
	GetAppointmentHandler    gin.HandlerFunc
	CancelAppointmentHandler gin.HandlerFunc
	UpdateStatusHandler      gin.HandlerFunc
	UpdateFieldsHandler      gin.HandlerFunc
	RescheduleHandler        gin.HandlerFunc
	TodayHandler             gin.HandlerFunc
	StatsHandler             gin.HandlerFunc

	// Tenant settings endpoints
	GetSettingsHandler gin.HandlerFunc
	PutSettingsHandler gin.HandlerFunc

	// Channel adapter endpoint
	InboundMessageHandler gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle assembles the bundle from the handler structs.
func NewHandlerBundle(agents *AgentHandler, appts *AppointmentHandler, settings *SettingsHandler, inbound *InboundHandler, health gin.HandlerFunc) *HandlerBundle {
	return &HandlerBundle{
		CreateAgentHandler:     agents.CreateAgentHandler,
		ListAgentsHandler:      agents.ListAgentsHandler,
		GetAgentHandler:        agents.GetAgentHandler,
		UpdateAgentHandler:     agents.UpdateAgentHandler,
		DeleteAgentHandler:     agents.DeleteAgentHandler,
		SetAvailabilityHandler: agents.SetAvailabilityHandler,
		AvailableAgentsHandler: agents.AvailableAgentsHandler,

		SlotsHandler:             agents.SlotsHandler,
		CheckAvailabilityHandler: agents.CheckAvailabilityHandler,
		CreateBlockHandler:       agents.CreateBlockHandler,
		ListBlocksHandler:        agents.ListBlocksHandler,
		DeleteBlockHandler:       agents.DeleteBlockHandler,

		CreateAppointmentHandler: appts.CreateAppointmentHandler,
		ListAppointmentsHandler:  appts.ListAppointmentsHandler,
		GetAppointmentHandler:    appts.GetAppointmentHandler,
		CancelAppointmentHandler: appts.CancelAppointmentHandler,
		UpdateStatusHandler:      appts.UpdateStatusHandler,
		UpdateFieldsHandler:      appts.UpdateFieldsHandler,
		RescheduleHandler:        appts.RescheduleHandler,
		TodayHandler:             appts.TodayHandler,
		StatsHandler:             appts.StatsHandler,

		GetSettingsHandler: settings.GetSettingsHandler,
		PutSettingsHandler: settings.PutSettingsHandler,

		InboundMessageHandler: inbound.InboundMessageHandler,

		HealthHandler: health,
	}
}
