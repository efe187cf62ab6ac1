package routes

import (
	"time"

	"turnero/handlers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterAgentRoutes registers agent management, availability and block endpoints.
func RegisterAgentRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	agents := api.Group("/agents")
	{
		agents.POST("", hb.CreateAgentHandler)
		agents.GET("", hb.ListAgentsHandler)
		agents.GET("/available", hb.AvailableAgentsHandler)
		agents.GET("/:agentId", hb.GetAgentHandler)
		agents.PUT("/:agentId", hb.UpdateAgentHandler)
		agents.DELETE("/:agentId", hb.DeleteAgentHandler)
		agents.PUT("/:agentId/availability", hb.SetAvailabilityHandler)

		agents.GET("/:agentId/slots", hb.SlotsHandler)
		agents.POST("/:agentId/availability-check", hb.CheckAvailabilityHandler)

		agents.GET("/:agentId/blocks", hb.ListBlocksHandler)
		agents.POST("/:agentId/blocks", hb.CreateBlockHandler)
		agents.DELETE("/:agentId/blocks/:blockId", hb.DeleteBlockHandler)
	}
}

// RegisterAppointmentRoutes registers appointment lifecycle endpoints.
func RegisterAppointmentRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	appts := api.Group("/appointments")
	{
		appts.POST("", hb.CreateAppointmentHandler)
		appts.GET("", hb.ListAppointmentsHandler)
		appts.GET("/today", hb.TodayHandler)
		appts.GET("/:id", hb.GetAppointmentHandler)
		appts.POST("/:id/cancel", hb.CancelAppointmentHandler)
		appts.PATCH("/:id/status", hb.UpdateStatusHandler)
		appts.PATCH("/:id/fields", hb.UpdateFieldsHandler)
		appts.POST("/:id/reschedule", hb.RescheduleHandler)
	}
	api.GET("/stats", hb.StatsHandler)
}

// RegisterSettingsRoutes registers tenant configuration endpoints.
func RegisterSettingsRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	api.GET("/settings", hb.GetSettingsHandler)
	api.PUT("/settings", hb.PutSettingsHandler)
}

// RegisterMessageRoutes registers the channel adapter endpoint.
func RegisterMessageRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/messages/inbound", hb.InboundMessageHandler)
}

// RegisterRoutes sets up every route of the service.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", hb.HealthHandler)

	tenant := r.Group("/api/tenants/:tenantId")
	RegisterAgentRoutes(tenant, hb)
	RegisterAppointmentRoutes(tenant, hb)
	RegisterSettingsRoutes(tenant, hb)
	RegisterMessageRoutes(r, hb)
}
