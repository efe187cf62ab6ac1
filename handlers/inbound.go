package handlers

import (
	"context"
	"net/http"

	"turnero/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageRouter answers one inbound text.
type MessageRouter interface {
	Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage
}

type InboundHandler struct {
	Router MessageRouter
}

func NewInboundHandler(router MessageRouter) *InboundHandler {
	return &InboundHandler{Router: router}
}

// InboundMessageHandler returns the reply for the channel adapter to send, or
// 204 when no engine took the message.
func (h *InboundHandler) InboundMessageHandler(c *gin.Context) {
	var msg models.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, err.Error())
		return
	}
	out := h.Router.Handle(c.Request.Context(), msg)
	if !out.Handled {
		getLogger(c).Debug("inbound message not handled", zap.String("tenant", msg.TenantID))
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": out.Text})
}
