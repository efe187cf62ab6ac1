// Package inbound decides which dialogue engine answers an inbound text.
package inbound

import (
	"context"

	"turnero/models"
	"turnero/utils"

	"go.uber.org/zap"
)

const apology = "❌ Ocurrió un error. Por favor intenta nuevamente."

// ConfirmationEngine answers replies to confirmation requests.
type ConfirmationEngine interface {
	Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage
	Active(ctx context.Context, tenantID, phone string) (bool, error)
}

// BookingEngine runs the booking dialogue.
type BookingEngine interface {
	Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage
	InFlow(ctx context.Context, tenantID, phone string) (bool, error)
}

// Router sends each message to exactly one engine. A live confirmation session
// wins, then a booking dialogue past its menu; otherwise the confirmation
// engine is offered the text first and the booking engine gets what it declines.
type Router struct {
	Confirmation ConfirmationEngine
	Booking      BookingEngine
	Logger       *zap.Logger
}

// NewRouter wires a Router.
func NewRouter(confirmation ConfirmationEngine, booking BookingEngine, logger *zap.Logger) *Router {
	return &Router{Confirmation: confirmation, Booking: booking, Logger: logger}
}

// Handle routes msg and returns the reply. Handled is false when no engine
// took it.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage {
	msg.Phone = utils.NormalizePhone(msg.Phone)
	log := r.Logger.With(zap.String("tenant", msg.TenantID), zap.String("phone", msg.Phone))

	confirming, err := r.Confirmation.Active(ctx, msg.TenantID, msg.Phone)
	if err != nil {
		log.Error("load confirmation session", zap.Error(err))
		return models.OutboundMessage{Text: apology, Handled: true}
	}
	if confirming {
		log.Debug("routing to confirmation session")
		return r.Confirmation.Handle(ctx, msg)
	}

	booking, err := r.Booking.InFlow(ctx, msg.TenantID, msg.Phone)
	if err != nil {
		log.Error("load booking session", zap.Error(err))
		return models.OutboundMessage{Text: apology, Handled: true}
	}
	if !booking {
		if out := r.Confirmation.Handle(ctx, msg); out.Handled {
			log.Debug("confirmation engine took the message")
			return out
		}
	}
	return r.Booking.Handle(ctx, msg)
}
