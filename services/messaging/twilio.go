package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const whatsappScheme = "whatsapp:"

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender delivers texts through Twilio. A "whatsapp:" from number sends
// over WhatsApp, anything else as SMS.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

func NewTwilioSender(accountSID, authToken, from string, logger *zap.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from, logger: logger}
}

func (s *TwilioSender) Send(_ context.Context, tenantID, phone, text string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient(s.from, phone))
	params.SetFrom(s.from)
	params.SetBody(text)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", phone, err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Debug("twilio message sent", zap.String("tenant", tenantID), zap.String("sid", sid))
	return nil
}

// recipient formats digits-only phone as E.164, on the sender's channel.
func recipient(from, phone string) string {
	to := phone
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}
	if strings.HasPrefix(from, whatsappScheme) {
		return whatsappScheme + to
	}
	return to
}
