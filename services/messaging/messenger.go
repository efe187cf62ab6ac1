// Package messaging delivers outbound texts to clients.
package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Messenger sends one text to a phone on behalf of a tenant.
type Messenger interface {
	Send(ctx context.Context, tenantID, phone, text string) error
}

// Options selects and configures a Messenger backend.
type Options struct {
	Backend string // amqp, twilio or log

	AMQPURL      string
	AMQPExchange string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

// New builds the Messenger named by opts.Backend. The returned close func
// releases backend connections.
func New(opts Options, logger *zap.Logger) (Messenger, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case "amqp":
		p, err := NewPublisher(opts.AMQPURL, opts.AMQPExchange, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("amqp messenger: %w", err)
		}
		return p, p.Close, nil
	case "twilio":
		if opts.TwilioAccountSID == "" || opts.TwilioFrom == "" {
			return nil, nil, fmt.Errorf("twilio messenger: account sid and from number are required")
		}
		return NewTwilioSender(opts.TwilioAccountSID, opts.TwilioAuthToken, opts.TwilioFrom, logger), noop, nil
	case "log", "":
		return NewLogSender(logger), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown messenger backend %q", opts.Backend)
}

// LogSender only logs. It backs development setups without a channel.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, tenantID, phone, text string) error {
	s.logger.Info("outbound message",
		zap.String("tenant", tenantID),
		zap.String("phone", phone),
		zap.String("text", text),
	)
	return nil
}
