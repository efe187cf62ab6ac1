package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCreator struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, phone, want string
	}{
		{"+15005550006", "5491155551234", "+5491155551234"},
		{"whatsapp:+14155238886", "5491155551234", "whatsapp:+5491155551234"},
		{"+15005550006", "+5491155551234", "+5491155551234"},
	}
	for _, tt := range tests {
		if got := recipient(tt.from, tt.phone); got != tt.want {
			t.Errorf("recipient(%q, %q) = %q, want %q", tt.from, tt.phone, got, tt.want)
		}
	}
}

func TestTwilioSend(t *testing.T) {
	t.Parallel()

	api := &fakeCreator{}
	s := &TwilioSender{api: api, from: "whatsapp:+14155238886", logger: zap.NewNop()}
	if err := s.Send(context.Background(), "t1", "5491155551234", "hola"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if *api.params.To != "whatsapp:+5491155551234" || *api.params.From != "whatsapp:+14155238886" || *api.params.Body != "hola" {
		t.Fatalf("params = %s %s %s", *api.params.To, *api.params.From, *api.params.Body)
	}

	api.err = errors.New("boom")
	if err := s.Send(context.Background(), "t1", "1", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSender(zap.New(core))
	if err := s.Send(context.Background(), "t1", "123", "hola"); err != nil {
		t.Fatal(err)
	}
	entries := logs.FilterMessage("outbound message").All()
	if len(entries) != 1 || entries[0].ContextMap()["text"] != "hola" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Options{Backend: "pigeon"}, zap.NewNop()); err == nil {
		t.Fatal("expected error")
	}
	if _, _, err := New(Options{Backend: "twilio"}, zap.NewNop()); err == nil {
		t.Fatal("twilio without credentials accepted")
	}
	m, closeFn, err := New(Options{Backend: "log"}, zap.NewNop())
	if err != nil || m == nil || closeFn() != nil {
		t.Fatalf("log backend: %v", err)
	}
}

func TestEnvelope(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 1, 6, 10, 0, 0, 0, time.UTC)
	env := newEnvelope(OutboundTextKey, OutboundText{TenantID: "t1", Phone: "1", Text: "hola"}, now)
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Meta Meta         `json:"meta"`
		Data OutboundText `json:"data"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Meta.ID == "" || got.Meta.Type != OutboundTextKey || !got.Meta.Time.Equal(now) || got.Data.Text != "hola" {
		t.Fatalf("envelope = %+v", got)
	}
}
