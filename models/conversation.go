package models

import "time"

// Speaker marks who wrote a transcript line.
type Speaker string

const (
	SpeakerClient Speaker = "client"
	SpeakerBot    Speaker = "bot"
)

// TranscriptEntry is one line of a conversation.
type TranscriptEntry struct {
	Speaker Speaker   `bson:"speaker" json:"speaker"`
	Text    string    `bson:"text" json:"text"`
	At      time.Time `bson:"at" json:"at"`
}

// CapturedValue is one answer collected by the booking dialogue.
type CapturedValue struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

// ConversationSession tracks a client through the booking dialogue.
type ConversationSession struct {
	ID           string            `bson:"id" json:"id"`
	TenantID     string            `bson:"tenantId" json:"tenantId"`
	Phone        string            `bson:"phone" json:"phone"`
	Flow         string            `bson:"flow" json:"flow"`
	Step         string            `bson:"step" json:"step"`
	Captured     []CapturedValue   `bson:"captured" json:"captured"`
	FieldIndex   int               `bson:"fieldIndex" json:"fieldIndex"`
	Transcript   []TranscriptEntry `bson:"transcript" json:"transcript"`
	StartedAt    time.Time         `bson:"startedAt" json:"startedAt"`
	LastActivity time.Time         `bson:"lastActivity" json:"lastActivity"`
	Active       bool              `bson:"active" json:"active"`
	Completed    bool              `bson:"completed" json:"completed"`
	// AppointmentID is set once the dialogue books an appointment.
	AppointmentID string `bson:"appointmentId,omitempty" json:"appointmentId,omitempty"`
}

// Get returns a captured value.
func (s *ConversationSession) Get(key string) (string, bool) {
	for _, c := range s.Captured {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Set stores a captured value, keeping first-capture order.
func (s *ConversationSession) Set(key, value string) {
	for i := range s.Captured {
		if s.Captured[i].Key == key {
			s.Captured[i].Value = value
			return
		}
	}
	s.Captured = append(s.Captured, CapturedValue{Key: key, Value: value})
}

// Unset drops a captured value.
func (s *ConversationSession) Unset(key string) {
	for i := range s.Captured {
		if s.Captured[i].Key == key {
			s.Captured = append(s.Captured[:i], s.Captured[i+1:]...)
			return
		}
	}
}

// Record appends an inbound/outbound pair to the transcript.
func (s *ConversationSession) Record(in, out string, at time.Time) {
	s.Transcript = append(s.Transcript,
		TranscriptEntry{Speaker: SpeakerClient, Text: in, At: at},
		TranscriptEntry{Speaker: SpeakerBot, Text: out, At: at},
	)
}

// Touched returns the last inbound activity.
func (s *ConversationSession) Touched() time.Time { return s.LastActivity }

// Clone returns a deep copy.
func (s *ConversationSession) Clone() *ConversationSession {
	out := *s
	out.Captured = append([]CapturedValue(nil), s.Captured...)
	out.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	return &out
}

// ConfirmationStep is the position inside the confirm/edit dialogue.
type ConfirmationStep string

const (
	ConfirmInitial      ConfirmationStep = "initial"
	ConfirmSelecting    ConfirmationStep = "selecting_appointment"
	ConfirmEditingField ConfirmationStep = "editing_field"
)

// NoFieldTargeted marks an edit menu waiting for a field choice.
const NoFieldTargeted = -1

// ConfirmationSession tracks a short confirm/edit exchange after a notification.
type ConfirmationSession struct {
	TenantID         string           `json:"tenantId"`
	Phone            string           `json:"phone"`
	Targets          []string         `json:"targets"`
	Step             ConfirmationStep `json:"step"`
	AppointmentIndex int              `json:"appointmentIndex"`
	FieldIndex       int              `json:"fieldIndex"`
	LastTouch        time.Time        `json:"lastTouch"`
}

func (s *ConfirmationSession) Touched() time.Time { return s.LastTouch }

func (s *ConfirmationSession) Clone() *ConfirmationSession {
	out := *s
	out.Targets = append([]string(nil), s.Targets...)
	return &out
}

// InboundMessage is a text received from the channel adapter.
type InboundMessage struct {
	TenantID  string    `json:"tenantId" binding:"required"`
	Phone     string    `json:"phone" binding:"required"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage is the reply for the channel adapter. Handled is false when
// no engine took the message.
type OutboundMessage struct {
	Text    string `json:"reply,omitempty"`
	Handled bool   `json:"handled"`
}
