package models

import "time"

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// ActiveStatuses occupy agent time.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusInProgress}

// IsActive reports whether the status occupies agent time.
func (s AppointmentStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CreatedBy identifies who created an appointment.
type CreatedBy string

const (
	CreatedByBot    CreatedBy = "bot"
	CreatedByAdmin  CreatedBy = "admin"
	CreatedByAgent  CreatedBy = "agent"
	CreatedByClient CreatedBy = "client"
)

// NotificationType distinguishes plain reminders from confirmation requests.
type NotificationType string

const (
	NotificationReminder     NotificationType = "reminder"
	NotificationConfirmation NotificationType = "confirmation"
)

// NotificationRecord is a scheduled or sent message attached to an appointment.
type NotificationRecord struct {
	Type         NotificationType `bson:"type" json:"type"`
	ScheduledFor time.Time        `bson:"scheduledFor" json:"scheduledFor"`
	Sent         bool             `bson:"sent" json:"sent"`
	SentAt       *time.Time       `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	Template     string           `bson:"template,omitempty" json:"template,omitempty"`
	Reply        string           `bson:"reply,omitempty" json:"reply,omitempty"`
	RepliedAt    *time.Time       `bson:"repliedAt,omitempty" json:"repliedAt,omitempty"`
}

// Appointment is a booked reservation of an agent's time by a client.
type Appointment struct {
	ID                 string               `bson:"id" json:"id"`
	TenantID           string               `bson:"tenantId" json:"tenantId"`
	AgentID            string               `bson:"agentId,omitempty" json:"agentId,omitempty"`
	ClientID           string               `bson:"clientId" json:"clientId"`
	Start              time.Time            `bson:"start" json:"start"`
	End                time.Time            `bson:"end" json:"end"`
	Duration           int                  `bson:"duration" json:"duration"` // minutes
	Status             AppointmentStatus    `bson:"status" json:"status"`
	Fields             map[string]any       `bson:"fields,omitempty" json:"fields,omitempty"`
	Notes              string               `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy          CreatedBy            `bson:"createdBy" json:"createdBy"`
	Confirmed          bool                 `bson:"confirmed" json:"confirmed"`
	ConfirmedAt        *time.Time           `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
	CancellationReason string               `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time           `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	Notifications      []NotificationRecord `bson:"notifications" json:"notifications"`
	// SlotKey is set only while a scheduled-mode appointment is active; a
	// unique index on it rejects a second booking of the same agent start.
	SlotKey   string    `bson:"slotKey,omitempty" json:"-"`
	// Version counts writes; an update must carry the version it read.
	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasSentNotification reports whether any notification went out.
func (a Appointment) HasSentNotification() bool {
	for _, n := range a.Notifications {
		if n.Sent {
			return true
		}
	}
	return false
}

// SlotKeyFor builds the occupancy key of an agent start instant.
func SlotKeyFor(agentID string, start time.Time) string {
	return agentID + "@" + start.UTC().Format(time.RFC3339)
}

// AppointmentFilter narrows appointment listings. Zero values are ignored.
type AppointmentFilter struct {
	TenantID string
	AgentID  string
	ClientID string
	Statuses []AppointmentStatus
	From     time.Time // start >= From
	To       time.Time // start < To
	Limit    int
}

// AppointmentStats aggregates a tenant's appointments.
type AppointmentStats struct {
	Total            int                       `json:"total"`
	ByStatus         map[AppointmentStatus]int `json:"byStatus"`
	AttendanceRate   float64                   `json:"attendanceRate"`
	CancellationRate float64                   `json:"cancellationRate"`
}
