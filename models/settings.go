package models

import "time"

// FieldKind tags the value type of a custom field.
type FieldKind string

const (
	FieldText   FieldKind = "text"
	FieldNumber FieldKind = "number"
	FieldEnum   FieldKind = "enum"
	FieldDate   FieldKind = "date"
	FieldTime   FieldKind = "time"
)

// FieldSpec declares one tenant-defined appointment field.
type FieldSpec struct {
	Key         string    `bson:"key" json:"key"`
	Label       string    `bson:"label" json:"label"`
	Kind        FieldKind `bson:"kind" json:"kind"`
	Required    bool      `bson:"required" json:"required"`
	Options     []string  `bson:"options,omitempty" json:"options,omitempty"`
	Min         *float64  `bson:"min,omitempty" json:"min,omitempty"`
	Max         *float64  `bson:"max,omitempty" json:"max,omitempty"`
	Placeholder string    `bson:"placeholder,omitempty" json:"placeholder,omitempty"`
	// System fields are filled internally and never offered for editing.
	System bool `bson:"system,omitempty" json:"system,omitempty"`
}

// NotificationMoment decides when a rule fires relative to the appointment.
type NotificationMoment string

const (
	MomentHoursBefore NotificationMoment = "hours_before"
	MomentDayBefore   NotificationMoment = "day_before"
	MomentSameDay     NotificationMoment = "same_day"
)

// NotificationRule schedules one notification per new appointment.
type NotificationRule struct {
	Active      bool               `bson:"active" json:"active"`
	Type        NotificationType   `bson:"type" json:"type"`
	Moment      NotificationMoment `bson:"moment" json:"moment"`
	HoursBefore int                `bson:"hoursBefore,omitempty" json:"hoursBefore,omitempty"`
	DaysBefore  int                `bson:"daysBefore,omitempty" json:"daysBefore,omitempty"`
	SendAt      string             `bson:"sendAt,omitempty" json:"sendAt,omitempty"` // "HH:MM"
	Template    string             `bson:"template" json:"template"`
}

// AgendaRule sends every active agent the list of their day's appointments.
type AgendaRule struct {
	Active   bool   `bson:"active" json:"active"`
	SendAt   string `bson:"sendAt" json:"sendAt"` // "HH:MM", tenant time
	Template string `bson:"template,omitempty" json:"template,omitempty"`

	// SendToAll also messages agents with nothing booked that day.
	SendToAll bool `bson:"sendToAll" json:"sendToAll"`
}

// Nomenclature lets a tenant rename the domain nouns shown to clients.
type Nomenclature struct {
	Appointment  string `bson:"appointment" json:"appointment"`
	Appointments string `bson:"appointments" json:"appointments"`
	Agent        string `bson:"agent" json:"agent"`
}

// ScheduleConfiguration holds a tenant's booking rules.
type ScheduleConfiguration struct {
	TimeZone                 string             `bson:"timeZone" json:"timeZone"`
	UsesAgents               bool               `bson:"usesAgents" json:"usesAgents"`
	DefaultDuration          int                `bson:"defaultDuration" json:"defaultDuration"`
	Fields                   []FieldSpec        `bson:"fields" json:"fields"`
	MinLeadHours             int                `bson:"minLeadHours" json:"minLeadHours"`
	MaxLeadDays              int                `bson:"maxLeadDays" json:"maxLeadDays"`
	RequiresConfirmation     bool               `bson:"requiresConfirmation" json:"requiresConfirmation"`
	CancellationWindowHours  int                `bson:"cancellationWindowHours" json:"cancellationWindowHours"`
	ConfirmationHorizonHours int                `bson:"confirmationHorizonHours" json:"confirmationHorizonHours"`
	Nomenclature             Nomenclature       `bson:"nomenclature" json:"nomenclature"`
	NotificationRules        []NotificationRule `bson:"notificationRules" json:"notificationRules"`
	AgentAgenda              AgendaRule         `bson:"agentAgenda" json:"agentAgenda"`
}

// Location resolves the tenant time zone, falling back to UTC.
func (c ScheduleConfiguration) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FieldSpec returns the declared field with the given key.
func (c ScheduleConfiguration) FieldSpec(key string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// AttentionHours restricts when the bot answers.
type AttentionHours struct {
	Active             bool   `bson:"active" json:"active"`
	Start              string `bson:"start" json:"start"`
	End                string `bson:"end" json:"end"`
	Weekdays           []int  `bson:"weekdays" json:"weekdays"`
	OutOfHoursTemplate string `bson:"outOfHoursTemplate" json:"outOfHoursTemplate"`
}

// BotConfiguration holds a tenant's dialogue settings.
type BotConfiguration struct {
	Active            bool           `bson:"active" json:"active"`
	WelcomeTemplate   string         `bson:"welcomeTemplate" json:"welcomeTemplate"`
	GoodbyeTemplate   string         `bson:"goodbyeTemplate" json:"goodbyeTemplate"`
	ErrorTemplate     string         `bson:"errorTemplate" json:"errorTemplate"`
	TimeoutMinutes    int            `bson:"timeoutMinutes" json:"timeoutMinutes"`
	AttentionHours    AttentionHours `bson:"attentionHours" json:"attentionHours"`
	AllowCancellation bool           `bson:"allowCancellation" json:"allowCancellation"`
}

// Timeout is the inactivity window of a booking session.
func (b BotConfiguration) Timeout() time.Duration {
	if b.TimeoutMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(b.TimeoutMinutes) * time.Minute
}

// TenantSettings bundles every per-tenant configuration document.
type TenantSettings struct {
	TenantID  string                `bson:"tenantId" json:"tenantId"`
	Schedule  ScheduleConfiguration `bson:"schedule" json:"schedule"`
	Bot       BotConfiguration      `bson:"bot" json:"bot"`
	UpdatedAt time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// DefaultTenantSettings is used for tenants that never saved settings.
func DefaultTenantSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID: tenantID,
		Schedule: ScheduleConfiguration{
			TimeZone:                 "UTC",
			UsesAgents:               true,
			DefaultDuration:          30,
			MinLeadHours:             1,
			MaxLeadDays:              60,
			CancellationWindowHours:  2,
			ConfirmationHorizonHours: 48,
			AgentAgenda:              AgendaRule{Active: false, SendAt: "07:00"},
			Nomenclature: Nomenclature{
				Appointment:  "turno",
				Appointments: "turnos",
				Agent:        "profesional",
			},
		},
		Bot: BotConfiguration{
			Active:          true,
			WelcomeTemplate: "¡Hola! 👋 Soy tu asistente virtual.\n\n¿En qué puedo ayudarte?\n\n1️⃣ Agendar turno\n2️⃣ Consultar mis turnos\n3️⃣ Cancelar turno\n\nEscribe el número de la opción.",
			GoodbyeTemplate: "¡Hasta pronto! 👋 Si necesitas algo más, escríbeme.",
			ErrorTemplate:   "❌ No entendí tu respuesta. Por favor, elige una opción válida.",
			TimeoutMinutes:  10,
			AttentionHours: AttentionHours{
				Active:             false,
				Start:              "00:00",
				End:                "23:59",
				Weekdays:           []int{0, 1, 2, 3, 4, 5, 6},
				OutOfHoursTemplate: "⏰ Nuestro horario de atención es de {inicio} a {fin}.",
			},
			AllowCancellation: true,
		},
	}
}
