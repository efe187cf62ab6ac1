// Package bot runs the booking dialogue: a (flow, step) state machine driven
// one inbound text at a time.
package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/session"
	"turnero/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	FlowMenu    = "menu_principal"
	FlowCreate  = "crear_turno"
	FlowConsult = "consultar_turnos"
	FlowCancel  = "cancelar_turno"

	StepStart   = "inicio"
	StepDate    = "seleccionar_fecha"
	StepTime    = "seleccionar_hora"
	StepAgent   = "seleccionar_agente"
	StepFields  = "campos_personalizados"
	StepConfirm = "confirmacion"
	StepPick    = "seleccionar_turno"
)

// Apology is returned when a store or repository fails mid-dialogue.
const Apology = "❌ Ocurrió un error. Por favor intenta nuevamente."

// StaleAfter is how long an abandoned session is kept before Sweep drops it.
// Tenant timeouts are shorter; LoadOrCreate already treats those as expired.
const StaleAfter = 24 * time.Hour

// Lifecycle is the part of the appointment service the dialogue drives.
type Lifecycle interface {
	Create(ctx context.Context, in appointment.CreateInput) (*models.Appointment, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.AppointmentStatus, reason string) (*models.Appointment, error)
	UpcomingForClient(ctx context.Context, tenantID, clientID string, limit int) ([]models.Appointment, error)
}

// SlotFinder lists an agent's free slots on a date.
type SlotFinder interface {
	ComputeSlots(ctx context.Context, tenantID, agentID string, date time.Time, duration int) ([]models.Slot, error)
}

// Engine answers inbound texts for tenants whose bot is active.
type Engine struct {
	Settings  repository.SettingsRepository
	Agents    repository.AgentRepository
	Clients   repository.ClientRepository
	Archive   repository.ConversationRepository
	Sessions  session.Store[*models.ConversationSession]
	Lifecycle Lifecycle
	Slots     SlotFinder
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(repos *repository.Set, sessions session.Store[*models.ConversationSession], lifecycle Lifecycle, slots SlotFinder, logger *zap.Logger) *Engine {
	return &Engine{
		Settings:  repos.Settings,
		Agents:    repos.Agents,
		Clients:   repos.Clients,
		Archive:   repos.Conversations,
		Sessions:  sessions,
		Lifecycle: lifecycle,
		Slots:     slots,
		Logger:    logger,
		Now:       time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// turn is the state of one inbound message while it is being handled.
type turn struct {
	sess     *models.ConversationSession
	settings models.TenantSettings
	now      time.Time
	// first is set when this message opened the session.
	first bool
}

func (t *turn) loc() *time.Location { return t.settings.Schedule.Location() }

func (t *turn) noun() string {
	if n := t.settings.Schedule.Nomenclature.Appointment; n != "" {
		return n
	}
	return "turno"
}

// end closes the session; it is archived and dropped from the store.
func (t *turn) end(completed bool) {
	t.sess.Active = false
	t.sess.Completed = completed
}

func (t *turn) reset() {
	t.sess.Flow = FlowMenu
	t.sess.Step = StepStart
	t.sess.Captured = nil
	t.sess.FieldIndex = 0
}

type state struct {
	flow, step string
}

// handler serves one (flow, step). Input not matching pattern gets reprompt
// and leaves the session where it is.
type handler struct {
	pattern  *regexp.Regexp
	reprompt func(t *turn) string
	handle   func(e *Engine, ctx context.Context, t *turn, input string) (string, error)
}

var (
	menuPattern    = regexp.MustCompile(`^[123]$`)
	datePattern    = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	timePattern    = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	numberPattern  = regexp.MustCompile(`^\d+$`)
	confirmPattern = regexp.MustCompile(`^[12]$`)
)

var transitions = map[state]handler{
	{FlowMenu, StepStart}: {
		pattern:  menuPattern,
		reprompt: menuReprompt,
		handle:   (*Engine).selectOption,
	},
	{FlowCreate, StepDate}: {
		pattern:  datePattern,
		reprompt: func(*turn) string { return msgBadDate },
		handle:   (*Engine).selectDate,
	},
	{FlowCreate, StepTime}: {
		pattern:  timePattern,
		reprompt: func(*turn) string { return msgBadTime },
		handle:   (*Engine).selectTime,
	},
	{FlowCreate, StepAgent}: {
		pattern:  numberPattern,
		reprompt: func(*turn) string { return msgBadOption },
		handle:   (*Engine).selectAgent,
	},
	{FlowCreate, StepFields}: {
		handle: (*Engine).captureField,
	},
	{FlowCreate, StepConfirm}: {
		pattern:  confirmPattern,
		reprompt: func(*turn) string { return msgConfirmChoice },
		handle:   (*Engine).confirm,
	},
	{FlowCancel, StepPick}: {
		pattern:  numberPattern,
		reprompt: func(*turn) string { return msgCancelPick },
		handle:   (*Engine).pickCancellation,
	},
}

// Handle processes one inbound text. Handled is false when the tenant's bot is
// inactive so another responder can take over.
func (e *Engine) Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage {
	reply, handled, err := e.handle(ctx, msg)
	if err != nil {
		e.Logger.Error("booking dialogue failed",
			zap.String("tenant", msg.TenantID),
			zap.String("phone", msg.Phone),
			zap.Error(err),
		)
		return models.OutboundMessage{Text: Apology, Handled: true}
	}
	return models.OutboundMessage{Text: reply, Handled: handled}
}

func (e *Engine) handle(ctx context.Context, msg models.InboundMessage) (string, bool, error) {
	settings, err := e.Settings.Get(ctx, msg.TenantID)
	if err != nil {
		return "", false, err
	}
	if !settings.Bot.Active {
		return "", false, nil
	}
	now := e.now()
	if reply, closed := outOfHours(settings.Bot.AttentionHours, now.In(settings.Schedule.Location())); closed {
		return reply, true, nil
	}

	key := session.Key{TenantID: msg.TenantID, Phone: utils.NormalizePhone(msg.Phone)}
	sess, st, err := e.Sessions.LoadOrCreate(ctx, key, now, settings.Bot.Timeout(), func() *models.ConversationSession {
		return &models.ConversationSession{
			ID:           uuid.New().String(),
			TenantID:     key.TenantID,
			Phone:        key.Phone,
			Flow:         FlowMenu,
			Step:         StepStart,
			StartedAt:    now,
			LastActivity: now,
			Active:       true,
		}
	})
	if err != nil {
		return "", false, err
	}
	if st == session.Expired {
		e.Logger.Info("booking session timed out", zap.String("tenant", key.TenantID), zap.String("phone", key.Phone))
	}

	t := &turn{sess: sess, settings: *settings, now: now, first: st != session.Existing}
	input := strings.TrimSpace(msg.Text)

	reply, err := e.dispatch(ctx, t, input)
	if err != nil {
		return "", false, err
	}

	sess.Record(msg.Text, reply, now)
	sess.LastActivity = now
	if sess.Active {
		if err := e.Sessions.Save(ctx, key, sess); err != nil {
			return "", false, err
		}
		return reply, true, nil
	}

	if err := e.Archive.Archive(ctx, *sess); err != nil {
		e.Logger.Warn("archive conversation", zap.String("tenant", key.TenantID), zap.Error(err))
	}
	if err := e.Sessions.Delete(ctx, key); err != nil {
		return "", false, err
	}
	return reply, true, nil
}

func (e *Engine) dispatch(ctx context.Context, t *turn, input string) (string, error) {
	if isMenuKeyword(input) {
		t.reset()
		return t.settings.Bot.WelcomeTemplate, nil
	}
	h, ok := transitions[state{t.sess.Flow, t.sess.Step}]
	if !ok {
		t.reset()
		return msgLost + "\n\n" + t.settings.Bot.WelcomeTemplate, nil
	}
	if h.pattern != nil && !h.pattern.MatchString(input) {
		return h.reprompt(t), nil
	}
	return h.handle(e, ctx, t, input)
}

// InFlow reports whether phone has a live session, including one waiting at
// the main menu for an option.
func (e *Engine) InFlow(ctx context.Context, tenantID, phone string) (bool, error) {
	settings, err := e.Settings.Get(ctx, tenantID)
	if err != nil {
		return false, err
	}
	sess, err := e.Sessions.Load(ctx, session.Key{TenantID: tenantID, Phone: utils.NormalizePhone(phone)})
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if session.IsExpired(sess.Touched(), e.now(), settings.Bot.Timeout()) {
		return false, nil
	}
	return sess.Active, nil
}

// Sweep removes sessions untouched for longer than StaleAfter.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	return e.Sessions.Sweep(ctx, e.now(), StaleAfter)
}

func isMenuKeyword(input string) bool {
	switch strings.ToLower(input) {
	case "menu", "menú":
		return true
	}
	return false
}

func menuReprompt(t *turn) string {
	if t.first {
		return t.settings.Bot.WelcomeTemplate
	}
	return t.settings.Bot.ErrorTemplate + "\n\n" + t.settings.Bot.WelcomeTemplate
}

// outOfHours reports whether local falls outside the attention window and
// renders the notice when it does.
func outOfHours(h models.AttentionHours, local time.Time) (string, bool) {
	if !h.Active {
		return "", false
	}
	open := false
	for _, d := range h.Weekdays {
		if d == int(local.Weekday()) {
			open = true
			break
		}
	}
	if open {
		start, err1 := models.ParseClock(h.Start)
		end, err2 := models.ParseClock(h.End)
		if err1 == nil && err2 == nil {
			minute := local.Hour()*60 + local.Minute()
			open = minute >= start && minute <= end
		}
	}
	if open {
		return "", false
	}
	r := strings.NewReplacer("{inicio}", h.Start, "{fin}", h.End)
	return r.Replace(h.OutOfHoursTemplate), true
}
