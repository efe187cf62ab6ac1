// Package confirmation handles replies to confirmation requests: confirm
// everything at once, or walk one appointment's editable fields.
package confirmation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"turnero/database"
	"turnero/database/repository"
	"turnero/models"
	"turnero/services/appointment"
	"turnero/services/session"
	"turnero/utils"

	"go.uber.org/zap"
)

const (
	// IdleTimeout is how long a confirmation session survives without replies.
	IdleTimeout = 10 * time.Minute
	// SweepInterval is how often idle sessions are removed.
	SweepInterval = 5 * time.Minute

	cancelReason = "Cancelado por el cliente al confirmar"
	apology      = "❌ Ocurrió un error. Por favor intenta nuevamente."
)

var affirmatives = map[string]bool{
	"si": true, "sí": true, "yes": true, "confirmar": true, "confirmo": true, "ok": true, "1": true,
}

// Lifecycle is the part of the appointment service the dialogue drives.
type Lifecycle interface {
	AwaitingConfirmation(ctx context.Context, tenantID, clientID string) ([]models.Appointment, error)
	Get(ctx context.Context, tenantID, id string) (*models.Appointment, error)
	ConfirmWithReply(ctx context.Context, tenantID, id, reply string) (*models.Appointment, error)
	Cancel(ctx context.Context, tenantID, id, reason string) (*models.Appointment, error)
	UpdateFields(ctx context.Context, tenantID, id string, values map[string]any) (*models.Appointment, error)
	Reschedule(ctx context.Context, tenantID, id string, start time.Time) (*models.Appointment, error)
}

// Engine answers replies from phones with notified pending appointments.
type Engine struct {
	Settings  repository.SettingsRepository
	Clients   repository.ClientRepository
	Sessions  session.Store[*models.ConfirmationSession]
	Lifecycle Lifecycle
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(repos *repository.Set, sessions session.Store[*models.ConfirmationSession], lifecycle Lifecycle, logger *zap.Logger) *Engine {
	return &Engine{
		Settings:  repos.Settings,
		Clients:   repos.Clients,
		Sessions:  sessions,
		Lifecycle: lifecycle,
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

// Handle processes one inbound text. Handled is false when the text is not a
// reply this engine understands.
func (e *Engine) Handle(ctx context.Context, msg models.InboundMessage) models.OutboundMessage {
	reply, handled, err := e.handle(ctx, msg)
	if err != nil {
		e.Logger.Error("confirmation dialogue failed",
			zap.String("tenant", msg.TenantID),
			zap.String("phone", msg.Phone),
			zap.Error(err),
		)
		return models.OutboundMessage{Text: apology, Handled: true}
	}
	return models.OutboundMessage{Text: reply, Handled: handled}
}

// Active reports whether phone has a live confirmation session.
func (e *Engine) Active(ctx context.Context, tenantID, phone string) (bool, error) {
	sess, err := e.Sessions.Load(ctx, session.Key{TenantID: tenantID, Phone: utils.NormalizePhone(phone)})
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !session.IsExpired(sess.Touched(), e.now(), IdleTimeout), nil
}

// Sweep removes sessions idle for longer than IdleTimeout.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	return e.Sessions.Sweep(ctx, e.now(), IdleTimeout)
}

type turn struct {
	key      session.Key
	sess     *models.ConfirmationSession
	settings models.TenantSettings
	now      time.Time
	// raw is the inbound text with surrounding space removed.
	raw string
	// done drops the session once the reply is sent.
	done bool
}

func (e *Engine) handle(ctx context.Context, msg models.InboundMessage) (string, bool, error) {
	key := session.Key{TenantID: msg.TenantID, Phone: utils.NormalizePhone(msg.Phone)}
	now := e.now()
	input := normalize(msg.Text)

	sess, err := e.Sessions.Load(ctx, key)
	switch {
	case errors.Is(err, session.ErrNotFound):
		sess = nil
	case err != nil:
		return "", false, err
	case session.IsExpired(sess.Touched(), now, IdleTimeout):
		if err := e.Sessions.Delete(ctx, key); err != nil {
			return "", false, err
		}
		sess = nil
	}

	settings, err := e.Settings.Get(ctx, msg.TenantID)
	if err != nil {
		return "", false, err
	}
	t := &turn{key: key, sess: sess, settings: *settings, now: now, raw: strings.TrimSpace(msg.Text)}

	var reply string
	if sess == nil {
		var handled bool
		reply, handled, err = e.start(ctx, t, input)
		if err != nil || !handled {
			return "", false, err
		}
	} else {
		reply, err = e.step(ctx, t, input)
		if err != nil {
			return "", false, err
		}
	}

	if t.sess == nil {
		return reply, true, nil
	}
	if t.done {
		if err := e.Sessions.Delete(ctx, key); err != nil {
			return "", false, err
		}
		return reply, true, nil
	}
	t.sess.LastTouch = now
	if err := e.Sessions.Save(ctx, key, t.sess); err != nil {
		return "", false, err
	}
	return reply, true, nil
}

// start handles a message from a phone without a session.
func (e *Engine) start(ctx context.Context, t *turn, input string) (string, bool, error) {
	client, err := e.Clients.FindByPhone(ctx, t.key.TenantID, t.key.Phone)
	if errors.Is(err, database.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	pending, err := e.Lifecycle.AwaitingConfirmation(ctx, t.key.TenantID, client.ID)
	if err != nil {
		return "", false, err
	}
	if len(pending) == 0 {
		return "", false, nil
	}

	if affirmatives[input] {
		confirmed := make([]models.Appointment, 0, len(pending))
		for _, a := range pending {
			got, err := e.Lifecycle.ConfirmWithReply(ctx, t.key.TenantID, a.ID, appointment.ConfirmationReply)
			if err != nil {
				return "", false, err
			}
			confirmed = append(confirmed, *got)
		}
		e.Logger.Info("appointments confirmed by reply",
			zap.String("tenant", t.key.TenantID),
			zap.String("client", client.ID),
			zap.Int("count", len(confirmed)),
		)
		return confirmedText(t, confirmed), true, nil
	}

	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(pending) {
		return "", false, nil
	}
	ids := make([]string, len(pending))
	for i, a := range pending {
		ids[i] = a.ID
	}
	t.sess = &models.ConfirmationSession{
		TenantID:         t.key.TenantID,
		Phone:            t.key.Phone,
		Targets:          ids,
		Step:             models.ConfirmEditingField,
		AppointmentIndex: n - 1,
		FieldIndex:       models.NoFieldTargeted,
		LastTouch:        t.now,
	}
	reply, err := e.editMenu(ctx, t, "")
	return reply, true, err
}

func (e *Engine) step(ctx context.Context, t *turn, input string) (string, error) {
	switch t.sess.Step {
	case models.ConfirmSelecting:
		return e.selectAppointment(ctx, t, input)
	case models.ConfirmEditingField:
		if t.sess.FieldIndex == models.NoFieldTargeted {
			return e.chooseAction(ctx, t, input)
		}
		return e.editField(ctx, t)
	}
	t.sess.Step = models.ConfirmSelecting
	return e.selectionList(ctx, t, "")
}

func (e *Engine) selectAppointment(ctx context.Context, t *turn, input string) (string, error) {
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > len(t.sess.Targets) {
		return e.selectionList(ctx, t, msgBadOption)
	}
	t.sess.AppointmentIndex = n - 1
	t.sess.Step = models.ConfirmEditingField
	t.sess.FieldIndex = models.NoFieldTargeted
	return e.editMenu(ctx, t, "")
}

func (e *Engine) chooseAction(ctx context.Context, t *turn, input string) (string, error) {
	editable := editableFields(t.settings.Schedule)
	k := len(editable)
	n, err := strconv.Atoi(input)
	switch {
	case err != nil || n < 0 || n > k+2:
		return e.editMenu(ctx, t, msgBadOption)
	case n == 0:
		t.sess.Step = models.ConfirmSelecting
		return e.selectionList(ctx, t, "")
	case n <= k:
		t.sess.FieldIndex = n - 1
		return fieldPrompt(editable[n-1]), nil
	case n == k+1:
		appt, err := e.Lifecycle.ConfirmWithReply(ctx, t.key.TenantID, t.target(), appointment.ConfirmationReply)
		if errors.Is(err, appointment.ErrInvalidTransition) {
			return e.editMenu(ctx, t, msgNotActionable(t))
		}
		if err != nil {
			return "", err
		}
		return e.finishTarget(ctx, t, "✅ "+capitalize(noun(t))+" del "+when(appt.Start, t)+" confirmado.")
	default:
		appt, err := e.Lifecycle.Cancel(ctx, t.key.TenantID, t.target(), cancelReason)
		if _, ok := appointment.AsValidation(err); ok || errors.Is(err, appointment.ErrInvalidTransition) {
			return e.editMenu(ctx, t, msgNotActionable(t))
		}
		if err != nil {
			return "", err
		}
		return e.finishTarget(ctx, t, "✅ "+capitalize(noun(t))+" del "+when(appt.Start, t)+" cancelado.")
	}
}

func (e *Engine) editField(ctx context.Context, t *turn) (string, error) {
	editable := editableFields(t.settings.Schedule)
	if t.sess.FieldIndex < 0 || t.sess.FieldIndex >= len(editable) {
		t.sess.FieldIndex = models.NoFieldTargeted
		return e.editMenu(ctx, t, "")
	}
	spec := editable[t.sess.FieldIndex]
	raw := t.raw

	var err error
	if spec.Key == timeKey {
		minutes, perr := parseClock(raw)
		if perr != nil {
			return msgBadTime, nil
		}
		err = e.changeTime(ctx, t, minutes)
	} else {
		_, err = e.Lifecycle.UpdateFields(ctx, t.key.TenantID, t.target(), map[string]any{spec.Key: raw})
	}
	if ve, ok := appointment.AsValidation(err); ok {
		return "❌ " + rejectionText(ve) + "\n\n" + fieldPrompt(spec), nil
	}
	if err != nil {
		return "", err
	}
	t.sess.FieldIndex = models.NoFieldTargeted
	return e.editMenu(ctx, t, "✅ Cambio guardado.")
}

func (e *Engine) changeTime(ctx context.Context, t *turn, minutes int) error {
	appt, err := e.Lifecycle.Get(ctx, t.key.TenantID, t.target())
	if err != nil {
		return err
	}
	start := models.AtClock(appt.Start, minutes, t.settings.Schedule.Location())
	_, err = e.Lifecycle.Reschedule(ctx, t.key.TenantID, appt.ID, start)
	return err
}

// finishTarget drops the current appointment from the session and either
// ends it or goes back to the selection list.
func (e *Engine) finishTarget(ctx context.Context, t *turn, notice string) (string, error) {
	s := t.sess
	s.Targets = append(s.Targets[:s.AppointmentIndex], s.Targets[s.AppointmentIndex+1:]...)
	s.AppointmentIndex = 0
	s.FieldIndex = models.NoFieldTargeted
	if len(s.Targets) == 0 {
		t.done = true
		return notice + "\n\n" + t.settings.Bot.GoodbyeTemplate, nil
	}
	s.Step = models.ConfirmSelecting
	return e.selectionList(ctx, t, notice)
}

func (t *turn) target() string {
	return t.sess.Targets[t.sess.AppointmentIndex]
}

func normalize(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!¡ ")
}
