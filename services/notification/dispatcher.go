package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnero/database"
	"turnero/database/repository"
	"turnero/models"
	"turnero/services/fields"
	"turnero/services/messaging"
	"turnero/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const defaultBatch = 200

const (
	defaultReminderTemplate     = "⏰ Te recordamos tu {turno} del {fecha} a las {hora} con {agente}."
	defaultConfirmationTemplate = "📅 Hola {cliente}, tienes un {turno} el {fecha} a las {hora} con {agente}.\n\nResponde *SI* para confirmar o el número del {turno} para modificarlo."
)

// Enqueuer is the part of asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher moves due notification records onto the task queue and delivers
// them when the worker picks them up.
type Dispatcher struct {
	Appointments repository.AppointmentRepository
	Agents       repository.AgentRepository
	Clients      repository.ClientRepository
	Settings     repository.SettingsRepository
	Queue        Enqueuer
	Messenger    messaging.Messenger
	Logger       *zap.Logger
	Now          func() time.Time
	BatchSize    int
}

func NewDispatcher(repos *repository.Set, queue Enqueuer, messenger messaging.Messenger, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Appointments: repos.Appointments,
		Agents:       repos.Agents,
		Clients:      repos.Clients,
		Settings:     repos.Settings,
		Queue:        queue,
		Messenger:    messenger,
		Logger:       logger,
		Now:          time.Now,
		BatchSize:    defaultBatch,
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchDue enqueues one task per unsent record whose time has come and
// returns how many were newly enqueued. Records already queued are skipped.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now()
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultBatch
	}
	due, err := d.Appointments.ListDueNotifications(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("list due notifications: %w", err)
	}

	enqueued := 0
	for _, appt := range due {
		for i, rec := range appt.Notifications {
			if rec.Sent || rec.ScheduledFor.After(now) {
				continue
			}
			payload := models.NotificationPayload{TenantID: appt.TenantID, AppointmentID: appt.ID, Index: i}
			task, opts, err := tasks.NewNotificationTask(payload)
			if err != nil {
				return enqueued, err
			}
			_, err = d.Queue.EnqueueContext(ctx, task, opts...)
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			if err != nil {
				return enqueued, fmt.Errorf("enqueue %s: %w", tasks.NotificationTaskID(payload), err)
			}
			enqueued++
		}
	}
	if enqueued > 0 {
		d.Logger.Info("notifications enqueued", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

// Deliver renders and sends one notification record, then marks it sent.
// Records that no longer apply are dropped without error.
func (d *Dispatcher) Deliver(ctx context.Context, p models.NotificationPayload) error {
	log := d.Logger.With(
		zap.String("tenant", p.TenantID),
		zap.String("appointment", p.AppointmentID),
		zap.Int("index", p.Index),
	)

	appt, err := d.Appointments.GetByID(ctx, p.TenantID, p.AppointmentID)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("notification for missing appointment dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if p.Index < 0 || p.Index >= len(appt.Notifications) {
		log.Warn("notification index out of range")
		return nil
	}
	rec := appt.Notifications[p.Index]
	if rec.Sent || !appt.Status.IsActive() {
		log.Debug("notification no longer due", zap.String("status", string(appt.Status)))
		return nil
	}

	settings, err := d.Settings.Get(ctx, p.TenantID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	client, err := d.Clients.GetByID(ctx, p.TenantID, appt.ClientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}
	var agent *models.Agent
	if appt.AgentID != "" {
		agent, err = d.Agents.GetByID(ctx, p.TenantID, appt.AgentID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("load agent: %w", err)
		}
	}

	text := Render(templateFor(rec), Variables(*settings, *appt, client, agent))
	if err := d.Messenger.Send(ctx, p.TenantID, client.Phone, text); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	if err := d.Appointments.MarkNotificationSent(ctx, p.TenantID, appt.ID, p.Index, d.now()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	log.Info("notification sent", zap.String("type", string(rec.Type)))
	return nil
}

func templateFor(rec models.NotificationRecord) string {
	if strings.TrimSpace(rec.Template) != "" {
		return rec.Template
	}
	if rec.Type == models.NotificationConfirmation {
		return defaultConfirmationTemplate
	}
	return defaultReminderTemplate
}

// Variables builds the placeholder values of an appointment's templates:
// fecha, hora, duracion, cliente, agente, turno and every field key.
func Variables(settings models.TenantSettings, appt models.Appointment, client *models.Client, agent *models.Agent) map[string]string {
	sched := settings.Schedule
	local := appt.Start.In(sched.Location())
	noun := sched.Nomenclature.Appointment
	if noun == "" {
		noun = "turno"
	}

	vars := make(map[string]string, len(appt.Fields)+6)
	for key, v := range appt.Fields {
		spec, ok := sched.FieldSpec(key)
		if !ok {
			spec = models.FieldSpec{Key: key, Kind: models.FieldText}
		}
		vars[key] = fields.Display(spec, v)
	}
	vars["fecha"] = local.Format(fields.DateLayout)
	vars["hora"] = local.Format("15:04")
	vars["duracion"] = strconv.Itoa(appt.Duration)
	vars["turno"] = noun
	vars["cliente"] = ""
	if client != nil {
		vars["cliente"] = client.FullName()
	}
	vars["agente"] = ""
	if agent != nil {
		vars["agente"] = agent.FullName()
	}
	return vars
}

// Render replaces every {key} in tmpl. Unknown placeholders stay as written.
func Render(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
