package notification

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"turnero/database/repository"
	"turnero/models"
	"turnero/services/fields"
	"turnero/services/messaging"

	"go.uber.org/zap"
)

const (
	defaultAgendaAt       = "07:00"
	defaultAgendaTemplate = "📋 Hola {agente}, estos son tus {turnos} del {fecha} ({cantidad}):\n\n{agenda}"
	// agendaWindow is how long after the send time a missed run still sends.
	agendaWindow = 30 * time.Minute
)

// AgendaSender sends each active agent the list of their appointments for
// the day, once per day at the tenant's configured time.
type AgendaSender struct {
	Settings     repository.SettingsRepository
	Agents       repository.AgentRepository
	Clients      repository.ClientRepository
	Appointments repository.AppointmentRepository
	Messenger    messaging.Messenger
	Logger       *zap.Logger
	Now          func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time // tenant/agent/date -> local day
}

func NewAgendaSender(repos *repository.Set, messenger messaging.Messenger, logger *zap.Logger) *AgendaSender {
	return &AgendaSender{
		Settings:     repos.Settings,
		Agents:       repos.Agents,
		Clients:      repos.Clients,
		Appointments: repos.Appointments,
		Messenger:    messenger,
		Logger:       logger,
		Now:          time.Now,
		sent:         make(map[string]time.Time),
	}
}

func (s *AgendaSender) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SendDue sends the agendas whose time has come and returns how many went
// out. A tenant's failure is logged and does not stop the others.
func (s *AgendaSender) SendDue(ctx context.Context) (int, error) {
	now := s.now()
	tenants, err := s.Settings.ListWithAgenda(ctx)
	if err != nil {
		return 0, fmt.Errorf("list agenda tenants: %w", err)
	}
	s.prune(now)

	total := 0
	for _, settings := range tenants {
		day, ok := agendaDay(settings.Schedule, now)
		if !ok {
			continue
		}
		n, err := s.sendTenant(ctx, settings, day)
		total += n
		if err != nil {
			s.Logger.Error("agenda delivery failed", zap.String("tenant", settings.TenantID), zap.Error(err))
		}
	}
	if total > 0 {
		s.Logger.Info("agendas sent", zap.Int("count", total))
	}
	return total, nil
}

// agendaDay returns the local midnight of the agenda due at now, if any.
func agendaDay(sched models.ScheduleConfiguration, now time.Time) (time.Time, bool) {
	loc := sched.Location()
	at, ok := clockOn(now, sched.AgentAgenda.SendAt, defaultAgendaAt, loc)
	if !ok || now.Before(at) || !now.Before(at.Add(agendaWindow)) {
		return time.Time{}, false
	}
	return models.StartOfDay(now, loc), true
}

func (s *AgendaSender) sendTenant(ctx context.Context, settings models.TenantSettings, day time.Time) (int, error) {
	agents, err := s.Agents.List(ctx, settings.TenantID, true)
	if err != nil {
		return 0, fmt.Errorf("list agents: %w", err)
	}
	sent := 0
	for i := range agents {
		agent := &agents[i]
		if agent.Phone == "" {
			continue
		}
		key := settings.TenantID + "/" + agent.ID + "/" + day.Format("2006-01-02")
		if s.done(key) {
			continue
		}
		appts, err := s.Appointments.List(ctx, models.AppointmentFilter{
			TenantID: settings.TenantID,
			AgentID:  agent.ID,
			Statuses: models.ActiveStatuses,
			From:     day,
			To:       day.AddDate(0, 0, 1),
		})
		if err != nil {
			return sent, fmt.Errorf("list appointments of %s: %w", agent.ID, err)
		}
		if len(appts) == 0 && !settings.Schedule.AgentAgenda.SendToAll {
			s.mark(key, day)
			continue
		}
		text, err := s.render(ctx, settings, agent, day, appts)
		if err != nil {
			return sent, err
		}
		if err := s.Messenger.Send(ctx, settings.TenantID, agent.Phone, text); err != nil {
			return sent, fmt.Errorf("send agenda to %s: %w", agent.ID, err)
		}
		s.mark(key, day)
		sent++
	}
	return sent, nil
}

func (s *AgendaSender) render(ctx context.Context, settings models.TenantSettings, agent *models.Agent, day time.Time, appts []models.Appointment) (string, error) {
	sched := settings.Schedule
	loc := sched.Location()
	sort.Slice(appts, func(i, j int) bool { return appts[i].Start.Before(appts[j].Start) })

	lines := make([]string, 0, len(appts))
	for _, a := range appts {
		line := a.Start.In(loc).Format("15:04")
		client, err := s.Clients.GetByID(ctx, settings.TenantID, a.ClientID)
		if err != nil {
			return "", fmt.Errorf("load client %s: %w", a.ClientID, err)
		}
		if name := client.FullName(); name != "" {
			line += " " + name
		}
		if a.Status == models.StatusPending {
			line += " (sin confirmar)"
		}
		lines = append(lines, "• "+line)
	}

	plural := sched.Nomenclature.Appointments
	if plural == "" {
		plural = "turnos"
	}
	if len(lines) == 0 {
		lines = append(lines, "No tienes "+plural+" programados para hoy. 🎉")
	}
	tmpl := sched.AgentAgenda.Template
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultAgendaTemplate
	}
	return Render(tmpl, map[string]string{
		"agente":   agent.FullName(),
		"fecha":    day.Format(fields.DateLayout),
		"turnos":   plural,
		"cantidad": strconv.Itoa(len(appts)),
		"agenda":   strings.Join(lines, "\n"),
	}), nil
}

func (s *AgendaSender) done(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sent[key]
	return ok
}

func (s *AgendaSender) mark(key string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string]time.Time)
	}
	s.sent[key] = day
}

// prune forgets days that can no longer be due.
func (s *AgendaSender) prune(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, day := range s.sent {
		if now.Sub(day) > 48*time.Hour {
			delete(s.sent, key)
		}
	}
}
