// Package appointment owns the appointment lifecycle.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnero/database"
	"turnero/database/repository"
	"turnero/models"
	"turnero/services/availability"
	"turnero/services/fields"
	"turnero/services/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmationReply is recorded when a client confirms through a quick reply.
const ConfirmationReply = "CONFIRMADO"

// AvailabilityChecker is the part of the availability engine the lifecycle needs.
type AvailabilityChecker interface {
	ActiveAgent(ctx context.Context, tenantID, agentID string) (*models.Agent, error)
	CheckSlot(ctx context.Context, agent *models.Agent, start time.Time, duration int, excludeID string) (models.AvailabilityResult, error)
	CheckCapacity(ctx context.Context, agent *models.Agent, start time.Time, loc *time.Location, excludeID string) (models.AvailabilityResult, error)
}

// CreateInput carries a new appointment request.
type CreateInput struct {
	TenantID  string           `json:"-"`
	AgentID   string           `json:"agentId"`
	ClientID  string           `json:"clientId"`
	Start     time.Time        `json:"start"`
	Duration  int              `json:"duration"`
	Fields    map[string]any   `json:"fields"`
	Notes     string           `json:"notes"`
	CreatedBy models.CreatedBy `json:"createdBy"`
}

// Service implements the appointment state machine.
type Service struct {
	Repo         repository.AppointmentRepository
	Settings     repository.SettingsRepository
	Availability AvailabilityChecker
	Logger       *zap.Logger
	Now          func() time.Time

	locks keyedMutex
}

// NewService wires a Service on a repository set.
func NewService(repos *repository.Set, checker AvailabilityChecker, logger *zap.Logger) *Service {
	return &Service{
		Repo:         repos.Appointments,
		Settings:     repos.Settings,
		Availability: checker,
		Logger:       logger,
		Now:          time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create validates and books a new appointment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Appointment, error) {
	if in.ClientID == "" {
		return nil, newValidationError(CodeInvalidInput, ReasonClientEmpty)
	}
	if in.Start.IsZero() {
		return nil, newValidationError(CodeInvalidInput, "start is required")
	}
	settings, err := s.Settings.Get(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	sched := settings.Schedule
	loc := sched.Location()
	now := s.now()

	if err := checkLeadTime(sched, in.Start, now); err != nil {
		return nil, err
	}

	var agent *models.Agent
	if in.AgentID != "" {
		agent, err = s.Availability.ActiveAgent(ctx, in.TenantID, in.AgentID)
		if errors.Is(err, availability.ErrAgentUnavailable) {
			return nil, newValidationError(CodeAgentUnavailable, availability.ReasonAgentUnavailable)
		}
		if err != nil {
			return nil, err
		}
	}

	bag, err := fields.ValidateBag(sched.Fields, in.Fields)
	if err != nil {
		return nil, fieldError(err)
	}

	duration := availability.ResolveDuration(in.Duration, agent, sched)
	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = models.CreatedByAdmin
	}
	appt := &models.Appointment{
		ID:            uuid.New().String(),
		TenantID:      in.TenantID,
		AgentID:       in.AgentID,
		ClientID:      in.ClientID,
		Start:         in.Start,
		End:           in.Start.Add(time.Duration(duration) * time.Minute),
		Duration:      duration,
		Status:        models.StatusPending,
		Fields:        bag,
		Notes:         in.Notes,
		CreatedBy:     createdBy,
		Notifications: notification.Schedule(sched.NotificationRules, in.Start, now, loc),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !sched.RequiresConfirmation {
		appt.Status = models.StatusConfirmed
		appt.Confirmed = true
		appt.ConfirmedAt = &now
	}

	if agent != nil {
		unlock := s.locks.lock(agent.TenantID + "/" + agent.ID)
		defer unlock()

		slotKey, err := s.admit(ctx, agent, appt.Start, duration, loc, "")
		if err != nil {
			return nil, err
		}
		appt.SlotKey = slotKey
	}

	if err := s.Repo.Create(ctx, appt); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, newValidationError(CodeSlotUnavailable, availability.ReasonSlotTaken)
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.Logger.Info("appointment created",
		zap.String("tenant", appt.TenantID),
		zap.String("appointment", appt.ID),
		zap.String("agent", appt.AgentID),
		zap.Time("start", appt.Start),
		zap.String("status", string(appt.Status)),
		zap.String("createdBy", string(appt.CreatedBy)),
	)
	return appt, nil
}

// admit applies the agent's attendance mode and returns the slot key to store.
func (s *Service) admit(ctx context.Context, agent *models.Agent, start time.Time, duration int, loc *time.Location, excludeID string) (string, error) {
	switch agent.Mode {
	case models.ModeFreeForm:
		res, err := s.Availability.CheckCapacity(ctx, agent, start, loc, excludeID)
		if err != nil {
			return "", err
		}
		if !res.Available {
			code := CodeNoCapacity
			if res.Reason == availability.ReasonDailyLimit {
				code = CodeDailyLimit
			}
			return "", newValidationError(code, res.Reason)
		}
		return "", nil

	case models.ModeMixed:
		res, err := s.Availability.CheckSlot(ctx, agent, start, duration, excludeID)
		if err != nil {
			return "", err
		}
		if !res.Available {
			s.Logger.Warn("mixed-mode agent booked over an availability conflict",
				zap.String("tenant", agent.TenantID),
				zap.String("agent", agent.ID),
				zap.Time("start", start),
				zap.String("reason", res.Reason),
			)
		}
		return "", nil

	default:
		res, err := s.Availability.CheckSlot(ctx, agent, start, duration, excludeID)
		if err != nil {
			return "", err
		}
		if !res.Available {
			return "", newValidationError(CodeSlotUnavailable, res.Reason)
		}
		return models.SlotKeyFor(agent.ID, start), nil
	}
}

func checkLeadTime(sched models.ScheduleConfiguration, start, now time.Time) error {
	lead := start.Sub(now)
	if lead < time.Duration(sched.MinLeadHours)*time.Hour {
		return newValidationError(CodeLeadTime, ReasonLeadTime)
	}
	if sched.MaxLeadDays > 0 && lead > time.Duration(sched.MaxLeadDays)*24*time.Hour {
		return newValidationError(CodeLeadTime, ReasonLeadTime)
	}
	return nil
}

func fieldError(err error) error {
	var fe *fields.Error
	if errors.As(err, &fe) {
		return newValidationError(CodeInvalidField, fe.Message)
	}
	return err
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Appointment, error) {
	return s.Repo.GetByID(ctx, tenantID, id)
}

// List returns appointments matching filter, ordered by start.
func (s *Service) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	return s.Repo.List(ctx, filter)
}

// ListForDay lists the tenant's appointments on day (today when zero), optionally for one agent.
func (s *Service) ListForDay(ctx context.Context, tenantID, agentID string, day time.Time) ([]models.Appointment, error) {
	settings, err := s.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if day.IsZero() {
		day = s.now()
	}
	start := models.StartOfDay(day, settings.Schedule.Location())
	return s.Repo.List(ctx, models.AppointmentFilter{
		TenantID: tenantID,
		AgentID:  agentID,
		From:     start,
		To:       start.AddDate(0, 0, 1),
	})
}

// UpcomingForClient lists a client's active appointments from now on.
func (s *Service) UpcomingForClient(ctx context.Context, tenantID, clientID string, limit int) ([]models.Appointment, error) {
	return s.Repo.List(ctx, models.AppointmentFilter{
		TenantID: tenantID,
		ClientID: clientID,
		Statuses: models.ActiveStatuses,
		From:     s.now(),
		Limit:    limit,
	})
}

// AwaitingConfirmation lists a client's notified pending appointments within
// the tenant's confirmation horizon.
func (s *Service) AwaitingConfirmation(ctx context.Context, tenantID, clientID string) ([]models.Appointment, error) {
	settings, err := s.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	horizon := settings.Schedule.ConfirmationHorizonHours
	if horizon <= 0 {
		horizon = 48
	}
	now := s.now()
	appts, err := s.Repo.List(ctx, models.AppointmentFilter{
		TenantID: tenantID,
		ClientID: clientID,
		Statuses: []models.AppointmentStatus{models.StatusPending},
		From:     now,
		To:       now.Add(time.Duration(horizon) * time.Hour),
	})
	if err != nil {
		return nil, err
	}
	out := appts[:0]
	for _, a := range appts {
		if !a.Confirmed && a.HasSentNotification() {
			out = append(out, a)
		}
	}
	return out, nil
}
