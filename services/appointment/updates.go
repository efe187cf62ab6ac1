package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnero/database"
	"turnero/models"
	"turnero/services/availability"
	"turnero/services/fields"
	"turnero/services/notification"

	"go.uber.org/zap"
)

// maxUpdateAttempts bounds how often a mutation is re-read and reapplied
// after losing a race with another writer.
const maxUpdateAttempts = 3

// mutate loads an appointment, applies change and stores it, starting over
// when the stored copy moved in between so concurrent writes are not lost.
func (s *Service) mutate(ctx context.Context, tenantID, id string, change func(*models.Appointment) error) (*models.Appointment, error) {
	for attempt := 1; ; attempt++ {
		appt, err := s.Repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if err := change(appt); err != nil {
			return nil, err
		}
		err = s.Repo.Update(ctx, appt)
		if errors.Is(err, database.ErrConflict) && attempt < maxUpdateAttempts {
			s.Logger.Debug("appointment changed concurrently, retrying",
				zap.String("tenant", tenantID),
				zap.String("appointment", id),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		return appt, nil
	}
}

// UpdateStatus applies a status transition, stamping confirmation or
// cancellation data.
func (s *Service) UpdateStatus(ctx context.Context, tenantID, id string, status models.AppointmentStatus, reason string) (*models.Appointment, error) {
	appt, err := s.mutate(ctx, tenantID, id, func(appt *models.Appointment) error {
		return applyStatus(appt, status, reason, s.now())
	})
	if err != nil {
		return nil, wrapUpdate("update appointment status", err)
	}
	s.Logger.Info("appointment status changed",
		zap.String("tenant", tenantID),
		zap.String("appointment", id),
		zap.String("status", string(status)),
	)
	return appt, nil
}

// Cancel cancels an appointment unless it starts inside the tenant's
// cancellation window.
func (s *Service) Cancel(ctx context.Context, tenantID, id, reason string) (*models.Appointment, error) {
	settings, err := s.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	window := time.Duration(settings.Schedule.CancellationWindowHours) * time.Hour
	appt, err := s.mutate(ctx, tenantID, id, func(appt *models.Appointment) error {
		now := s.now()
		if appt.Start.Sub(now) < window {
			return newValidationError(CodeCancelWindow, ReasonTooLate)
		}
		return applyStatus(appt, models.StatusCancelled, reason, now)
	})
	if err != nil {
		return nil, wrapUpdate("cancel appointment", err)
	}
	s.Logger.Info("appointment cancelled",
		zap.String("tenant", tenantID),
		zap.String("appointment", id),
		zap.String("reason", reason),
	)
	return appt, nil
}

// ConfirmWithReply confirms an appointment and records the client's reply as
// a confirmation notification.
func (s *Service) ConfirmWithReply(ctx context.Context, tenantID, id, reply string) (*models.Appointment, error) {
	appt, err := s.mutate(ctx, tenantID, id, func(appt *models.Appointment) error {
		now := s.now()
		if appt.Status != models.StatusConfirmed {
			if err := applyStatus(appt, models.StatusConfirmed, "", now); err != nil {
				return err
			}
		}
		appt.Notifications = append(appt.Notifications, models.NotificationRecord{
			Type:         models.NotificationConfirmation,
			ScheduledFor: now,
			Sent:         true,
			SentAt:       &now,
			Template:     "confirmacion",
			Reply:        reply,
			RepliedAt:    &now,
		})
		appt.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, wrapUpdate("confirm appointment", err)
	}
	return appt, nil
}

// UpdateFields validates and merges values into the field bag.
func (s *Service) UpdateFields(ctx context.Context, tenantID, id string, values map[string]any) (*models.Appointment, error) {
	settings, err := s.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	parsed := make(map[string]any, len(values))
	for key, raw := range values {
		spec, ok := settings.Schedule.FieldSpec(key)
		if !ok {
			return nil, newValidationError(CodeInvalidField, fmt.Sprintf("unknown field %q", key))
		}
		v, err := fields.Parse(spec, fmt.Sprint(raw))
		if err != nil {
			return nil, fieldError(err)
		}
		parsed[key] = v
	}

	appt, err := s.mutate(ctx, tenantID, id, func(appt *models.Appointment) error {
		if !appt.Status.IsActive() {
			return newValidationError(CodeInvalidInput, ReasonNotActive)
		}
		if appt.Fields == nil {
			appt.Fields = make(map[string]any, len(parsed))
		}
		for key, v := range parsed {
			appt.Fields[key] = v
		}
		appt.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, wrapUpdate("update appointment fields", err)
	}
	return appt, nil
}

// Reschedule moves an active appointment, re-running the agent's admission
// rules with the appointment itself excluded.
func (s *Service) Reschedule(ctx context.Context, tenantID, id string, start time.Time) (*models.Appointment, error) {
	settings, err := s.Settings.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sched := settings.Schedule
	now := s.now()
	if err := checkLeadTime(sched, start, now); err != nil {
		return nil, err
	}

	current, err := s.Repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	var agent *models.Agent
	if current.AgentID != "" {
		unlock := s.locks.lock(tenantID + "/" + current.AgentID)
		defer unlock()

		agent, err = s.Availability.ActiveAgent(ctx, tenantID, current.AgentID)
		if errors.Is(err, availability.ErrAgentUnavailable) {
			return nil, newValidationError(CodeAgentUnavailable, availability.ReasonAgentUnavailable)
		}
		if err != nil {
			return nil, err
		}
	}

	appt, err := s.mutate(ctx, tenantID, id, func(appt *models.Appointment) error {
		if !appt.Status.IsActive() {
			return newValidationError(CodeInvalidInput, ReasonNotActive)
		}
		if agent != nil {
			slotKey, err := s.admit(ctx, agent, start, appt.Duration, sched.Location(), appt.ID)
			if err != nil {
				return err
			}
			appt.SlotKey = slotKey
		}
		appt.Start = start
		appt.End = start.Add(time.Duration(appt.Duration) * time.Minute)
		appt.Notifications = reschedule(appt.Notifications, notification.Schedule(sched.NotificationRules, start, now, sched.Location()))
		appt.UpdatedAt = now
		return nil
	})
	if errors.Is(err, database.ErrDuplicate) {
		return nil, newValidationError(CodeSlotUnavailable, availability.ReasonSlotTaken)
	}
	if err != nil {
		return nil, wrapUpdate("reschedule appointment", err)
	}
	s.Logger.Info("appointment rescheduled",
		zap.String("tenant", tenantID),
		zap.String("appointment", id),
		zap.Time("start", start),
	)
	return appt, nil
}

// wrapUpdate adds context to storage failures and passes domain errors
// through untouched.
func wrapUpdate(op string, err error) error {
	if _, ok := AsValidation(err); ok {
		return err
	}
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, database.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Stats counts appointments per status and derives the attendance and
// cancellation rates.
func (s *Service) Stats(ctx context.Context, tenantID string, from, to time.Time) (*models.AppointmentStats, error) {
	counts, err := s.Repo.CountByStatus(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	stats := &models.AppointmentStats{ByStatus: counts}
	for _, n := range counts {
		stats.Total += n
	}
	completed := counts[models.StatusCompleted]
	noShow := counts[models.StatusNoShow]
	stats.AttendanceRate = ratio(completed, completed+noShow)
	stats.CancellationRate = ratio(counts[models.StatusCancelled], stats.Total)
	return stats, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func applyStatus(appt *models.Appointment, to models.AppointmentStatus, reason string, now time.Time) error {
	if !CanTransition(appt.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}
	appt.Status = to
	switch to {
	case models.StatusConfirmed:
		appt.Confirmed = true
		appt.ConfirmedAt = &now
	case models.StatusCancelled:
		appt.CancellationReason = reason
		appt.CancelledAt = &now
	}
	if !to.IsActive() {
		appt.SlotKey = ""
	}
	appt.UpdatedAt = now
	return nil
}

// reschedule keeps delivered notifications and replaces pending ones.
func reschedule(current, fresh []models.NotificationRecord) []models.NotificationRecord {
	out := make([]models.NotificationRecord, 0, len(current)+len(fresh))
	for _, n := range current {
		if n.Sent {
			out = append(out, n)
		}
	}
	return append(out, fresh...)
}
