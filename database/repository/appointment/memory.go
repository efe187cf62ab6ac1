// File: database/repository/appointment/memory.go
package appointmentRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
)

type memoryAppointmentRepo struct {
	mu    sync.RWMutex
	appts map[string]models.Appointment
	// slots mirrors the unique slotKey index: tenant/slotKey -> appointment id.
	slots map[string]string
}

// NewMemoryAppointmentRepo returns an AppointmentRepository kept in process memory.
func NewMemoryAppointmentRepo() AppointmentRepository {
	return &memoryAppointmentRepo{
		appts: make(map[string]models.Appointment),
		slots: make(map[string]string),
	}
}

func (r *memoryAppointmentRepo) Create(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	key := appt.TenantID + "/" + appt.ID
	if _, ok := r.appts[key]; ok {
		return database.ErrDuplicate
	}
	if appt.SlotKey != "" {
		if _, taken := r.slots[appt.TenantID+"/"+appt.SlotKey]; taken {
			return database.ErrDuplicate
		}
		r.slots[appt.TenantID+"/"+appt.SlotKey] = appt.ID
	}
	r.appts[key] = clone(*appt)
	return nil
}

func (r *memoryAppointmentRepo) GetByID(_ context.Context, tenantID, id string) (*models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appts[tenantID+"/"+id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := clone(a)
	return &out, nil
}

func (r *memoryAppointmentRepo) Update(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := appt.TenantID + "/" + appt.ID
	prev, ok := r.appts[key]
	if !ok {
		return database.ErrNotFound
	}
	if prev.Version != appt.Version {
		return database.ErrConflict
	}
	if appt.SlotKey != "" && appt.SlotKey != prev.SlotKey {
		if owner, taken := r.slots[appt.TenantID+"/"+appt.SlotKey]; taken && owner != appt.ID {
			return database.ErrDuplicate
		}
	}
	if prev.SlotKey != "" {
		delete(r.slots, prev.TenantID+"/"+prev.SlotKey)
	}
	if appt.SlotKey != "" {
		r.slots[appt.TenantID+"/"+appt.SlotKey] = appt.ID
	}
	appt.Version++
	r.appts[key] = clone(*appt)
	return nil
}

func (r *memoryAppointmentRepo) List(_ context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	out := r.filter(func(a models.Appointment) bool {
		if a.TenantID != f.TenantID {
			return false
		}
		if f.AgentID != "" && a.AgentID != f.AgentID {
			return false
		}
		if f.ClientID != "" && a.ClientID != f.ClientID {
			return false
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			return false
		}
		if !f.From.IsZero() && a.Start.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && !a.Start.Before(f.To) {
			return false
		}
		return true
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memoryAppointmentRepo) ListOverlapping(_ context.Context, tenantID, agentID string, from, to time.Time, statuses []models.AppointmentStatus) ([]models.Appointment, error) {
	return r.filter(func(a models.Appointment) bool {
		return a.TenantID == tenantID &&
			a.AgentID == agentID &&
			(len(statuses) == 0 || hasStatus(statuses, a.Status)) &&
			models.Overlaps(a.Start, a.End, from, to)
	}), nil
}

func (r *memoryAppointmentRepo) CountByStatus(_ context.Context, tenantID string, from, to time.Time) (map[models.AppointmentStatus]int, error) {
	counts := make(map[models.AppointmentStatus]int)
	for _, a := range r.filter(func(a models.Appointment) bool {
		return a.TenantID == tenantID &&
			(from.IsZero() || !a.Start.Before(from)) &&
			(to.IsZero() || a.Start.Before(to))
	}) {
		counts[a.Status]++
	}
	return counts, nil
}

func (r *memoryAppointmentRepo) ListDueNotifications(_ context.Context, now time.Time, limit int) ([]models.Appointment, error) {
	out := r.filter(func(a models.Appointment) bool {
		if !a.Status.IsActive() {
			return false
		}
		for _, n := range a.Notifications {
			if !n.Sent && !n.ScheduledFor.After(now) {
				return true
			}
		}
		return false
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryAppointmentRepo) MarkNotificationSent(_ context.Context, tenantID, id string, index int, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tenantID + "/" + id
	a, ok := r.appts[key]
	if !ok || index < 0 || index >= len(a.Notifications) || a.Notifications[index].Sent {
		return database.ErrNotFound
	}
	a = clone(a)
	a.Notifications[index].Sent = true
	a.Notifications[index].SentAt = &sentAt
	a.UpdatedAt = sentAt
	a.Version++
	r.appts[key] = a
	return nil
}

func (r *memoryAppointmentRepo) filter(keep func(models.Appointment) bool) []models.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Appointment
	for _, a := range r.appts {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func hasStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func clone(a models.Appointment) models.Appointment {
	if a.Fields != nil {
		fields := make(map[string]any, len(a.Fields))
		for k, v := range a.Fields {
			fields[k] = v
		}
		a.Fields = fields
	}
	a.Notifications = append([]models.NotificationRecord(nil), a.Notifications...)
	return a
}
