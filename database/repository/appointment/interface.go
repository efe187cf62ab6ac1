// File: database/repository/appointment/interface.go
package appointmentRepo

import (
	"context"
	"time"

	"turnero/database"
	"turnero/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type AppointmentRepository interface {
	// Create inserts an appointment; database.ErrDuplicate means its slot key is taken.
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Appointment, error)
	// Update replaces appt if its Version is still the stored one and bumps
	// Version; otherwise it returns database.ErrConflict.
	Update(ctx context.Context, appt *models.Appointment) error
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	// ListOverlapping returns the agent's appointments in the given statuses
	// whose [start, end) intersects [from, to).
	ListOverlapping(ctx context.Context, tenantID, agentID string, from, to time.Time, statuses []models.AppointmentStatus) ([]models.Appointment, error)
	CountByStatus(ctx context.Context, tenantID string, from, to time.Time) (map[models.AppointmentStatus]int, error)
	// ListDueNotifications returns active appointments, across tenants, holding
	// an unsent notification scheduled at or before now.
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]models.Appointment, error)
	MarkNotificationSent(ctx context.Context, tenantID, id string, index int, sentAt time.Time) error
}

type mongoAppointmentRepo struct {
	coll *mongo.Collection
}

// NewMongoAppointmentRepo constructs a new MongoDB AppointmentRepository.
func NewMongoAppointmentRepo() AppointmentRepository {
	return &mongoAppointmentRepo{
		coll: database.DB().Collection("appointments"),
	}
}
