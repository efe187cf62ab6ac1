// File: database/repository/appointment/crud.go
package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

func (r *mongoAppointmentRepo) Create(ctx context.Context, appt *models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, appt); err != nil {
		if err = database.Translate(err); err == database.ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}
	return nil
}

func (r *mongoAppointmentRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var appt models.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID, "id": id}).Decode(&appt); err != nil {
		return nil, database.Translate(err)
	}
	return &appt, nil
}

func (r *mongoAppointmentRepo) Update(ctx context.Context, appt *models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := bson.M{"tenantId": appt.TenantID, "id": appt.ID}
	filter := bson.M{"tenantId": appt.TenantID, "id": appt.ID, "version": appt.Version}
	if appt.Version == 0 {
		// Documents written before versioning carry no field.
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}

	appt.Version++
	res, err := r.coll.ReplaceOne(ctx, filter, appt)
	if err != nil {
		appt.Version--
		if err = database.Translate(err); err == database.ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if res.MatchedCount == 0 {
		appt.Version--
		n, err := r.coll.CountDocuments(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		if n == 0 {
			return database.ErrNotFound
		}
		return database.ErrConflict
	}
	return nil
}

func (r *mongoAppointmentRepo) MarkNotificationSent(ctx context.Context, tenantID, id string, index int, sentAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	prefix := fmt.Sprintf("notifications.%d.", index)
	filter := bson.M{"tenantId": tenantID, "id": id, prefix + "sent": false}
	update := bson.M{
		"$set": bson.M{
			prefix + "sent":   true,
			prefix + "sentAt": sentAt,
			"updatedAt":       sentAt,
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
