// File: database/repository/appointment/queries.go
package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"turnero/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoAppointmentRepo) List(ctx context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	filter := bson.M{"tenantId": f.TenantID}
	if f.AgentID != "" {
		filter["agentId"] = f.AgentID
	}
	if f.ClientID != "" {
		filter["clientId"] = f.ClientID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	start := bson.M{}
	if !f.From.IsZero() {
		start["$gte"] = f.From
	}
	if !f.To.IsZero() {
		start["$lt"] = f.To
	}
	if len(start) > 0 {
		filter["start"] = start
	}

	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *mongoAppointmentRepo) ListOverlapping(ctx context.Context, tenantID, agentID string, from, to time.Time, statuses []models.AppointmentStatus) ([]models.Appointment, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"agentId":  agentID,
		"start":    bson.M{"$lt": to},
		"end":      bson.M{"$gt": from},
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
}

func (r *mongoAppointmentRepo) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]models.Appointment, error) {
	filter := bson.M{
		"status": bson.M{"$in": models.ActiveStatuses},
		"notifications": bson.M{"$elemMatch": bson.M{
			"sent":         false,
			"scheduledFor": bson.M{"$lte": now},
		}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *mongoAppointmentRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}
