// File: database/repository/appointment/aggregates.go
package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"turnero/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoAppointmentRepo) CountByStatus(ctx context.Context, tenantID string, from, to time.Time) (map[models.AppointmentStatus]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	match := bson.M{"tenantId": tenantID}
	start := bson.M{}
	if !from.IsZero() {
		start["$gte"] = from
	}
	if !to.IsZero() {
		start["$lt"] = to
	}
	if len(start) > 0 {
		match["start"] = start
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate appointment stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.AppointmentStatus `bson:"_id"`
		Count  int                      `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode appointment stats: %w", err)
	}

	counts := make(map[models.AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
