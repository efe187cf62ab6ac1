// File: database/repository/appointment/indexes.go
package appointmentRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the necessary indexes on the appointments collection.
func (r *mongoAppointmentRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_id_unique"),
		},
		// Only active scheduled-mode appointments carry a slot key.
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "slotKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"slotKey": bson.M{"$type": "string"}}).
				SetName("tenant_slot_unique"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "agentId", Value: 1}, {Key: "start", Value: 1}, {Key: "end", Value: 1}},
			Options: options.Index().SetName("tenant_agent_range_idx"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "clientId", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetName("tenant_client_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "notifications.sent", Value: 1}, {Key: "notifications.scheduledFor", Value: 1}},
			Options: options.Index().SetName("notifications_due_idx"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}
	return nil
}
