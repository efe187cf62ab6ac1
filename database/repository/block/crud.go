// File: database/repository/block/crud.go
package blockRepo

import (
	"context"
	"fmt"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoBlockRepo) Create(ctx context.Context, block *models.ScheduleBlock) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, block); err != nil {
		return fmt.Errorf("failed to insert schedule block: %w", database.Translate(err))
	}
	return nil
}

func (r *mongoBlockRepo) ListInRange(ctx context.Context, tenantID, agentID string, from, to time.Time) ([]models.ScheduleBlock, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"agentId":  agentID,
		"start":    bson.M{"$lt": to},
		"end":      bson.M{"$gt": from},
	}
	return r.find(ctx, filter)
}

func (r *mongoBlockRepo) ListByAgent(ctx context.Context, tenantID, agentID string) ([]models.ScheduleBlock, error) {
	return r.find(ctx, bson.M{"tenantId": tenantID, "agentId": agentID})
}

func (r *mongoBlockRepo) find(ctx context.Context, filter bson.M) ([]models.ScheduleBlock, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule blocks: %w", err)
	}
	defer cursor.Close(ctx)

	var blocks []models.ScheduleBlock
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode schedule blocks: %w", err)
	}
	return blocks, nil
}

func (r *mongoBlockRepo) Delete(ctx context.Context, tenantID, agentID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"tenantId": tenantID, "agentId": agentID, "id": id})
	if err != nil {
		return fmt.Errorf("failed to delete schedule block: %w", err)
	}
	if res.DeletedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the necessary indexes on the schedule_blocks collection.
func (r *mongoBlockRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "agentId", Value: 1}, {Key: "start", Value: 1}, {Key: "end", Value: 1}},
			Options: options.Index().SetName("tenant_agent_range_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule block indexes: %w", err)
	}
	return nil
}
