// File: database/repository/block/interface.go
package blockRepo

import (
	"context"
	"time"

	"turnero/database"
	"turnero/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type BlockRepository interface {
	Create(ctx context.Context, block *models.ScheduleBlock) error
	// ListInRange returns the agent's blocks intersecting [from, to).
	ListInRange(ctx context.Context, tenantID, agentID string, from, to time.Time) ([]models.ScheduleBlock, error)
	ListByAgent(ctx context.Context, tenantID, agentID string) ([]models.ScheduleBlock, error)
	Delete(ctx context.Context, tenantID, agentID, id string) error
}

type mongoBlockRepo struct {
	coll *mongo.Collection
}

// NewMongoBlockRepo constructs a new MongoDB BlockRepository.
func NewMongoBlockRepo() BlockRepository {
	return &mongoBlockRepo{
		coll: database.DB().Collection("schedule_blocks"),
	}
}
