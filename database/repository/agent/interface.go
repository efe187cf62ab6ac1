// File: database/repository/agent/interface.go
package agentRepo

import (
	"context"

	"turnero/database"
	"turnero/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Agent, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	SetAvailability(ctx context.Context, tenantID, id string, windows []models.AvailabilityWindow) error
	SetActive(ctx context.Context, tenantID, id string, active bool) error
}

type mongoAgentRepo struct {
	coll *mongo.Collection
}

// NewMongoAgentRepo constructs a new MongoDB AgentRepository.
func NewMongoAgentRepo() AgentRepository {
	return &mongoAgentRepo{
		coll: database.DB().Collection("agents"),
	}
}
