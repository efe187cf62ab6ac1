// File: database/repository/agent/crud.go
package agentRepo

import (
	"context"
	"fmt"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoAgentRepo) Create(ctx context.Context, agent *models.Agent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, agent); err != nil {
		return fmt.Errorf("failed to insert agent: %w", database.Translate(err))
	}
	return nil
}

func (r *mongoAgentRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var agent models.Agent
	err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID, "id": id}).Decode(&agent)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &agent, nil
}

func (r *mongoAgentRepo) List(ctx context.Context, tenantID string, activeOnly bool) ([]models.Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"tenantId": tenantID}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer cursor.Close(ctx)

	var agents []models.Agent
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

func (r *mongoAgentRepo) Update(ctx context.Context, agent *models.Agent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"tenantId": agent.TenantID, "id": agent.ID}, agent)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}

func (r *mongoAgentRepo) SetAvailability(ctx context.Context, tenantID, id string, windows []models.AvailabilityWindow) error {
	return r.set(ctx, tenantID, id, bson.M{"availability": windows})
}

func (r *mongoAgentRepo) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	return r.set(ctx, tenantID, id, bson.M{"active": active})
}

func (r *mongoAgentRepo) set(ctx context.Context, tenantID, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["updatedAt"] = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"tenantId": tenantID, "id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update agent %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return database.ErrNotFound
	}
	return nil
}
