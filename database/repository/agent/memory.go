// File: database/repository/agent/memory.go
package agentRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
)

type memoryAgentRepo struct {
	mu     sync.RWMutex
	agents map[string]models.Agent
}

// NewMemoryAgentRepo returns an AgentRepository kept in process memory.
func NewMemoryAgentRepo() AgentRepository {
	return &memoryAgentRepo{agents: make(map[string]models.Agent)}
}

func (r *memoryAgentRepo) Create(_ context.Context, agent *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}
	key := agent.TenantID + "/" + agent.ID
	if _, ok := r.agents[key]; ok {
		return database.ErrDuplicate
	}
	r.agents[key] = cloneAgent(*agent)
	return nil
}

func (r *memoryAgentRepo) GetByID(_ context.Context, tenantID, id string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[tenantID+"/"+id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := cloneAgent(a)
	return &out, nil
}

func (r *memoryAgentRepo) List(_ context.Context, tenantID string, activeOnly bool) ([]models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Agent
	for _, a := range r.agents {
		if a.TenantID != tenantID || (activeOnly && !a.Active) {
			continue
		}
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryAgentRepo) Update(_ context.Context, agent *models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := agent.TenantID + "/" + agent.ID
	if _, ok := r.agents[key]; !ok {
		return database.ErrNotFound
	}
	r.agents[key] = cloneAgent(*agent)
	return nil
}

func (r *memoryAgentRepo) SetAvailability(_ context.Context, tenantID, id string, windows []models.AvailabilityWindow) error {
	return r.mutate(tenantID, id, func(a *models.Agent) {
		a.Availability = append([]models.AvailabilityWindow(nil), windows...)
	})
}

func (r *memoryAgentRepo) SetActive(_ context.Context, tenantID, id string, active bool) error {
	return r.mutate(tenantID, id, func(a *models.Agent) { a.Active = active })
}

func (r *memoryAgentRepo) mutate(tenantID, id string, fn func(*models.Agent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tenantID + "/" + id
	a, ok := r.agents[key]
	if !ok {
		return database.ErrNotFound
	}
	fn(&a)
	a.UpdatedAt = time.Now()
	r.agents[key] = a
	return nil
}

func cloneAgent(a models.Agent) models.Agent {
	a.Availability = append([]models.AvailabilityWindow(nil), a.Availability...)
	return a
}
