// File: database/repository/block/memory.go
package blockRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
)

type memoryBlockRepo struct {
	mu     sync.RWMutex
	blocks map[string]models.ScheduleBlock
}

// NewMemoryBlockRepo returns a BlockRepository kept in process memory.
func NewMemoryBlockRepo() BlockRepository {
	return &memoryBlockRepo{blocks: make(map[string]models.ScheduleBlock)}
}

func (r *memoryBlockRepo) Create(_ context.Context, block *models.ScheduleBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	r.blocks[block.ID] = *block
	return nil
}

func (r *memoryBlockRepo) ListInRange(_ context.Context, tenantID, agentID string, from, to time.Time) ([]models.ScheduleBlock, error) {
	return r.filter(func(b models.ScheduleBlock) bool {
		return b.TenantID == tenantID && b.AgentID == agentID && b.Overlaps(from, to)
	}), nil
}

func (r *memoryBlockRepo) ListByAgent(_ context.Context, tenantID, agentID string) ([]models.ScheduleBlock, error) {
	return r.filter(func(b models.ScheduleBlock) bool {
		return b.TenantID == tenantID && b.AgentID == agentID
	}), nil
}

func (r *memoryBlockRepo) Delete(_ context.Context, tenantID, agentID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok || b.TenantID != tenantID || b.AgentID != agentID {
		return database.ErrNotFound
	}
	delete(r.blocks, id)
	return nil
}

func (r *memoryBlockRepo) filter(keep func(models.ScheduleBlock) bool) []models.ScheduleBlock {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ScheduleBlock
	for _, b := range r.blocks {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
