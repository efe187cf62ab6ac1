// File: database/repository/settings/settings.go
package settingsRepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsRepository stores per-tenant schedule and bot configuration.
// Get never returns database.ErrNotFound: unknown tenants get the defaults.
type SettingsRepository interface {
	Get(ctx context.Context, tenantID string) (*models.TenantSettings, error)
	Put(ctx context.Context, settings *models.TenantSettings) error
	// ListWithAgenda returns the stored settings whose agent agenda is on.
	ListWithAgenda(ctx context.Context) ([]models.TenantSettings, error)
}

type mongoSettingsRepo struct {
	coll *mongo.Collection
}

// NewMongoSettingsRepo constructs a new MongoDB SettingsRepository.
func NewMongoSettingsRepo() SettingsRepository {
	return &mongoSettingsRepo{coll: database.DB().Collection("tenant_settings")}
}

func (r *mongoSettingsRepo) Get(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s models.TenantSettings
	err := r.coll.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		def := models.DefaultTenantSettings(tenantID)
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for tenant %s: %w", tenantID, err)
	}
	return &s, nil
}

func (r *mongoSettingsRepo) Put(ctx context.Context, settings *models.TenantSettings) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	settings.UpdatedAt = time.Now()
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"tenantId": settings.TenantID},
		settings,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save settings for tenant %s: %w", settings.TenantID, err)
	}
	return nil
}

func (r *mongoSettingsRepo) ListWithAgenda(ctx context.Context) ([]models.TenantSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"schedule.agentAgenda.active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list agenda tenants: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.TenantSettings
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode agenda tenants: %w", err)
	}
	return out, nil
}

// EnsureIndexes creates the necessary indexes on the tenant_settings collection.
func (r *mongoSettingsRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenantId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("tenant_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create settings indexes: %w", err)
	}
	return nil
}

type memorySettingsRepo struct {
	mu       sync.RWMutex
	settings map[string]models.TenantSettings
}

// NewMemorySettingsRepo returns a SettingsRepository kept in process memory.
func NewMemorySettingsRepo() SettingsRepository {
	return &memorySettingsRepo{settings: make(map[string]models.TenantSettings)}
}

func (r *memorySettingsRepo) Get(_ context.Context, tenantID string) (*models.TenantSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[tenantID]
	if !ok {
		s = models.DefaultTenantSettings(tenantID)
	}
	return &s, nil
}

func (r *memorySettingsRepo) Put(_ context.Context, settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings.UpdatedAt = time.Now()
	r.settings[settings.TenantID] = *settings
	return nil
}

func (r *memorySettingsRepo) ListWithAgenda(_ context.Context) ([]models.TenantSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.TenantSettings
	for _, s := range r.settings {
		if s.Schedule.AgentAgenda.Active {
			out = append(out, s)
		}
	}
	return out, nil
}
