// File: database/repository/client/client.go
package clientRepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Client, error)
	// FindByPhone looks a client up by normalized phone digits.
	FindByPhone(ctx context.Context, tenantID, phone string) (*models.Client, error)
}

type mongoClientRepo struct {
	coll *mongo.Collection
}

// NewMongoClientRepo constructs a new MongoDB ClientRepository.
func NewMongoClientRepo() ClientRepository {
	return &mongoClientRepo{coll: database.DB().Collection("clients")}
}

func (r *mongoClientRepo) Create(ctx context.Context, client *models.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, client); err != nil {
		if err = database.Translate(err); err == database.ErrDuplicate {
			return err
		}
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

func (r *mongoClientRepo) GetByID(ctx context.Context, tenantID, id string) (*models.Client, error) {
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "id": id})
}

func (r *mongoClientRepo) FindByPhone(ctx context.Context, tenantID, phone string) (*models.Client, error) {
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "phone": phone})
}

func (r *mongoClientRepo) findOne(ctx context.Context, filter bson.M) (*models.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Client
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, database.Translate(err)
	}
	return &c, nil
}

// EnsureIndexes creates the necessary indexes on the clients collection.
func (r *mongoClientRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_phone_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create client indexes: %w", err)
	}
	return nil
}

type memoryClientRepo struct {
	mu      sync.RWMutex
	clients map[string]models.Client
}

// NewMemoryClientRepo returns a ClientRepository kept in process memory.
func NewMemoryClientRepo() ClientRepository {
	return &memoryClientRepo{clients: make(map[string]models.Client)}
}

func (r *memoryClientRepo) Create(_ context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		if c.TenantID == client.TenantID && c.Phone == client.Phone {
			return database.ErrDuplicate
		}
	}
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	r.clients[client.TenantID+"/"+client.ID] = *client
	return nil
}

func (r *memoryClientRepo) GetByID(_ context.Context, tenantID, id string) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[tenantID+"/"+id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (r *memoryClientRepo) FindByPhone(_ context.Context, tenantID, phone string) (*models.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.clients {
		if c.TenantID == tenantID && c.Phone == phone {
			c := c
			return &c, nil
		}
	}
	return nil, database.ErrNotFound
}
