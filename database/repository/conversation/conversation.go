// File: database/repository/conversation/conversation.go
package conversationRepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"turnero/database"
	"turnero/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository archives finished booking dialogues.
type ConversationRepository interface {
	Archive(ctx context.Context, session models.ConversationSession) error
	ListByPhone(ctx context.Context, tenantID, phone string, limit int) ([]models.ConversationSession, error)
}

type mongoConversationRepo struct {
	coll *mongo.Collection
}

// NewMongoConversationRepo constructs a new MongoDB ConversationRepository.
func NewMongoConversationRepo() ConversationRepository {
	return &mongoConversationRepo{coll: database.DB().Collection("conversations")}
}

func (r *mongoConversationRepo) Archive(ctx context.Context, session models.ConversationSession) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, session); err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	return nil
}

func (r *mongoConversationRepo) ListByPhone(ctx context.Context, tenantID, phone string, limit int) ([]models.ConversationSession, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "lastActivity", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.M{"tenantId": tenantID, "phone": phone}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.ConversationSession
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return out, nil
}

// EnsureIndexes creates the necessary indexes on the conversations collection.
func (r *mongoConversationRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "phone", Value: 1}, {Key: "lastActivity", Value: -1}},
		Options: options.Index().SetName("tenant_phone_activity_idx"),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}
	return nil
}

type memoryConversationRepo struct {
	mu       sync.RWMutex
	sessions []models.ConversationSession
}

// NewMemoryConversationRepo returns a ConversationRepository kept in process memory.
func NewMemoryConversationRepo() ConversationRepository {
	return &memoryConversationRepo{}
}

func (r *memoryConversationRepo) Archive(_ context.Context, session models.ConversationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *memoryConversationRepo) ListByPhone(_ context.Context, tenantID, phone string, limit int) ([]models.ConversationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ConversationSession
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.Phone == phone {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
