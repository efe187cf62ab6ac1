// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"turnero/config"

	"github.com/go-redis/redis/v8"
)

var (
	// SessionClient backs the durable conversation session store.
	SessionClient *redis.Client
	// QueueClient points at the asynq database; only used for health pings.
	QueueClient *redis.Client
)

func connect(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// InitSessionCache connects the session Redis client.
func InitSessionCache() {
	SessionClient = connect(config.AppConfig.RedisSessionDB, "Sessions")
}

// GetSessionClient returns the session Redis client.
func GetSessionClient() *redis.Client {
	if SessionClient == nil {
		InitSessionCache()
	}
	return SessionClient
}

// InitQueueCache connects the queue Redis client.
func InitQueueCache() {
	QueueClient = connect(config.AppConfig.RedisQueueDB, "Queue")
}

// GetQueueClient returns the queue Redis client.
func GetQueueClient() *redis.Client {
	if QueueClient == nil {
		InitQueueCache()
	}
	return QueueClient
}
