package cron

import (
	"context"
	"time"

	"turnero/config"
	"turnero/models"
	"turnero/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Deliverer sends one notification record.
type Deliverer interface {
	Deliver(ctx context.Context, p models.NotificationPayload) error
}

// QueueRedisOpt is the asynq connection shared by the worker and the client.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// NewNotificationMux routes notification tasks to d.
func NewNotificationMux(d Deliverer, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendNotification, handleNotificationTask(d, logger))
	return mux
}

// StartNotificationWorker runs the asynq worker in background. The returned
// server must be shut down on exit.
func StartNotificationWorker(d Deliverer, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := NewNotificationMux(d, logger)

	go func() {
		logger.Info("starting notification worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("notification worker failed to start",
				zap.Int("attempt", attempts),
				zap.Int("maxAttempts", maxAttempts),
				zap.Error(err),
			)
			if attempts == maxAttempts {
				logger.Error("notification worker gave up; notifications will not be delivered")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
	return srv
}

func handleNotificationTask(d Deliverer, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseNotificationTask(task)
		if err != nil {
			logger.Error("dropping notification task", zap.Error(err))
			return asynq.SkipRetry
		}
		if err := d.Deliver(ctx, p); err != nil {
			logger.Warn("notification delivery failed",
				zap.String("task", tasks.NotificationTaskID(p)),
				zap.Error(err),
			)
			return err
		}
		return nil
	}
}
