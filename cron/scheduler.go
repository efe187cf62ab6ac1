// Package cron runs the periodic jobs and the notification worker.
package cron

import (
	"context"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

// Job is one periodic unit of work returning how many items it touched.
type Job func(ctx context.Context) (int, error)

// Entry binds a Job to a robfig/cron spec such as "@every 1m".
type Entry struct {
	Name string
	Spec string
	Run  Job
}

// NewScheduler registers entries on a cron runner. Call Start and Stop on the
// result.
func NewScheduler(logger *zap.Logger, entries ...Entry) (*robfig.Cron, error) {
	c := robfig.New()
	for _, e := range entries {
		if _, err := c.AddFunc(e.Spec, wrap(e, logger)); err != nil {
			return nil, err
		}
		logger.Info("scheduled job", zap.String("job", e.Name), zap.String("spec", e.Spec))
	}
	return c, nil
}

func wrap(e Entry, logger *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := e.Run(ctx)
		if err != nil {
			logger.Error("job failed", zap.String("job", e.Name), zap.Error(err))
			return
		}
		if n > 0 {
			logger.Debug("job done", zap.String("job", e.Name), zap.Int("count", n))
		}
	}
}
