package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"turnero/models"

	"github.com/hibiken/asynq"
)

const TypeSendNotification = "notification:send"

const (
	maxRetry  = 5
	retention = 24 * time.Hour
)

// NotificationTaskID names the task of one notification record. Enqueueing
// the same record twice yields asynq.ErrTaskIDConflict.
func NotificationTaskID(p models.NotificationPayload) string {
	return fmt.Sprintf("%s:%d", p.AppointmentID, p.Index)
}

func NewNotificationTask(payload models.NotificationPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendNotification, b)
	opts := []asynq.Option{
		asynq.TaskID(NotificationTaskID(payload)),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(retention),
	}
	return task, opts, nil
}

// ParseNotificationTask decodes a task built by NewNotificationTask.
func ParseNotificationTask(task *asynq.Task) (models.NotificationPayload, error) {
	var p models.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid notification payload: %w", err)
	}
	return p, nil
}
