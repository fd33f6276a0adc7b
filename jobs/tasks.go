// Package jobs defines background tasks and the asynq worker that runs them.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/agentacademy/academy/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueNewsletter isolates bulk email so it cannot starve other jobs.
	QueueNewsletter = "newsletter"

	// TaskNewsletterSend emails a published item to eligible members.
	TaskNewsletterSend = "newsletter:send"
	// TaskPublishScheduled publishes scheduled items whose time has come.
	TaskPublishScheduled = "content:publish-scheduled"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NewsletterSendPayload identifies the item to send.
type NewsletterSendPayload struct {
	ItemID uuid.UUID `json:"item_id"`
}

// NewNewsletterSendTask constructs a send task. The task ID is derived from
// the item so a second enqueue of the same item is rejected by the queue.
func NewNewsletterSendTask(itemID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(NewsletterSendPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNewsletterSend, data,
		asynq.Queue(QueueNewsletter),
		asynq.TaskID(TaskNewsletterSend+":"+itemID.String()),
		asynq.MaxRetry(0),
	), nil
}

// NewPublishScheduledTask constructs the periodic publish task.
func NewPublishScheduledTask() *asynq.Task {
	return asynq.NewTask(TaskPublishScheduled, nil, asynq.Queue(QueueDefault))
}
