package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/agentacademy/academy/internal/content"
	jobmetrics "github.com/agentacademy/academy/internal/jobs"
	"github.com/agentacademy/academy/internal/newsletter"
)

// NewsletterSender sends one item.
type NewsletterSender interface {
	SendItem(ctx context.Context, itemID uuid.UUID) (newsletter.SendLog, error)
}

// NewsletterSendJob runs TaskNewsletterSend.
type NewsletterSendJob struct {
	Service NewsletterSender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNewsletterSendJob initialises the send handler.
func NewNewsletterSendJob(service NewsletterSender, logger *slog.Logger, metrics *jobmetrics.Metrics) *NewsletterSendJob {
	return &NewsletterSendJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes one newsletter send. Conditions that a retry cannot fix
// are reported with asynq.SkipRetry.
func (j *NewsletterSendJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("newsletter send: handler not configured")
	}
	var payload NewsletterSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ItemID == uuid.Nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskNewsletterSend)
	logger := j.logger().With(slog.String("item_id", payload.ItemID.String()))

	log, err := j.Service.SendItem(ctx, payload.ItemID)
	if err != nil {
		switch {
		case errors.Is(err, newsletter.ErrAlreadySent):
			logger.Warn("newsletter already sent")
			return tracker.End(nil)
		case errors.Is(err, newsletter.ErrNotPublished), errors.Is(err, content.ErrNotFound):
			logger.Error("newsletter item not sendable", slog.Any("error", err))
			return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
		}
		logger.Error("newsletter send failed", slog.Any("error", err))
		return tracker.End(err)
	}

	j.metrics().AddProcessed(TaskNewsletterSend, "sent", log.Sent)
	j.metrics().AddProcessed(TaskNewsletterSend, "failed", log.Failed)
	logger.Info("newsletter send complete",
		slog.Int("total", log.Total),
		slog.Int("sent", log.Sent),
		slog.Int("failed", log.Failed),
	)
	return tracker.End(nil)
}

func (j *NewsletterSendJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNewsletterSend))
	}
	return slog.Default().With(slog.String("job", TaskNewsletterSend))
}

func (j *NewsletterSendJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
