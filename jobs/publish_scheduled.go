package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/agentacademy/academy/internal/jobs"
)

// DuePublisher publishes scheduled items.
type DuePublisher interface {
	PublishDue(ctx context.Context, now time.Time) (int, error)
}

// PublishScheduledJob runs TaskPublishScheduled.
type PublishScheduledJob struct {
	Service DuePublisher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPublishScheduledJob initialises the scheduled publish handler.
func NewPublishScheduledJob(service DuePublisher, logger *slog.Logger, metrics *jobmetrics.Metrics) *PublishScheduledJob {
	return &PublishScheduledJob{
		Service: service,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle publishes every due item.
func (j *PublishScheduledJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("publish scheduled: handler not configured")
	}
	start := j.now()
	tracker := j.metrics().Track(TaskPublishScheduled)

	n, err := j.Service.PublishDue(ctx, start)
	j.metrics().AddProcessed(TaskPublishScheduled, "published", n)
	if err != nil {
		j.logger().Error("publish scheduled failed", slog.Int("published", n), slog.Any("error", err))
		return tracker.End(err)
	}
	if n > 0 {
		j.logger().Info("published scheduled content",
			slog.Int("published", n),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return tracker.End(nil)
}

func (j *PublishScheduledJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPublishScheduled))
	}
	return slog.Default().With(slog.String("job", TaskPublishScheduled))
}

func (j *PublishScheduledJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PublishScheduledJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
