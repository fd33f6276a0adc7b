package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/agentacademy/academy/internal/jobs"
	"github.com/agentacademy/academy/internal/newsletter"
	"github.com/agentacademy/academy/internal/platform/httpx"
)

// Queues lists every queue the worker consumes.
func Queues() []string {
	return []string{QueueDefault, QueueNewsletter}
}

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	logger := cfg.Logger
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault:    2,
			QueueNewsletter: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.ErrorContext(ctx, "task failed", slog.String("type", task.Type()), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, fmt.Errorf("jobs: register cron %q: %w", entry.Spec, err)
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueNewsletterSend queues a send of itemID and returns the task ID.
// A send already queued for the item yields newsletter.ErrAlreadySent.
func (c *Client) EnqueueNewsletterSend(ctx context.Context, itemID uuid.UUID) (string, error) {
	task, err := NewNewsletterSendTask(itemID)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return "", newsletter.ErrAlreadySent
		}
		return "", fmt.Errorf("jobs: enqueue newsletter send: %w", err)
	}
	return info.ID, nil
}

// EnqueuePublishScheduled queues an immediate scheduled-publish run.
func (c *Client) EnqueuePublishScheduled(ctx context.Context) (string, error) {
	info, err := c.client.EnqueueContext(ctx, NewPublishScheduledTask())
	if err != nil {
		return "", fmt.Errorf("jobs: enqueue publish scheduled: %w", err)
	}
	return info.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// QueueInspector reads queue statistics.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueStat summarises one queue.
type QueueStat struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// Stats collects statistics for every worker queue. Queues that were never
// written to report zero counts.
func Stats(inspector QueueInspector) ([]QueueStat, error) {
	stats := make([]QueueStat, 0, len(Queues()))
	for _, q := range Queues() {
		stat := QueueStat{Queue: q}
		if inspector != nil {
			info, err := inspector.GetQueueInfo(q)
			if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
				return nil, fmt.Errorf("jobs: queue %s: %w", q, err)
			}
			if info != nil {
				stat.Pending = info.Pending
				stat.Active = info.Active
				stat.Scheduled = info.Scheduled
				stat.Retry = info.Retry
				stat.Archived = info.Archived
			}
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueInspector
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. Each health
// request also refreshes the queue depth gauges.
func NewHandler(inspector QueueInspector, metrics *jobmetrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, metrics: metrics, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stats, err := Stats(h.inspector)
	if err != nil {
		h.logger.WarnContext(r.Context(), "jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue unavailable")
		return
	}
	for _, st := range stats {
		h.metrics.SetQueueDepth(st.Queue, "pending", st.Pending)
		h.metrics.SetQueueDepth(st.Queue, "active", st.Active)
		h.metrics.SetQueueDepth(st.Queue, "scheduled", st.Scheduled)
		h.metrics.SetQueueDepth(st.Queue, "retry", st.Retry)
		h.metrics.SetQueueDepth(st.Queue, "archived", st.Archived)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queues": stats})
}
