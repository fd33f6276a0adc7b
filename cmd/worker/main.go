package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/app"
	"github.com/agentacademy/academy/internal/content"
	jobmetrics "github.com/agentacademy/academy/internal/jobs"
	"github.com/agentacademy/academy/internal/mail"
	"github.com/agentacademy/academy/internal/newsletter"
	"github.com/agentacademy/academy/internal/platform/db"
	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	resolver := access.NewResolver(logger, nil)
	contentService := content.NewService(content.NewRepository(pool), resolver, shared.NewAuditLogger(pool), logger)

	sender, err := mail.New(ctx, cfg.MailConfig(), logger)
	if err != nil {
		logger.Error("init mail sender", slog.Any("error", err))
		os.Exit(1)
	}
	dispatcher := newsletter.NewDispatcher(sender, cfg.DispatcherConfig(), logger, nil)
	newsletterService := newsletter.NewService(
		newsletter.NewRepository(pool),
		contentService,
		shared.NewIdempotencyStore(pool),
		dispatcher,
		logger,
	)

	metrics := jobmetrics.NewMetrics(nil)
	sendJob := jobs.NewNewsletterSendJob(newsletterService, logger, metrics)
	publishJob := jobs.NewPublishScheduledJob(contentService, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNewsletterSend, Handler: sendJob.Handle},
			{Type: jobs.TaskPublishScheduled, Handler: publishJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PublishScheduleCron, Task: jobs.NewPublishScheduledTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
