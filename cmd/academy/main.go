package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/app"
	"github.com/agentacademy/academy/internal/auth"
	"github.com/agentacademy/academy/internal/content"
	jobmetrics "github.com/agentacademy/academy/internal/jobs"
	"github.com/agentacademy/academy/internal/mail"
	"github.com/agentacademy/academy/internal/newsletter"
	"github.com/agentacademy/academy/internal/observability"
	"github.com/agentacademy/academy/internal/platform/cache"
	"github.com/agentacademy/academy/internal/platform/db"
	"github.com/agentacademy/academy/internal/rbac"
	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/internal/subscriptions"
	"github.com/agentacademy/academy/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	resolver := access.NewResolver(logger, metrics.Registerer())

	authService := auth.NewService(cfg.JWTSecret, cfg.JWTIssuer, redisClient)
	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	subscriptionService := subscriptions.NewService(
		subscriptions.NewRepository(pool),
		subscriptions.NewCache(redisClient, cfg.SubscriptionCacheTTL),
		logger,
	)
	contentService := content.NewService(content.NewRepository(pool), resolver, shared.NewAuditLogger(pool), logger)

	sender, err := mail.New(ctx, cfg.MailConfig(), logger)
	if err != nil {
		logger.Error("init mail sender", slog.Any("error", err))
		os.Exit(1)
	}
	dispatcher := newsletter.NewDispatcher(sender, cfg.DispatcherConfig(), logger, metrics.Registerer())
	newsletterService := newsletter.NewService(
		newsletter.NewRepository(pool),
		contentService,
		shared.NewIdempotencyStore(pool),
		dispatcher,
		logger,
	)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Auth:                authService,
		AuthHandler:         auth.NewHandler(authService, logger),
		ContentHandler:      content.NewHandler(logger, contentService, subscriptionService, rbacMiddleware),
		NewsletterHandler:   newsletter.NewHandler(logger, newsletterService, jobClient, rbacMiddleware),
		SubscriptionHandler: subscriptions.NewHandler(logger, subscriptionService, rbacMiddleware),
		PermissionsHandler:  rbac.NewPermissionsHandler(rbacService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, jobmetrics.NewMetrics(metrics.Registerer()), logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
