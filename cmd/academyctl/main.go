// Command academyctl runs operator tasks: migrations, tokens and job control.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/agentacademy/academy/internal/app"
	"github.com/agentacademy/academy/internal/auth"
	"github.com/agentacademy/academy/internal/platform/db"
	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}

	cli := &commandLine{
		out: os.Stdout,
		migrate: func(steps int) error {
			return db.Migrate(cfg.PGDSN, steps)
		},
		version: func() (uint, bool, error) {
			return db.Version(cfg.PGDSN)
		},
		issueToken: func(p shared.Principal, ttl time.Duration) (string, error) {
			return auth.NewService(cfg.JWTSecret, cfg.JWTIssuer, nil).Issue(p, ttl)
		},
		enqueueSend: func(ctx context.Context, itemID uuid.UUID) (string, error) {
			client := jobs.NewClient(redisOpts)
			defer client.Close()
			return client.EnqueueNewsletterSend(ctx, itemID)
		},
		enqueueDue: func(ctx context.Context) (string, error) {
			client := jobs.NewClient(redisOpts)
			defer client.Close()
			return client.EnqueuePublishScheduled(ctx)
		},
		queueStats: func() ([]jobs.QueueStat, error) {
			inspector := asynq.NewInspector(redisOpts)
			defer inspector.Close()
			return jobs.Stats(inspector)
		},
		pruneClaims: func(ctx context.Context, olderThan time.Duration) error {
			pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer pool.Close()
			return shared.NewIdempotencyStore(pool).Cleanup(ctx, olderThan)
		},
	}

	if err := cli.run(ctx, os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
