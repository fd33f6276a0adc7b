package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/jobs"
)

var errHelp = errors.New("help provided")

// Each dependency is resolved lazily so commands only connect to what they use.
type commandLine struct {
	out io.Writer

	migrate     func(steps int) error
	version     func() (uint, bool, error)
	issueToken  func(p shared.Principal, ttl time.Duration) (string, error)
	enqueueSend func(ctx context.Context, itemID uuid.UUID) (string, error)
	enqueueDue  func(ctx context.Context) (string, error)
	queueStats  func() ([]jobs.QueueStat, error)
	pruneClaims func(ctx context.Context, olderThan time.Duration) error
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate [-steps N]                          - apply (or roll back with negative N) schema migrations")
	fmt.Fprintln(cli.out, "  migrate-version                             - print the applied schema version")
	fmt.Fprintln(cli.out, "  token -user ID -email EMAIL [-role R] [-ttl D] - sign an access token")
	fmt.Fprintln(cli.out, "  send -item UUID                             - enqueue a newsletter send")
	fmt.Fprintln(cli.out, "  publish-due                                 - enqueue a scheduled publish run")
	fmt.Fprintln(cli.out, "  queues                                      - print queue statistics")
	fmt.Fprintln(cli.out, "  claims-prune -older-than D                  - drop idempotency claims older than D")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		steps := fs.Int("steps", 0, "Number of migrations to apply; negative rolls back, zero applies all.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if err := cli.migrate(*steps); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "migrations applied")
		return nil

	case "migrate-version":
		v, dirty, err := cli.version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "version %d dirty=%t\n", v, dirty)
		return nil

	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		user := fs.String("user", "", "Subject user ID.")
		email := fs.String("email", "", "Email claim.")
		role := fs.String("role", shared.RoleMember, "Role claim (member, author, admin).")
		ttl := fs.Duration("ttl", time.Hour, "Token lifetime.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *user == "" {
			fs.Usage()
			return errHelp
		}
		if !shared.KnownRole(*role) {
			return fmt.Errorf("unknown role %q", *role)
		}
		token, err := cli.issueToken(shared.Principal{UserID: *user, Email: *email, Role: *role}, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, token)
		return nil

	case "send":
		fs := flag.NewFlagSet("send", flag.ContinueOnError)
		item := fs.String("item", "", "Content item UUID.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		id, err := uuid.Parse(*item)
		if err != nil {
			fs.Usage()
			return fmt.Errorf("invalid item id: %w", err)
		}
		taskID, err := cli.enqueueSend(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "enqueued %s\n", taskID)
		return nil

	case "publish-due":
		taskID, err := cli.enqueueDue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "enqueued %s\n", taskID)
		return nil

	case "queues":
		stats, err := cli.queueStats()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)

	case "claims-prune":
		fs := flag.NewFlagSet("claims-prune", flag.ContinueOnError)
		olderThan := fs.Duration("older-than", 0, "Minimum claim age to remove, e.g. 2160h.")
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		if *olderThan <= 0 {
			fs.Usage()
			return errHelp
		}
		if err := cli.pruneClaims(ctx, *olderThan); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "claims pruned")
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
