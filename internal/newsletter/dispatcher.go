package newsletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agentacademy/academy/internal/mail"
)

const (
	// DefaultBatchSize is the number of emails issued concurrently.
	DefaultBatchSize = 50
	// DefaultBatchDelay separates consecutive batches.
	DefaultBatchDelay = time.Second
)

// DispatcherConfig tunes batching. Zero values select the defaults.
type DispatcherConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	// SendRate caps sends per second across batches. Zero disables it.
	SendRate float64
}

// Dispatcher fans an issue out to recipients in batches.
type Dispatcher struct {
	sender     mail.Sender
	batchSize  int
	batchDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	sends      *prometheus.CounterVec
	wait       func(ctx context.Context, d time.Duration) error
}

// NewDispatcher builds a Dispatcher. When registerer is nil the send counter
// is kept unregistered.
func NewDispatcher(sender mail.Sender, cfg DispatcherConfig, logger *slog.Logger, registerer prometheus.Registerer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	} else if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	var limiter *rate.Limiter
	if cfg.SendRate > 0 {
		burst := int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_newsletter_emails_total",
		Help: "Newsletter emails by delivery outcome.",
	}, []string{"outcome"})
	if registerer != nil {
		registerer.MustRegister(sends)
	}
	return &Dispatcher{
		sender:     sender,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
		limiter:    limiter,
		logger:     logger.With(slog.String("component", "newsletter.dispatcher")),
		sends:      sends,
		wait:       sleepContext,
	}
}

// Dispatch sends issue to every eligible recipient. Sends within a batch run
// concurrently and all finish before the inter-batch delay starts. Failures
// are collected per recipient and never retried. Once ctx is done no further
// batch is issued and the recipients left over are reported with ctx's error.
func (d *Dispatcher) Dispatch(ctx context.Context, issue Issue, recipients []Recipient) Result {
	eligible := RecipientsFor(issue.Item, recipients)
	res := Result{Total: len(eligible)}

	for start := 0; start < len(eligible); start += d.batchSize {
		if start > 0 {
			if err := d.wait(ctx, d.batchDelay); err != nil {
				res.Errors = append(res.Errors, abandoned(eligible[start:], err)...)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, abandoned(eligible[start:], err)...)
			break
		}
		end := min(start+d.batchSize, len(eligible))
		errs := d.sendBatch(ctx, issue, eligible[start:end])
		res.Sent += (end - start) - len(errs)
		res.Errors = append(res.Errors, errs...)
		d.logger.DebugContext(ctx, "newsletter batch done",
			slog.String("item_id", issue.Item.ID),
			slog.Int("batch_start", start),
			slog.Int("batch_size", end-start),
			slog.Int("failed", len(errs)),
		)
	}

	d.sends.WithLabelValues("sent").Add(float64(res.Sent))
	d.sends.WithLabelValues("failed").Add(float64(len(res.Errors)))
	return res
}

func (d *Dispatcher) sendBatch(ctx context.Context, issue Issue, batch []Recipient) []RecipientSendError {
	failures := make([]error, len(batch))
	var g errgroup.Group
	for i, r := range batch {
		g.Go(func() error {
			failures[i] = d.sendOne(ctx, issue, r)
			return nil
		})
	}
	_ = g.Wait()

	var errs []RecipientSendError
	for i, err := range failures {
		if err != nil {
			errs = append(errs, RecipientSendError{Email: batch[i].Email, Err: err})
		}
	}
	return errs
}

func (d *Dispatcher) sendOne(ctx context.Context, issue Issue, r Recipient) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return d.sender.Send(ctx, mail.Message{
		To:      r.Email,
		ToName:  r.Name,
		Subject: issue.Subject,
		HTML:    issue.HTML,
		Text:    issue.Text,
	})
}

func abandoned(rest []Recipient, err error) []RecipientSendError {
	out := make([]RecipientSendError, 0, len(rest))
	for _, r := range rest {
		out = append(out, RecipientSendError{Email: r.Email, Err: err})
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
