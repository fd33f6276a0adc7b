package newsletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/mail"
	"github.com/agentacademy/academy/internal/tiers"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	inflight int
	fail     map[string]error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	f.inflight++
	f.sent = append(f.sent, msg.To)
	err := f.fail[msg.To]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
	return err
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func publicIssue() Issue {
	return Issue{
		Item:    access.Item{ID: "item-1", Visibility: access.Public, Status: access.StatusPublished},
		Subject: "Weekly brief",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	}
}

func optedIn(n int) []Recipient {
	out := make([]Recipient, n)
	for i := range out {
		out[i] = Recipient{
			UserID:                 fmt.Sprintf("u%d", i),
			Email:                  fmt.Sprintf("agent%03d@example.test", i),
			SubscribedToNewsletter: true,
			PaidState:              access.Subscriber(access.TierPtr(tiers.Core)),
		}
	}
	return out
}

func TestRecipientsFor(t *testing.T) {
	premiumItem := access.Item{ID: "p", Visibility: access.Tiered, RequiredTier: access.TierPtr(tiers.Premium), Status: access.StatusPublished}
	all := []Recipient{
		{Email: "out@x.test", SubscribedToNewsletter: false, PaidState: access.Subscriber(access.TierPtr(tiers.Business))},
		{Email: "core@x.test", SubscribedToNewsletter: true, PaidState: access.Subscriber(access.TierPtr(tiers.Core))},
		{Email: "biz@x.test", SubscribedToNewsletter: true, PaidState: access.Subscriber(access.TierPtr(tiers.Business))},
		{Email: "premium@x.test", SubscribedToNewsletter: true, PaidState: access.Subscriber(access.TierPtr(tiers.Premium))},
		{Email: "lapsed@x.test", SubscribedToNewsletter: true, PaidState: access.Viewer{Subscribed: false, Tier: access.TierPtr(tiers.Business)}},
		{Email: "anon@x.test", SubscribedToNewsletter: true, PaidState: access.Anonymous()},
	}

	got := RecipientsFor(premiumItem, all)
	emails := make([]string, 0, len(got))
	for _, r := range got {
		emails = append(emails, r.Email)
	}
	require.Equal(t, []string{"biz@x.test", "premium@x.test"}, emails)

	public := RecipientsFor(publicIssue().Item, all)
	require.Len(t, public, 5)
	for _, r := range public {
		require.True(t, r.SubscribedToNewsletter)
	}
}

func TestDispatchBatchesAndCollectsFailures(t *testing.T) {
	recipients := optedIn(120)
	failing := recipients[73].Email
	sender := &fakeSender{fail: map[string]error{failing: errors.New("mailbox unavailable")}}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(sender, DispatcherConfig{BatchSize: 50}, nil, reg)

	var boundaries []int
	d.wait = func(_ context.Context, delay time.Duration) error {
		require.Equal(t, DefaultBatchDelay, delay)
		sender.mu.Lock()
		require.Zero(t, sender.inflight)
		sender.mu.Unlock()
		boundaries = append(boundaries, sender.calls())
		return nil
	}

	res := d.Dispatch(context.Background(), publicIssue(), recipients)

	require.Equal(t, 120, res.Total)
	require.Equal(t, 119, res.Sent)
	require.Len(t, res.Errors, 1)
	require.Equal(t, failing, res.Errors[0].Email)
	require.ErrorContains(t, res.Errors[0], "mailbox unavailable")
	require.Equal(t, []int{50, 100}, boundaries)
	require.Equal(t, 120, sender.calls())

	require.Equal(t, float64(119), testutil.ToFloat64(d.sends.WithLabelValues("sent")))
	require.Equal(t, float64(1), testutil.ToFloat64(d.sends.WithLabelValues("failed")))
}

func TestDispatchSkipsIneligibleRecipients(t *testing.T) {
	recipients := optedIn(3)
	recipients[1].SubscribedToNewsletter = false
	sender := &fakeSender{}
	d := NewDispatcher(sender, DispatcherConfig{}, nil, nil)

	res := d.Dispatch(context.Background(), publicIssue(), recipients)
	require.Equal(t, 2, res.Total)
	require.Equal(t, 2, res.Sent)
	require.NotContains(t, sender.sent, recipients[1].Email)
}

func TestDispatchCancelledBetweenBatches(t *testing.T) {
	recipients := optedIn(120)
	sender := &fakeSender{}
	d := NewDispatcher(sender, DispatcherConfig{BatchSize: 50}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.wait = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	res := d.Dispatch(ctx, publicIssue(), recipients)

	require.Equal(t, 120, res.Total)
	require.Equal(t, 50, res.Sent)
	require.Len(t, res.Errors, 70)
	for _, e := range res.Errors {
		require.ErrorIs(t, e, context.Canceled)
	}
	require.Equal(t, recipients[50].Email, res.Errors[0].Email)
	require.Equal(t, 50, sender.calls())
}

func TestDispatchCancelledBeforeStart(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, DispatcherConfig{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Dispatch(ctx, publicIssue(), optedIn(3))
	require.Zero(t, res.Sent)
	require.Equal(t, 3, res.Failed())
	require.Zero(t, sender.calls())
}

func TestDispatchWithSendRate(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, DispatcherConfig{BatchSize: 5, BatchDelay: -1, SendRate: 1000}, nil, nil)
	require.NotNil(t, d.limiter)
	require.Zero(t, d.batchDelay)

	res := d.Dispatch(context.Background(), publicIssue(), optedIn(12))
	require.Equal(t, 12, res.Sent)
	require.Empty(t, res.Errors)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
