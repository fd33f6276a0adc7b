package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("newsletter:send").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("newsletter:send").End(boom), boom)

	require.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("newsletter:send", "success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("newsletter:send", "failure")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("newsletter:send")))
}

func TestAddProcessed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddProcessed("content:publish-scheduled", "published", 3)
	m.AddProcessed("content:publish-scheduled", "published", 0)
	require.Equal(t, float64(3), testutil.ToFloat64(m.processed.WithLabelValues("content:publish-scheduled", "published")))

	var nilMetrics *Metrics
	nilMetrics.AddProcessed("x", "y", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

func TestSetQueueDepth(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetQueueDepth("newsletter", "pending", 7)
	m.SetQueueDepth("newsletter", "pending", 2)
	require.Equal(t, float64(2), testutil.ToFloat64(m.queued.WithLabelValues("newsletter", "pending")))
}
