package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentacademy/academy/internal/tiers"
)

// CanAccess reports whether viewer may see item. Anything that cannot be
// evaluated is denied.
func CanAccess(item Item, viewer Viewer) bool {
	ok, _ := Decide(item, viewer)
	return ok
}

// Decide is CanAccess plus the integrity error that forced a denial, if any.
// A nil error with a false decision is an ordinary "upgrade required".
func Decide(item Item, viewer Viewer) (bool, error) {
	switch item.Visibility {
	case Public:
		return true, nil
	case Subscribers:
		return viewer.Subscribed, nil
	case Tiered:
		if item.RequiredTier == nil {
			return false, &MalformedItemError{ItemID: item.ID, Reason: "tiered item without required tier"}
		}
		required, err := tiers.Rank(*item.RequiredTier)
		if err != nil {
			return false, &MalformedItemError{ItemID: item.ID, Reason: "invalid required tier", Err: err}
		}
		if !viewer.Subscribed || viewer.Tier == nil {
			return false, nil
		}
		have, err := tiers.Rank(*viewer.Tier)
		if err != nil {
			return false, fmt.Errorf("access: viewer tier: %w", err)
		}
		return have >= required, nil
	default:
		return false, &MalformedItemError{ItemID: item.ID, Reason: fmt.Sprintf("unknown visibility %q", item.Visibility)}
	}
}

// Resolver evaluates access and reports integrity defects to operators.
type Resolver struct {
	logger    *slog.Logger
	integrity *prometheus.CounterVec
}

// NewResolver builds a Resolver. When registerer is nil the integrity
// counter is kept unregistered.
func NewResolver(logger *slog.Logger, registerer prometheus.Registerer) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "academy_access_integrity_errors_total",
		Help: "Access checks denied because content or subscription data could not be evaluated.",
	}, []string{"kind"})
	if registerer != nil {
		registerer.MustRegister(counter)
	}
	return &Resolver{logger: logger.With(slog.String("component", "access")), integrity: counter}
}

// CanAccess evaluates the decision and logs any integrity error.
func (r *Resolver) CanAccess(ctx context.Context, item Item, viewer Viewer) bool {
	ok, err := Decide(item, viewer)
	if err != nil {
		r.report(ctx, "access check failed closed", err, slog.String("item_id", item.ID))
	}
	return ok
}

// BuildFilter builds the listing predicate for viewer and logs a viewer tier
// outside the catalog.
func (r *Resolver) BuildFilter(ctx context.Context, viewer Viewer) Predicate {
	p, err := DecideFilter(viewer)
	if err != nil {
		r.report(ctx, "access filter failed closed", err)
	}
	return p
}

func (r *Resolver) report(ctx context.Context, msg string, err error, attrs ...any) {
	kind := "viewer_tier"
	if errors.Is(err, ErrMalformedItem) {
		kind = "malformed_item"
	}
	r.integrity.WithLabelValues(kind).Inc()
	attrs = append(attrs, slog.String("kind", kind), slog.Any("error", err))
	r.logger.ErrorContext(ctx, msg, attrs...)
}
