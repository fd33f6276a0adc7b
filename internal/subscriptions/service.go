package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/tiers"
)

// Store defines data access methods for subscription records.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Upsert(ctx context.Context, rec Record) error
}

// Service resolves the viewer state of members.
type Service struct {
	store     Store
	cache     *Cache
	logger    *slog.Logger
	validator *validator.Validate
	clock     func() time.Time
}

// NewService builds Service instance.
func NewService(store Store, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		cache:     cache,
		logger:    logger.With(slog.String("component", "subscriptions")),
		validator: validator.New(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Record loads the stored record for userID, preferring the cache.
func (s *Service) Record(ctx context.Context, userID string) (Record, error) {
	if rec, ok, err := s.cache.Get(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "subscription cache get", slog.String("user_id", userID), slog.Any("error", err))
	} else if ok {
		return rec, nil
	}
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "subscription cache set", slog.String("user_id", userID), slog.Any("error", err))
	}
	return rec, nil
}

// ViewerFor returns the access viewer for userID. Missing users and lookup
// failures produce an anonymous viewer.
func (s *Service) ViewerFor(ctx context.Context, userID string) access.Viewer {
	if userID == "" {
		return access.Anonymous()
	}
	rec, err := s.Record(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.ErrorContext(ctx, "subscription lookup failed closed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return access.Anonymous()
	}
	viewer, err := rec.Viewer(s.clock())
	if err != nil {
		s.logger.ErrorContext(ctx, "subscription tier not in catalog",
			slog.String("user_id", userID),
			slog.String("tier", rec.Tier),
			slog.Any("error", err),
		)
	}
	return viewer
}

// State reports the current subscription state for display.
func (s *Service) State(ctx context.Context, userID string) State {
	return stateOf(s.ViewerFor(ctx, userID))
}

// Upsert validates and stores a record, then drops the cached copy.
func (s *Service) Upsert(ctx context.Context, userID string, input UpsertInput) (Record, error) {
	if strings.TrimSpace(userID) == "" {
		return Record{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if err := s.validator.Struct(input); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rec := Record{
		UserID:           userID,
		Status:           Status(input.Status),
		CurrentPeriodEnd: input.CurrentPeriodEnd,
		UpdatedAt:        s.clock(),
	}
	if input.Tier != "" {
		tier, err := tiers.Parse(input.Tier)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		rec.Tier = tier.String()
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("subscriptions: upsert: %w", err)
	}
	s.Invalidate(ctx, userID)
	return rec, nil
}

// Invalidate removes the cached record so the next lookup hits the store.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "subscription cache delete", slog.String("user_id", userID), slog.Any("error", err))
	}
}
