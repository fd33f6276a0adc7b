package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/shared"
	"github.com/agentacademy/academy/internal/tiers"
)

const dueBatchLimit = 200

// Repository defines data access methods for content items.
type Repository interface {
	Create(ctx context.Context, item Item) error
	Update(ctx context.Context, item Item) error
	Get(ctx context.Context, id uuid.UUID) (Item, error)
	GetBySlug(ctx context.Context, slug string) (Item, error)
	ListVisible(ctx context.Context, pred access.Predicate, kind Kind, limit, offset int) ([]Item, int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Item, error)
}

// Service orchestrates content authoring and visible reads.
type Service struct {
	repo      Repository
	resolver  *access.Resolver
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
	body      *bluemonday.Policy
	clock     func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, resolver *access.Resolver, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = access.NewResolver(logger, nil)
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		audit:     audit,
		logger:    logger.With(slog.String("component", "content")),
		validator: validator.New(),
		body:      bluemonday.UGCPolicy(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new draft. Malformed visibility settings are rejected here
// so they never reach readers.
func (s *Service) Create(ctx context.Context, actorID string, input CreateInput) (Item, error) {
	if err := s.validator.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.clock()
	item := Item{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(input.Title),
		Summary:    strings.TrimSpace(input.Summary),
		Body:       s.body.Sanitize(input.Body),
		Kind:       Kind(input.Kind),
		Visibility: access.Visibility(input.Visibility),
		Status:     access.StatusDraft,
		AuthorID:   actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if strings.TrimSpace(input.RequiredTier) != "" {
		tier, err := tiers.Parse(input.RequiredTier)
		if err != nil {
			return Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		item.RequiredTier = &tier
	}
	if err := access.Validate(item.Access()); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	item.Slug = Slugify(input.Slug)
	if item.Slug == "" {
		item.Slug = Slugify(item.Title)
	}
	if item.Slug == "" {
		return Item{}, fmt.Errorf("%w: title yields an empty slug", ErrInvalidInput)
	}
	if strings.TrimSpace(item.Body) == "" {
		return Item{}, fmt.Errorf("%w: body is empty after sanitising", ErrInvalidInput)
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return Item{}, err
	}
	s.record(ctx, actorID, "content.create", item, map[string]any{"visibility": item.Visibility, "slug": item.Slug})
	return item, nil
}

// Get returns an item regardless of status.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.repo.Get(ctx, id)
}

// Publish moves a draft or scheduled item to published.
func (s *Service) Publish(ctx context.Context, actorID string, id uuid.UUID) (Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if item.Status == access.StatusPublished {
		return Item{}, fmt.Errorf("%w: already published", ErrInvalidTransition)
	}
	return s.publish(ctx, actorID, item)
}

// Schedule sets a future publication time on a draft or scheduled item.
func (s *Service) Schedule(ctx context.Context, actorID string, id uuid.UUID, input ScheduleInput) (Item, error) {
	if err := s.validator.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.clock()
	if !input.PublishAt.After(now) {
		return Item{}, fmt.Errorf("%w: publish_at must be in the future", ErrInvalidInput)
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if item.Status == access.StatusPublished {
		return Item{}, fmt.Errorf("%w: published items cannot be scheduled", ErrInvalidTransition)
	}
	at := input.PublishAt.UTC()
	item.Status = access.StatusScheduled
	item.PublishAt = &at
	item.UpdatedAt = now
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	s.record(ctx, actorID, "content.schedule", item, map[string]any{"publish_at": at})
	return item, nil
}

// PublishDue publishes every scheduled item whose time has come and returns
// how many were published. Failures on one item do not stop the others.
func (s *Service) PublishDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now, dueBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("content: list due: %w", err)
	}
	var errs []error
	published := 0
	for _, item := range due {
		if _, err := s.publish(ctx, "", item); err != nil {
			s.logger.ErrorContext(ctx, "publish scheduled item", slog.String("item_id", item.ID.String()), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}

// ListVisible returns the published items viewer may see.
func (s *Service) ListVisible(ctx context.Context, viewer access.Viewer, q ListQuery) (Page, error) {
	if q.Kind != "" && !q.Kind.Valid() {
		return Page{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, q.Kind)
	}
	pagination := shared.NewPagination(q.Page, q.PerPage, 0)
	items, total, err := s.repo.ListVisible(ctx, s.resolver.BuildFilter(ctx, viewer), q.Kind, pagination.PerPage, shared.Offset(pagination.Page, pagination.PerPage))
	if err != nil {
		return Page{}, fmt.Errorf("content: list visible: %w", err)
	}
	for i := range items {
		items[i].Body = ""
	}
	return Page{
		Items:      items,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pagination.PerPage))),
	}, nil
}

// GetVisible returns a published item by slug. Items the viewer cannot
// access yield ErrUpgradeRequired.
func (s *Service) GetVisible(ctx context.Context, slug string, viewer access.Viewer) (Item, error) {
	item, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return Item{}, err
	}
	if item.Status != access.StatusPublished {
		return Item{}, ErrNotFound
	}
	if !s.resolver.CanAccess(ctx, item.Access(), viewer) {
		return Item{}, ErrUpgradeRequired
	}
	return item, nil
}

func (s *Service) publish(ctx context.Context, actorID string, item Item) (Item, error) {
	now := s.clock()
	item.Status = access.StatusPublished
	item.PublishedAt = &now
	item.UpdatedAt = now
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	s.record(ctx, actorID, "content.publish", item, nil)
	return item, nil
}

func (s *Service) record(ctx context.Context, actorID, action string, item Item, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "content",
		EntityID: item.ID.String(),
		Meta:     meta,
		At:       s.clock(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit content", slog.String("action", action), slog.Any("error", err))
	}
}
