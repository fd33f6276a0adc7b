// Package content manages training content items and their publication
// lifecycle.
package content

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/tiers"
)

// Kind classifies a content item.
type Kind string

const (
	KindArticle    Kind = "article"
	KindCourse     Kind = "course"
	KindWebinar    Kind = "webinar"
	KindNewsletter Kind = "newsletter"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindArticle, KindCourse, KindWebinar, KindNewsletter:
		return true
	}
	return false
}

// Domain errors for content.
var (
	ErrNotFound          = errors.New("content: not found")
	ErrDuplicateSlug     = errors.New("content: slug already taken")
	ErrInvalidInput      = errors.New("content: invalid input")
	ErrInvalidTransition = errors.New("content: status transition not allowed")
	ErrUpgradeRequired   = errors.New("content: upgrade required")
)

// Item is a stored content item.
type Item struct {
	ID           uuid.UUID         `json:"id"`
	Slug         string            `json:"slug"`
	Title        string            `json:"title"`
	Summary      string            `json:"summary"`
	Body         string            `json:"body,omitempty"`
	Kind         Kind              `json:"kind"`
	Visibility   access.Visibility `json:"visibility"`
	RequiredTier *tiers.Tier       `json:"required_tier,omitempty"`
	Status       access.Status     `json:"status"`
	PublishAt    *time.Time        `json:"publish_at,omitempty"`
	PublishedAt  *time.Time        `json:"published_at,omitempty"`
	AuthorID     string            `json:"author_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Access projects the item onto the fields the access resolver reads.
func (i Item) Access() access.Item {
	return access.Item{
		ID:           i.ID.String(),
		Visibility:   i.Visibility,
		RequiredTier: i.RequiredTier,
		Status:       i.Status,
	}
}

// CreateInput is the payload for a new draft.
type CreateInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Slug         string `json:"slug" validate:"omitempty,max=120"`
	Summary      string `json:"summary" validate:"max=1000"`
	Body         string `json:"body" validate:"required"`
	Kind         string `json:"kind" validate:"required,oneof=article course webinar newsletter"`
	Visibility   string `json:"visibility" validate:"required,oneof=public subscribers tiered"`
	RequiredTier string `json:"required_tier" validate:"omitempty,max=32"`
}

// ScheduleInput sets the publication time of a draft.
type ScheduleInput struct {
	PublishAt time.Time `json:"publish_at" validate:"required"`
}

// ListQuery narrows a visible listing.
type ListQuery struct {
	Kind    Kind
	Page    int
	PerPage int
}

// Page is one page of a listing.
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
}
