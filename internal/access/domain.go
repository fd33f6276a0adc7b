// Package access decides which content a viewer may see and expresses the
// same decision as a data-store filter.
package access

import "github.com/agentacademy/academy/internal/tiers"

// Visibility is the access policy attached to a content item.
type Visibility string

const (
	Public      Visibility = "public"
	Subscribers Visibility = "subscribers"
	Tiered      Visibility = "tiered"
)

// Valid reports whether v is a known visibility mode.
func (v Visibility) Valid() bool {
	switch v {
	case Public, Subscribers, Tiered:
		return true
	default:
		return false
	}
}

// Status is the publication state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished:
		return true
	default:
		return false
	}
}

// Item is the access-relevant projection of a content item.
type Item struct {
	ID           string
	Visibility   Visibility
	RequiredTier *tiers.Tier
	Status       Status
}

// Viewer is the subscription state of whoever is asking. A viewer that is
// not subscribed carries no tier privilege even when Tier is set.
type Viewer struct {
	Subscribed bool
	Tier       *tiers.Tier
}

// Anonymous returns a viewer without any subscription.
func Anonymous() Viewer {
	return Viewer{}
}

// Subscriber returns a subscribed viewer holding t. A nil tier means a
// newsletter/free subscription without a paid plan.
func Subscriber(t *tiers.Tier) Viewer {
	return Viewer{Subscribed: true, Tier: t}
}

// TierPtr is a helper for building Items and Viewers inline.
func TierPtr(t tiers.Tier) *tiers.Tier {
	return &t
}
