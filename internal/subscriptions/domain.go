// Package subscriptions keeps the billing-derived subscription state of
// each member and turns it into an access.Viewer.
package subscriptions

import (
	"errors"
	"strings"
	"time"

	"github.com/agentacademy/academy/internal/access"
	"github.com/agentacademy/academy/internal/tiers"
)

// Status mirrors the billing provider's subscription status.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
	StatusUnpaid     Status = "unpaid"
)

var (
	// ErrNotFound indicates no subscription record exists for the user.
	ErrNotFound = errors.New("subscriptions: not found")
	// ErrInvalidInput indicates a rejected upsert payload.
	ErrInvalidInput = errors.New("subscriptions: invalid input")
)

// Record is the stored subscription row for one user. Tier may hold a stale
// value after cancellation.
type Record struct {
	UserID           string     `json:"user_id"`
	Status           Status     `json:"status"`
	Tier             string     `json:"tier,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Active reports whether the record grants subscriber access at now.
func (r Record) Active(now time.Time) bool {
	if r.Status != StatusActive && r.Status != StatusTrialing {
		return false
	}
	if r.CurrentPeriodEnd != nil && !now.Before(*r.CurrentPeriodEnd) {
		return false
	}
	return true
}

// Viewer converts the record to the resolver's view. An inactive record
// yields an anonymous viewer whatever tier it stores. An unparseable tier
// yields a subscriber without tier plus the parse error.
func (r Record) Viewer(now time.Time) (access.Viewer, error) {
	if !r.Active(now) {
		return access.Anonymous(), nil
	}
	if strings.TrimSpace(r.Tier) == "" {
		return access.Subscriber(nil), nil
	}
	tier, err := tiers.Parse(r.Tier)
	if err != nil {
		return access.Subscriber(nil), err
	}
	return access.Subscriber(&tier), nil
}

// UpsertInput is the payload accepted from billing sync and admins.
type UpsertInput struct {
	Status           string     `json:"status" validate:"required,oneof=active trialing past_due canceled incomplete unpaid"`
	Tier             string     `json:"tier" validate:"omitempty,max=32"`
	CurrentPeriodEnd *time.Time `json:"current_period_end"`
}

// State is the response body of the current-subscription endpoint.
type State struct {
	Subscribed bool   `json:"subscribed"`
	Tier       string `json:"tier,omitempty"`
	TierLabel  string `json:"tier_label,omitempty"`
}

func stateOf(v access.Viewer) State {
	s := State{Subscribed: v.Subscribed}
	if v.Subscribed && v.Tier != nil {
		s.Tier = v.Tier.String()
		s.TierLabel = v.Tier.DisplayName()
	}
	return s
}
