package access

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agentacademy/academy/internal/tiers"
)

// Predicate selects the published items a viewer may see. It is the
// store-side form of CanAccess.
type Predicate struct {
	// Visibilities lists the modes admitted without a tier check.
	Visibilities []Visibility
	// Tiers lists the required tiers admitted for tiered items. Empty means
	// no tiered item is visible.
	Tiers []tiers.Tier
}

// BuildFilter returns the predicate equivalent to CanAccess for viewer.
func BuildFilter(viewer Viewer) Predicate {
	p, _ := DecideFilter(viewer)
	return p
}

// DecideFilter is BuildFilter plus the viewer tier error that dropped every
// tiered item from the predicate, if any.
func DecideFilter(viewer Viewer) (Predicate, error) {
	p := Predicate{Visibilities: []Visibility{Public}}
	if !viewer.Subscribed {
		return p, nil
	}
	p.Visibilities = append(p.Visibilities, Subscribers)
	if viewer.Tier == nil {
		return p, nil
	}
	allowed, err := tiers.AtOrBelow(*viewer.Tier)
	if err != nil {
		return p, fmt.Errorf("access: viewer tier: %w", err)
	}
	p.Tiers = allowed
	return p, nil
}

// Matches evaluates the predicate against a single item.
func (p Predicate) Matches(item Item) bool {
	if item.Status != StatusPublished {
		return false
	}
	switch item.Visibility {
	case Public, Subscribers:
		return slices.Contains(p.Visibilities, item.Visibility)
	case Tiered:
		return item.RequiredTier != nil && slices.Contains(p.Tiers, *item.RequiredTier)
	default:
		return false
	}
}

// Filter returns the items that satisfy the predicate, preserving order.
func (p Predicate) Filter(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if p.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}

// SQL renders the predicate as a PostgreSQL WHERE fragment over the
// status, visibility and required_tier columns of alias (may be empty).
// Placeholders are numbered from start.
func (p Predicate) SQL(alias string, start int) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	vis := make([]string, 0, len(p.Visibilities))
	for _, v := range p.Visibilities {
		if v == Tiered {
			continue
		}
		vis = append(vis, string(v))
	}

	args := []any{string(StatusPublished), vis}
	var b strings.Builder
	fmt.Fprintf(&b, "%s = $%d AND (%s = ANY($%d::text[])", col("status"), start, col("visibility"), start+1)
	if len(p.Tiers) > 0 {
		allowed := make([]string, len(p.Tiers))
		for i, t := range p.Tiers {
			allowed[i] = string(t)
		}
		args = append(args, string(Tiered), allowed)
		fmt.Fprintf(&b, " OR (%s = $%d AND %s = ANY($%d::text[]))", col("visibility"), start+2, col("required_tier"), start+3)
	}
	b.WriteString(")")
	return b.String(), args
}
