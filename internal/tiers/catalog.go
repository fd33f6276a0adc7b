// Package tiers defines the ordered subscription tier catalog.
package tiers

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a named subscription level.
type Tier string

// Catalog tiers, lowest privilege first.
const (
	Core     Tier = "core"
	Enhanced Tier = "enhanced"
	Premium  Tier = "premium"
	Business Tier = "business"
)

var ordered = []Tier{Core, Enhanced, Premium, Business}

var ranks = func() map[Tier]int {
	m := make(map[Tier]int, len(ordered))
	for i, t := range ordered {
		m[t] = i
	}
	return m
}()

// legacyNames maps plan names still emitted by older billing products.
var legacyNames = map[string]Tier{
	"basic":      Core,
	"enterprise": Business,
}

// ErrUnknownTier is matched by every UnknownTierError.
var ErrUnknownTier = errors.New("tiers: unknown tier")

// UnknownTierError reports a value outside the catalog.
type UnknownTierError struct {
	Value string
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("tiers: unknown tier %q", e.Value)
}

// Is lets errors.Is match ErrUnknownTier.
func (e *UnknownTierError) Is(target error) bool {
	return target == ErrUnknownTier
}

// Tiers returns the catalog in ascending privilege order.
func Tiers() []Tier {
	out := make([]Tier, len(ordered))
	copy(out, ordered)
	return out
}

// Rank returns the position of t in the catalog.
func Rank(t Tier) (int, error) {
	r, ok := ranks[t]
	if !ok {
		return 0, &UnknownTierError{Value: string(t)}
	}
	return r, nil
}

// Valid reports whether t belongs to the catalog.
func (t Tier) Valid() bool {
	_, ok := ranks[t]
	return ok
}

// String implements fmt.Stringer.
func (t Tier) String() string {
	return string(t)
}

// DisplayName returns the title-cased label shown on plan badges.
func (t Tier) DisplayName() string {
	return cases.Title(language.English).String(string(t))
}

// Parse normalises raw input into a catalog tier. Legacy plan names are
// mapped onto their catalog equivalent.
func Parse(raw string) (Tier, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if t := Tier(v); t.Valid() {
		return t, nil
	}
	if t, ok := legacyNames[v]; ok {
		return t, nil
	}
	return "", &UnknownTierError{Value: raw}
}

// Compare returns -1, 0 or 1 as a ranks below, equal to or above b.
func Compare(a, b Tier) (int, error) {
	ra, err := Rank(a)
	if err != nil {
		return 0, err
	}
	rb, err := Rank(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ra < rb:
		return -1, nil
	case ra > rb:
		return 1, nil
	default:
		return 0, nil
	}
}

// AtLeast reports whether have grants everything required grants.
func AtLeast(have, required Tier) (bool, error) {
	c, err := Compare(have, required)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// AtOrBelow returns every tier whose rank does not exceed t's.
func AtOrBelow(t Tier) ([]Tier, error) {
	r, err := Rank(t)
	if err != nil {
		return nil, err
	}
	return Tiers()[:r+1], nil
}
