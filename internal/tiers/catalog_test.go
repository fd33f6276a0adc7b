package tiers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRankFollowsCatalogOrder(t *testing.T) {
	for i, tier := range Tiers() {
		r, err := Rank(tier)
		require.NoError(t, err)
		require.Equal(t, i, r)
	}
	require.Equal(t, []Tier{Core, Enhanced, Premium, Business}, Tiers())
}

func TestRankUnknownTier(t *testing.T) {
	_, err := Rank(Tier("platinum"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownTier)

	var unknown *UnknownTierError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "platinum", unknown.Value)

	_, err = Rank(Tier(""))
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestRankIsNotLexical(t *testing.T) {
	// "business" < "core" lexically but outranks it.
	ok, err := AtLeast(Business, Core)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = AtLeast(Enhanced, Premium)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompare(t *testing.T) {
	c, err := Compare(Premium, Premium)
	require.NoError(t, err)
	require.Zero(t, c)

	c, err = Compare(Core, Business)
	require.NoError(t, err)
	require.Equal(t, -1, c)

	_, err = Compare(Core, Tier("gold"))
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestParse(t *testing.T) {
	cases := map[string]Tier{
		"core":       Core,
		" Premium ":  Premium,
		"BUSINESS":   Business,
		"basic":      Core,
		"enterprise": Business,
		"enhanced":   Enhanced,
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := Parse("free")
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestAtOrBelow(t *testing.T) {
	got, err := AtOrBelow(Premium)
	require.NoError(t, err)
	require.Equal(t, []Tier{Core, Enhanced, Premium}, got)

	got[0] = Business
	again, err := AtOrBelow(Premium)
	require.NoError(t, err)
	require.Equal(t, Core, again[0])

	_, err = AtOrBelow(Tier("x"))
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Premium", Premium.DisplayName())
	require.Equal(t, "Business", Business.DisplayName())
}
