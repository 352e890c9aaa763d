package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaultsToOrMode(t *testing.T) {
	plan := Parse("channel mutex")

	assert.Equal(t, ModeOr, plan.Mode)
	assert.Equal(t, []string{"channel", "mutex"}, plan.Terms)
	assert.Empty(t, plan.ExcludeTerms)
	assert.False(t, plan.IsEmpty())
}

func TestParseAndOperator(t *testing.T) {
	plan := Parse("channel AND mutex")

	assert.Equal(t, ModeAnd, plan.Mode)
	assert.Equal(t, []string{"channel", "mutex"}, plan.Terms)
}

func TestParseLastOperatorWins(t *testing.T) {
	plan := Parse("channel AND mutex OR buffer")
	assert.Equal(t, ModeOr, plan.Mode)
}

func TestParseExclusions(t *testing.T) {
	plan := Parse("channel -mutex")

	assert.Equal(t, []string{"channel"}, plan.Terms)
	assert.Equal(t, []string{"mutex"}, plan.ExcludeTerms)
}

func TestParseLoneDashIgnored(t *testing.T) {
	plan := Parse("- channel")

	assert.Equal(t, []string{"channel"}, plan.Terms)
	assert.Empty(t, plan.ExcludeTerms)
}

func TestParseDeduplicatesTerms(t *testing.T) {
	plan := Parse("channel Channel CHANNEL mutex")
	assert.Equal(t, []string{"channel", "mutex"}, plan.Terms)
}

func TestParseDropsStopwords(t *testing.T) {
	plan := Parse("what is a channel")
	assert.Equal(t, []string{"channel"}, plan.Terms)
}

func TestParseStopwordOnlyQueryIsEmpty(t *testing.T) {
	plan := Parse("the and is of")
	assert.True(t, plan.IsEmpty())
	assert.Empty(t, plan.Terms)
}

func TestParseBlankQueryIsEmpty(t *testing.T) {
	assert.True(t, Parse("").IsEmpty())
	assert.True(t, Parse("   ").IsEmpty())
}

func TestParseStemsTerms(t *testing.T) {
	plan := Parse("channels buffered")
	assert.Equal(t, []string{"channel", "buffer"}, plan.Terms)
}

func TestNormalizeOrderIndependent(t *testing.T) {
	a := Parse("channel mutex").Normalize()
	b := Parse("mutex channel").Normalize()
	assert.Equal(t, a, b)
}

func TestNormalizeDistinguishesMode(t *testing.T) {
	or := Parse("channel mutex").Normalize()
	and := Parse("channel AND mutex").Normalize()
	assert.NotEqual(t, or, and)
}

func TestNormalizeDistinguishesExcludes(t *testing.T) {
	plain := Parse("channel").Normalize()
	excluded := Parse("channel -mutex").Normalize()
	assert.NotEqual(t, plain, excluded)
}
