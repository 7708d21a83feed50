package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusDraft, StatusPendingReview},
		{StatusPendingReview, StatusApproved},
		{StatusPendingReview, StatusRejected},
		{StatusPendingReview, StatusDraft},
		{StatusApproved, StatusPublished},
		{StatusApproved, StatusDraft},
		{StatusRejected, StatusDraft},
		{StatusPublished, StatusDraft},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusDraft, StatusApproved},
		{StatusDraft, StatusPublished},
		{StatusDraft, StatusDraft},
		{StatusPendingReview, StatusPublished},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusRejected, StatusPublished},
		{StatusPublished, StatusApproved},
		{StatusPublished, StatusPendingReview},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestEffectiveOn(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bounded := &RegulatoryRule{EffectiveFrom: from, EffectiveUntil: &until}

	assert.False(t, bounded.EffectiveOn(from.AddDate(0, 0, -1)))
	assert.True(t, bounded.EffectiveOn(from), "interval start is inclusive")
	assert.True(t, bounded.EffectiveOn(from.AddDate(0, 6, 0)))
	assert.False(t, bounded.EffectiveOn(until), "interval end is exclusive")

	open := &RegulatoryRule{EffectiveFrom: from}
	assert.True(t, open.EffectiveOn(until.AddDate(10, 0, 0)))
}

func TestOverlaps(t *testing.T) {
	day := func(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }
	interval := func(from time.Time, until *time.Time) *RegulatoryRule {
		return &RegulatoryRule{EffectiveFrom: from, EffectiveUntil: until}
	}
	ptr := func(t time.Time) *time.Time { return &t }

	a := interval(day(2025, 1, 1), ptr(day(2025, 7, 1)))
	b := interval(day(2025, 6, 1), nil)
	c := interval(day(2025, 7, 1), nil)

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "adjacent half-open intervals do not overlap")
	assert.True(t, b.Overlaps(c))
}
