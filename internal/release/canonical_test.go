package release

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normative/internal/rules"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func member(slug, value string, vt rules.ValueType, from time.Time) *rules.RegulatoryRule {
	return &rules.RegulatoryRule{
		ConceptSlug:   slug,
		Value:         value,
		ValueType:     vt,
		EffectiveFrom: from,
	}
}

func TestCanonicalJSONSortsByConceptSlug(t *testing.T) {
	a := member("pdv-opca-stopa", "25", rules.ValuePercent, day(2025, 1, 1))
	b := member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1))

	forward, err := CanonicalJSON([]*rules.RegulatoryRule{a, b})
	require.NoError(t, err)
	reversed, err := CanonicalJSON([]*rules.RegulatoryRule{b, a})
	require.NoError(t, err)
	assert.Equal(t, forward, reversed, "member order must not affect the bundle bytes")

	assert.JSONEq(t, `[
		{"conceptSlug":"pdv-opca-stopa","value":"25","valueType":"percent","effectiveFrom":"2025-01-01","effectiveUntil":null},
		{"conceptSlug":"pdv-prag","value":"60000","valueType":"money","effectiveFrom":"2025-01-01","effectiveUntil":null}
	]`, string(forward))
}

func TestContentHashIgnoresTimeOfDay(t *testing.T) {
	midnight := member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1))
	noon := member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1).Add(12*time.Hour))

	h1, err := ContentHash([]*rules.RegulatoryRule{midnight})
	require.NoError(t, err)
	h2, err := ContentHash([]*rules.RegulatoryRule{noon})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "dates participate as yyyy-mm-dd only")
}

func TestContentHashChangesWithValue(t *testing.T) {
	h1, err := ContentHash([]*rules.RegulatoryRule{member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1))})
	require.NoError(t, err)
	h2, err := ContentHash([]*rules.RegulatoryRule{member("pdv-prag", "40000", rules.ValueMoney, day(2025, 1, 1))})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestContentHashIncludesUntilBound(t *testing.T) {
	open := member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1))
	bounded := member("pdv-prag", "60000", rules.ValueMoney, day(2025, 1, 1))
	until := day(2026, 1, 1)
	bounded.EffectiveUntil = &until

	h1, err := ContentHash([]*rules.RegulatoryRule{open})
	require.NoError(t, err)
	h2, err := ContentHash([]*rules.RegulatoryRule{bounded})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
