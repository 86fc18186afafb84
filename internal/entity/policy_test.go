package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPolicy(now time.Time) *UpdatePolicy {
	p := NewUpdatePolicy(time.UTC, 0)
	p.Now = func() time.Time { return now }
	return p
}

func TestSpanFor_NeverUpdated(t *testing.T) {
	p := fixedPolicy(time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC))

	span := p.SpanFor(TrackedEntity{Code: "ALK", Marker: NeverUpdated})

	assert.Equal(t, Backfill, span.Kind)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), span.From)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), span.To)
}

func TestSpanFor_Incremental(t *testing.T) {
	p := fixedPolicy(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	marker, err := ParseMarker("2026-10-01")
	require.NoError(t, err)

	span := p.SpanFor(TrackedEntity{Code: "ALK", Marker: marker})

	assert.Equal(t, Incremental, span.Kind)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), span.From)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), span.To)
}

func TestToday_UsesExchangeLocation(t *testing.T) {
	loc := time.FixedZone("CET", 2*60*60)
	p := NewUpdatePolicy(loc, 10)
	// 23:30 UTC is already the next day two hours east.
	p.Now = func() time.Time { return time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC) }

	assert.Equal(t, 20, p.Today().Day())
}

func TestMarker(t *testing.T) {
	m, err := ParseMarker("")
	require.NoError(t, err)
	assert.True(t, m.IsNever())
	assert.Equal(t, "", m.String())

	m, err = ParseMarker("2026-10-19")
	require.NoError(t, err)
	assert.False(t, m.IsNever())
	assert.Equal(t, "2026-10-19", m.String())
	assert.True(t, m.Equal(MarkerAt(time.Date(2026, 10, 19, 17, 0, 0, 0, time.FixedZone("X", 3600)))))
	assert.False(t, m.Equal(NeverUpdated))
	assert.True(t, NeverUpdated.Equal(Marker{}))

	_, err = ParseMarker("19.10.2026")
	assert.Error(t, err)
}
