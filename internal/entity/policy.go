package entity

import "time"

// DefaultBackfillYears is how many calendar years before the current one a
// first backfill reaches back.
const DefaultBackfillYears = 10

// SpanKind distinguishes a first full backfill from a since-last-update fetch.
type SpanKind int

const (
	Backfill SpanKind = iota
	Incremental
)

func (k SpanKind) String() string {
	if k == Backfill {
		return "backfill"
	}
	return "incremental"
}

// DateSpan is the inclusive range of calendar dates one cycle must fetch.
type DateSpan struct {
	Kind SpanKind
	From time.Time
	To   time.Time
}

// UpdatePolicy decides what span an entity needs fetched today.
type UpdatePolicy struct {
	BackfillYears int
	Location      *time.Location
	Now           func() time.Time
}

// NewUpdatePolicy returns a policy reading the wall clock in loc.
func NewUpdatePolicy(loc *time.Location, backfillYears int) *UpdatePolicy {
	if loc == nil {
		loc = time.UTC
	}
	if backfillYears <= 0 {
		backfillYears = DefaultBackfillYears
	}
	return &UpdatePolicy{BackfillYears: backfillYears, Location: loc, Now: time.Now}
}

// Today is the current calendar date at the exchange.
func (p *UpdatePolicy) Today() time.Time {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return Day(p.Now().In(loc))
}

// SpanFor returns [Jan 1 of (year - BackfillYears), today] for an entity that
// was never updated and [marker, today] otherwise.
func (p *UpdatePolicy) SpanFor(e TrackedEntity) DateSpan {
	today := p.Today()
	if e.Marker.IsNever() {
		return DateSpan{
			Kind: Backfill,
			From: time.Date(today.Year()-p.BackfillYears, time.January, 1, 0, 0, 0, 0, today.Location()),
			To:   today,
		}
	}
	y, m, d := e.Marker.Date().Date()
	return DateSpan{
		Kind: Incremental,
		From: time.Date(y, m, d, 0, 0, 0, 0, today.Location()),
		To:   today,
	}
}
