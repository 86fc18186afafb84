package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the storage layout for calendar dates.
const DateFormat = "2006-01-02"

// Marker records how far an entity's history has been persisted. The zero
// value is the "never updated" sentinel.
type Marker struct {
	date time.Time
}

// NeverUpdated is the marker of an entity whose first backfill has not
// completed yet.
var NeverUpdated = Marker{}

// MarkerAt returns a marker for the calendar date of t.
func MarkerAt(t time.Time) Marker {
	return Marker{date: Day(t)}
}

// ParseMarker is the inverse of Marker.String.
func ParseMarker(s string) (Marker, error) {
	if s == "" {
		return NeverUpdated, nil
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return NeverUpdated, err
	}
	return Marker{date: t}, nil
}

func (m Marker) IsNever() bool { return m.date.IsZero() }

// Date returns the marker date; it is the zero time for NeverUpdated.
func (m Marker) Date() time.Time { return m.date }

// Equal reports whether both markers point at the same calendar date.
func (m Marker) Equal(o Marker) bool {
	if m.IsNever() || o.IsNever() {
		return m.IsNever() && o.IsNever()
	}
	y1, m1, d1 := m.date.Date()
	y2, m2, d2 := o.date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// String formats the marker for storage; NeverUpdated is the empty string.
func (m Marker) String() string {
	if m.IsNever() {
		return ""
	}
	return m.date.Format(DateFormat)
}

func (m Marker) MarshalText() ([]byte, error) {
	if m.IsNever() {
		return []byte("never"), nil
	}
	return []byte(m.String()), nil
}

// TrackedEntity is a tradable instrument the harvester keeps up to date.
type TrackedEntity struct {
	Code   string `json:"code"`
	Marker Marker `json:"updateMarker"`
}

// HistoricalRecord is one trading day of one entity. Every numeric field is
// nullable because the exchange leaves cells empty on days without trades.
type HistoricalRecord struct {
	Code                string              `json:"code"`
	TradeDate           time.Time           `json:"tradeDate"`
	LastTradePrice      decimal.NullDecimal `json:"lastTradePrice"`
	MaxPrice            decimal.NullDecimal `json:"maxPrice"`
	MinPrice            decimal.NullDecimal `json:"minPrice"`
	AvgPrice            decimal.NullDecimal `json:"avgPrice"`
	PercentChange       decimal.NullDecimal `json:"percentChange"`
	Volume              decimal.NullDecimal `json:"volume"`
	TurnoverBestDenars  decimal.NullDecimal `json:"turnoverBestDenars"`
	TotalTurnoverDenars decimal.NullDecimal `json:"totalTurnoverDenars"`
}

// Day truncates t to midnight of its calendar date, keeping the location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
