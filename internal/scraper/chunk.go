package scraper

import (
	"time"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

type DateRange struct {
	From time.Time
	To   time.Time
}

// Days is the inclusive number of calendar days in the range.
func (r DateRange) Days() int {
	fy, fm, fd := r.From.Date()
	ty, tm, td := r.To.Date()
	from := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from)/(24*time.Hour)) + 1
}

func SplitDateRange(from, to time.Time, chunkDays int) []DateRange {
	if from.After(to) || chunkDays <= 0 {
		return nil
	}

	var chunks []DateRange
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
	}
	return chunks
}

// SplitByYear cuts [from, to] at calendar year boundaries. Every window but
// the first starts on Jan 1 and every window but the last ends on Dec 31.
func SplitByYear(from, to time.Time) []DateRange {
	if from.After(to) {
		return nil
	}

	var chunks []DateRange
	for cur := from; !cur.After(to); {
		end := time.Date(cur.Year(), time.December, 31, 0, 0, 0, 0, cur.Location())
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
		cur = time.Date(cur.Year()+1, time.January, 1, 0, 0, 0, 0, cur.Location())
	}
	return chunks
}

// Partition splits a cycle span into the sub-windows fetched concurrently.
// A backfill gets one window per calendar year; an incremental span stays a
// single window. When maxDays is positive, windows longer than maxDays are
// split further. The windows are disjoint, contiguous and cover the span.
func Partition(span entity.DateSpan, maxDays int) []DateRange {
	var windows []DateRange
	switch span.Kind {
	case entity.Backfill:
		windows = SplitByYear(span.From, span.To)
	default:
		if span.From.After(span.To) {
			return nil
		}
		windows = []DateRange{{From: span.From, To: span.To}}
	}

	if maxDays <= 0 {
		return windows
	}
	out := make([]DateRange, 0, len(windows))
	for _, w := range windows {
		if w.Days() <= maxDays {
			out = append(out, w)
			continue
		}
		out = append(out, SplitDateRange(w.From, w.To, maxDays)...)
	}
	return out
}
