// Package scrapertest provides an in-memory scraper.Source for tests.
package scrapertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
)

// Call records one FetchRows invocation.
type Call struct {
	Session string
	Code    string
	From    time.Time
	To      time.Time
}

// Source is a fake remote exchange. Rows returns the cells served for a
// window; Fail selects windows that time out. Both may be nil.
type Source struct {
	Catalog    []string
	CatalogErr error
	OpenErr    error
	Rows       func(code string, from, to time.Time) []string
	Fail       func(code string, from, to time.Time) bool
	Delay      time.Duration

	mu       sync.Mutex
	calls    []Call
	opened   int
	closed   int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (s *Source) OpenSession(_ context.Context) (scraper.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened++
	return &session{src: s, id: fmt.Sprintf("fake-%d", s.opened)}, nil
}

// Calls returns the recorded fetches ordered by code and window start.
func (s *Source) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Call(nil), s.calls...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].From.Before(out[j].From)
	})
	return out
}

// Reset forgets recorded calls.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Source) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Source) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PeakConcurrency is the highest number of simultaneous FetchRows calls seen.
func (s *Source) PeakConcurrency() int { return int(s.peak.Load()) }

type session struct {
	src    *Source
	id     string
	closed bool
}

func (ss *session) ID() string { return ss.id }

func (ss *session) FetchCatalogCodes(_ context.Context) ([]string, error) {
	if ss.src.CatalogErr != nil {
		return nil, ss.src.CatalogErr
	}
	return append([]string(nil), ss.src.Catalog...), nil
}

func (ss *session) FetchRows(ctx context.Context, code string, from, to time.Time) ([]string, error) {
	s := ss.src
	s.mu.Lock()
	s.calls = append(s.calls, Call{Session: ss.id, Code: code, From: from, To: to})
	s.mu.Unlock()

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, eris.Wrap(scraper.ErrTimeout, ctx.Err().Error())
		}
	}
	if s.Fail != nil && s.Fail(code, from, to) {
		return nil, eris.Wrapf(scraper.ErrTimeout, "result table for %s", code)
	}
	if s.Rows == nil {
		return nil, nil
	}
	return s.Rows(code, from, to), nil
}

func (ss *session) Close() error {
	ss.src.mu.Lock()
	defer ss.src.mu.Unlock()
	if ss.closed {
		return eris.Errorf("session %s closed twice", ss.id)
	}
	ss.closed = true
	ss.src.closed++
	return nil
}

// YearlyRows serves perDay synthetic trading days at the start of every
// window, formatted the way the exchange renders them.
func YearlyRows(perDay int) func(code string, from, to time.Time) []string {
	return func(_ string, from, to time.Time) []string {
		var cells []string
		for i := 0; i < perDay; i++ {
			d := from.AddDate(0, 0, i)
			if d.After(to) {
				break
			}
			cells = append(cells,
				d.Format(scraper.TradeDateLayout),
				"1.234,56", "1.240,00", "1.220,00", "1.230,10",
				"0,45", "150", "184.515,00", "184.515,00",
			)
		}
		return cells
	}
}
