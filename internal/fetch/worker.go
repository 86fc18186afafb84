// Package fetch runs the per-entity update cycle: partition the span, fetch
// every sub-window through the session pool, persist what came back and
// advance the marker only when nothing failed.
package fetch

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/metrics"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

const (
	DefaultMaxWindowsPerEntity = 10
	DefaultFetchTimeout        = 2 * time.Minute
)

// CycleResult summarizes one entity cycle.
type CycleResult struct {
	Code     string
	Kind     entity.SpanKind
	Windows  int
	Failed   int
	Records  int
	Dropped  int
	Advanced bool
}

// Worker fetches and persists the history of one entity per Cycle call. A
// single Worker is shared by all concurrent cycles.
type Worker struct {
	repo          entity.Repository
	policy        *entity.UpdatePolicy
	maxWindows    int
	maxWindowDays int
	fetchTimeout  time.Duration
}

type Option func(*Worker)

// WithMaxWindowsPerEntity bounds the concurrent sub-window fetches of one entity.
func WithMaxWindowsPerEntity(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxWindows = n
		}
	}
}

// WithMaxWindowDays splits sub-windows longer than n days.
func WithMaxWindowDays(n int) Option {
	return func(w *Worker) { w.maxWindowDays = n }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.fetchTimeout = d
		}
	}
}

func NewWorker(repo entity.Repository, policy *entity.UpdatePolicy, opts ...Option) *Worker {
	w := &Worker{
		repo:         repo,
		policy:       policy,
		maxWindows:   DefaultMaxWindowsPerEntity,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Policy exposes the clock shared with the discovery stage.
func (w *Worker) Policy() *entity.UpdatePolicy { return w.policy }

// Cycle brings e up to date. Sub-window failures are logged and counted, never
// returned; a failed window is retried on the next run because the marker
// stays where it was.
func (w *Worker) Cycle(ctx context.Context, pool *session.Pool, e entity.TrackedEntity) CycleResult {
	span := w.policy.SpanFor(e)
	windows := scraper.Partition(span, w.maxWindowDays)
	res := CycleResult{Code: e.Code, Kind: span.Kind, Windows: len(windows)}

	log := zap.L().With(zap.String("code", e.Code), zap.Stringer("kind", span.Kind))
	if len(windows) == 0 {
		log.Warn("nothing to fetch", zap.Time("from", span.From), zap.Time("to", span.To))
		return res
	}
	log.Info("entity cycle started", zap.Int("windows", len(windows)))

	var failed, records, dropped atomic.Int64

	// No shared cancellation: one failing window must not stop its siblings.
	var g errgroup.Group
	g.SetLimit(w.maxWindows)
	for _, win := range windows {
		win := win
		g.Go(func() error {
			n, d, err := w.fetchWindow(ctx, pool, e.Code, win)
			records.Add(int64(n))
			dropped.Add(int64(d))
			if err != nil {
				failed.Add(1)
				metrics.WindowsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
				log.Warn("sub-window failed",
					zap.String("from", win.From.Format(entity.DateFormat)),
					zap.String("to", win.To.Format(entity.DateFormat)),
					zap.Error(err),
				)
				return nil
			}
			metrics.WindowsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
			return nil
		})
	}
	_ = g.Wait()

	res.Failed = int(failed.Load())
	res.Records = int(records.Load())
	res.Dropped = int(dropped.Load())

	if res.Failed == 0 && ctx.Err() == nil {
		today := w.policy.Today()
		ok, err := w.repo.UpdateMarker(ctx, e.Code, entity.MarkerAt(today))
		switch {
		case err != nil:
			log.Error("update marker", zap.Error(err))
		case !ok:
			log.Warn("entity vanished before its marker could be advanced")
		default:
			res.Advanced = true
		}
	}

	metrics.CyclesTotal.WithLabelValues(span.Kind.String(), strconv.FormatBool(res.Advanced)).Inc()
	log.Info("entity cycle finished",
		zap.Int("failed", res.Failed),
		zap.Int("records", res.Records),
		zap.Int("dropped", res.Dropped),
		zap.Bool("advanced", res.Advanced),
	)
	return res
}

// fetchWindow returns the number of persisted and dropped records. A non-nil
// error means the window failed and nothing should be assumed about its rows.
func (w *Worker) fetchWindow(ctx context.Context, pool *session.Pool, code string, win scraper.DateRange) (persisted, dropped int, err error) {
	start := time.Now()
	defer func() { metrics.WindowDuration.Observe(time.Since(start).Seconds()) }()

	var cells []string
	err = pool.Do(ctx, func(s scraper.Session) error {
		fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
		defer cancel()
		var ferr error
		cells, ferr = s.FetchRows(fetchCtx, code, win.From, win.To)
		return ferr
	})
	if err != nil {
		return 0, 0, err
	}

	recs, dropped := scraper.NormalizeRows(code, cells)
	for _, rec := range recs {
		if err := w.repo.InsertRecord(ctx, rec); err != nil {
			zap.L().Warn("dropping record",
				zap.String("code", code),
				zap.String("date", rec.TradeDate.Format(entity.DateFormat)),
				zap.Error(err),
			)
			dropped++
			continue
		}
		persisted++
	}
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomePersisted).Add(float64(persisted))
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeDropped).Add(float64(dropped))
	return persisted, dropped, nil
}
