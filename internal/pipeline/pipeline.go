// Package pipeline wires the harvester's stages. A Pipe owns the session pool
// of one run and hands the work set from filter to filter.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

// WorkSet is the set of entity codes a stage operates on.
type WorkSet map[string]struct{}

func NewWorkSet(codes ...string) WorkSet {
	ws := make(WorkSet, len(codes))
	for _, c := range codes {
		ws[c] = struct{}{}
	}
	return ws
}

func (ws WorkSet) Has(code string) bool {
	_, ok := ws[code]
	return ok
}

// Codes returns the members in ascending order.
func (ws WorkSet) Codes() []string {
	out := make([]string, 0, len(ws))
	for c := range ws {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Filter is one pipeline stage.
type Filter interface {
	Name() string
	Process(ctx context.Context, pool *session.Pool, work WorkSet) (WorkSet, error)
}

// Pipe runs its filters strictly in order.
type Pipe struct {
	src      scraper.Source
	poolSize int
	filters  []Filter
}

func NewPipe(src scraper.Source, poolSize int, filters ...Filter) *Pipe {
	return &Pipe{src: src, poolSize: poolSize, filters: filters}
}

// Run opens a fresh pool, feeds each filter the previous filter's output and
// closes the pool whatever happens. It returns the last filter's output.
func (p *Pipe) Run(ctx context.Context) (WorkSet, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run", runID))
	start := time.Now()

	pool, err := session.NewPool(ctx, p.src, p.poolSize)
	if err != nil {
		return nil, eris.Wrap(err, "open session pool")
	}
	defer func() {
		if err := pool.CloseAll(); err != nil {
			log.Warn("close session pool", zap.Error(err))
		}
	}()

	log.Info("pipeline started", zap.Int("stages", len(p.filters)), zap.Int("sessions", pool.Size()))

	work := WorkSet{}
	for _, f := range p.filters {
		stageStart := time.Now()
		out, err := f.Process(ctx, pool, work)
		if err != nil {
			log.Error("stage failed", zap.String("stage", f.Name()), zap.Error(err))
			return nil, eris.Wrapf(err, "stage %s", f.Name())
		}
		log.Info("stage finished",
			zap.String("stage", f.Name()),
			zap.Int("in", len(work)),
			zap.Int("out", len(out)),
			zap.Duration("took", time.Since(stageStart)),
		)
		work = out
	}

	log.Info("pipeline finished", zap.Int("result", len(work)), zap.Duration("took", time.Since(start)))
	return work, nil
}
