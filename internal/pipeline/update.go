package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/fetch"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

const DefaultPollInterval = 2 * time.Second

// CompanyUpdateFilter runs one fetch cycle per persisted entity in the work
// set, at most pool.Size() at a time, then closes the pool.
type CompanyUpdateFilter struct {
	repo         entity.Repository
	worker       *fetch.Worker
	pollInterval time.Duration
}

func NewCompanyUpdateFilter(repo entity.Repository, worker *fetch.Worker, pollInterval time.Duration) *CompanyUpdateFilter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &CompanyUpdateFilter{repo: repo, worker: worker, pollInterval: pollInterval}
}

func (f *CompanyUpdateFilter) Name() string { return "company-update" }

// Process returns the codes whose marker advanced.
func (f *CompanyUpdateFilter) Process(ctx context.Context, pool *session.Pool, work WorkSet) (WorkSet, error) {
	defer func() {
		if err := pool.CloseAll(); err != nil {
			zap.L().Warn("close session pool", zap.Error(err))
		}
	}()

	entities, err := f.waitForEntities(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		advanced = WorkSet{}
		failed   int
	)

	var g errgroup.Group
	g.SetLimit(pool.Size())
	for _, e := range entities {
		if !work.Has(e.Code) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		e := e
		g.Go(func() error {
			res := f.worker.Cycle(ctx, pool, e)
			mu.Lock()
			defer mu.Unlock()
			if res.Advanced {
				advanced[e.Code] = struct{}{}
			} else {
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("entity updates finished", zap.Int("advanced", len(advanced)), zap.Int("pending", failed))
	if err := ctx.Err(); err != nil {
		return advanced, fmt.Errorf("update entities: %w", err)
	}
	return advanced, nil
}

// waitForEntities polls the store until it answers or ctx ends.
func (f *CompanyUpdateFilter) waitForEntities(ctx context.Context) ([]entity.TrackedEntity, error) {
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		entities, err := f.repo.ListEntities(ctx)
		if err == nil {
			return entities, nil
		}
		zap.L().Warn("store not ready, retrying", zap.Duration("in", f.pollInterval), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("list entities: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
