package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/fetch"
	"github.com/ahmethakanbesel/mse-harvester/internal/pipeline"
	"github.com/ahmethakanbesel/mse-harvester/internal/platform/sqlite"
	"github.com/ahmethakanbesel/mse-harvester/internal/recovery"
	entityrepo "github.com/ahmethakanbesel/mse-harvester/internal/repository/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper/scrapertest"
)

func setup(t *testing.T, src *scrapertest.Source) (*Harvester, *entityrepo.Repository) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := entityrepo.NewRepository(db.DB)

	policy := &entity.UpdatePolicy{
		BackfillYears: entity.DefaultBackfillYears,
		Location:      time.UTC,
		Now:           func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	}
	pipe := pipeline.NewPipe(src, 2,
		pipeline.NewCodeDiscoveryFilter(repo, policy),
		pipeline.NewCompanyUpdateFilter(repo, fetch.NewWorker(repo, policy), 10*time.Millisecond),
	)
	return New(pipe, recovery.NewService(repo)), repo
}

func TestRun_PurgesPartialBackfill(t *testing.T) {
	src := &scrapertest.Source{
		Catalog: []string{"ALK"},
		Rows:    scrapertest.YearlyRows(1),
		Fail:    func(_ string, from, _ time.Time) bool { return from.Year() == 2018 },
	}
	h, repo := setup(t, src)

	require.NoError(t, h.Run(context.Background()))

	// The failed year kept ALK never updated, so its partial history is gone.
	recs, err := repo.ListRecordsByCode(context.Background(), "ALK")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRun_KeepsCompletedHistory(t *testing.T) {
	src := &scrapertest.Source{Catalog: []string{"ALK"}, Rows: scrapertest.YearlyRows(1)}
	h, repo := setup(t, src)

	require.NoError(t, h.Run(context.Background()))

	recs, err := repo.ListRecordsByCode(context.Background(), "ALK")
	require.NoError(t, err)
	assert.Len(t, recs, 11)
}

func TestRun_PurgesAfterCancellation(t *testing.T) {
	src := &scrapertest.Source{
		Catalog: []string{"ALK"},
		Rows:    scrapertest.YearlyRows(1),
		Delay:   50 * time.Millisecond,
	}
	h, repo := setup(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	err := h.Run(ctx)
	assert.Error(t, err)

	recs, lerr := repo.ListRecordsByCode(context.Background(), "ALK")
	require.NoError(t, lerr)
	assert.Empty(t, recs)
}
