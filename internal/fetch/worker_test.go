package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/platform/sqlite"
	entityrepo "github.com/ahmethakanbesel/mse-harvester/internal/repository/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper/scrapertest"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

var today = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func fixedPolicy() *entity.UpdatePolicy {
	return &entity.UpdatePolicy{
		BackfillYears: entity.DefaultBackfillYears,
		Location:      time.UTC,
		Now:           func() time.Time { return today.Add(15 * time.Hour) },
	}
}

type harness struct {
	repo *entityrepo.Repository
	src  *scrapertest.Source
	pool *session.Pool
}

func setup(t *testing.T, src *scrapertest.Source, poolSize int) *harness {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	pool, err := session.NewPool(context.Background(), src, poolSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.CloseAll() })

	return &harness{repo: entityrepo.NewRepository(db.DB), src: src, pool: pool}
}

func (h *harness) marker(t *testing.T, code string) entity.Marker {
	t.Helper()
	all, err := h.repo.ListEntities(context.Background())
	require.NoError(t, err)
	for _, e := range all {
		if e.Code == code {
			return e.Marker
		}
	}
	t.Fatalf("entity %s not found", code)
	return entity.NeverUpdated
}

func TestCycle_BackfillSuccess(t *testing.T) {
	h := setup(t, &scrapertest.Source{Rows: scrapertest.YearlyRows(3)}, 4)
	ctx := context.Background()
	require.NoError(t, h.repo.UpsertEntity(ctx, "ALK", entity.NeverUpdated))

	w := NewWorker(h.repo, fixedPolicy())
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "ALK", Marker: entity.NeverUpdated})

	assert.Equal(t, entity.Backfill, res.Kind)
	assert.Equal(t, 11, res.Windows)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 33, res.Records)
	assert.Zero(t, res.Dropped)
	assert.True(t, res.Advanced)

	calls := h.src.Calls()
	require.Len(t, calls, 11)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), calls[0].From)
	assert.Equal(t, today, calls[10].To)

	recs, err := h.repo.ListRecordsByCode(ctx, "ALK")
	require.NoError(t, err)
	assert.Len(t, recs, 33)
	assert.Equal(t, "2026-10-19", h.marker(t, "ALK").String())
}

func TestCycle_FailedWindowKeepsMarker(t *testing.T) {
	src := &scrapertest.Source{
		Rows: scrapertest.YearlyRows(3),
		Fail: func(_ string, from, _ time.Time) bool { return from.Year() == 2019 },
	}
	h := setup(t, src, 4)
	ctx := context.Background()
	require.NoError(t, h.repo.UpsertEntity(ctx, "ALK", entity.NeverUpdated))

	w := NewWorker(h.repo, fixedPolicy())
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "ALK", Marker: entity.NeverUpdated})

	assert.Equal(t, 11, res.Windows)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 30, res.Records)
	assert.False(t, res.Advanced)
	assert.True(t, h.marker(t, "ALK").IsNever())

	recs, err := h.repo.ListRecordsByCode(ctx, "ALK")
	require.NoError(t, err)
	assert.Len(t, recs, 30)
	for _, r := range recs {
		assert.NotEqual(t, 2019, r.TradeDate.Year())
	}
}

func TestCycle_Incremental(t *testing.T) {
	h := setup(t, &scrapertest.Source{Rows: scrapertest.YearlyRows(2)}, 2)
	ctx := context.Background()
	marker := entity.MarkerAt(time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, h.repo.UpsertEntity(ctx, "KMB", marker))

	w := NewWorker(h.repo, fixedPolicy())
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "KMB", Marker: marker})

	assert.Equal(t, entity.Incremental, res.Kind)
	assert.Equal(t, 1, res.Windows)
	assert.True(t, res.Advanced)

	calls := h.src.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC), calls[0].From)
	assert.Equal(t, today, calls[0].To)
	assert.Equal(t, "2026-10-19", h.marker(t, "KMB").String())
}

func TestCycle_RerunDoesNotDuplicate(t *testing.T) {
	h := setup(t, &scrapertest.Source{Rows: scrapertest.YearlyRows(2)}, 2)
	ctx := context.Background()
	marker := entity.MarkerAt(today)
	require.NoError(t, h.repo.UpsertEntity(ctx, "KMB", marker))

	w := NewWorker(h.repo, fixedPolicy())
	w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "KMB", Marker: marker})
	w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "KMB", Marker: marker})

	recs, err := h.repo.ListRecordsByCode(ctx, "KMB")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCycle_BoundsWindowsPerEntity(t *testing.T) {
	src := &scrapertest.Source{Rows: scrapertest.YearlyRows(1), Delay: 20 * time.Millisecond}
	h := setup(t, src, 8)
	ctx := context.Background()
	require.NoError(t, h.repo.UpsertEntity(ctx, "ALK", entity.NeverUpdated))

	w := NewWorker(h.repo, fixedPolicy(), WithMaxWindowsPerEntity(3))
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "ALK", Marker: entity.NeverUpdated})

	assert.True(t, res.Advanced)
	assert.LessOrEqual(t, src.PeakConcurrency(), 3)
}

func TestCycle_MaxWindowDaysSplits(t *testing.T) {
	h := setup(t, &scrapertest.Source{}, 4)
	ctx := context.Background()
	marker := entity.MarkerAt(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, h.repo.UpsertEntity(ctx, "TEL", marker))

	w := NewWorker(h.repo, fixedPolicy(), WithMaxWindowDays(10))
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "TEL", Marker: marker})

	// 2026-09-01..2026-10-19 is 49 days.
	assert.Equal(t, 5, res.Windows)
	assert.True(t, res.Advanced)
}

func TestCycle_PersistenceFailureDropsRecords(t *testing.T) {
	h := setup(t, &scrapertest.Source{Rows: scrapertest.YearlyRows(2)}, 2)
	ctx := context.Background()

	// No entity row: every insert violates the foreign key.
	marker := entity.MarkerAt(today)
	w := NewWorker(h.repo, fixedPolicy())
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "GHOST", Marker: marker})

	assert.Zero(t, res.Failed)
	assert.Zero(t, res.Records)
	assert.Equal(t, 1, res.Dropped)
	assert.False(t, res.Advanced)
}

func TestCycle_FetchTimeout(t *testing.T) {
	src := &scrapertest.Source{Rows: scrapertest.YearlyRows(1), Delay: time.Second}
	h := setup(t, src, 2)
	ctx := context.Background()
	marker := entity.MarkerAt(today)
	require.NoError(t, h.repo.UpsertEntity(ctx, "ALK", marker))

	w := NewWorker(h.repo, fixedPolicy(), WithFetchTimeout(20*time.Millisecond))
	res := w.Cycle(ctx, h.pool, entity.TrackedEntity{Code: "ALK", Marker: marker})

	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Advanced)
}
