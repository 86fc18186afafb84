package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

// ErrCatalogUnavailable aborts a run before anything is written.
var ErrCatalogUnavailable = eris.New("entity catalog unavailable")

// CodeDiscoveryFilter reconciles the exchange's listing with the persisted
// entities. New codes are stored as never updated; codes already current as
// of today are left out of the work set.
type CodeDiscoveryFilter struct {
	repo   entity.Repository
	policy *entity.UpdatePolicy
}

func NewCodeDiscoveryFilter(repo entity.Repository, policy *entity.UpdatePolicy) *CodeDiscoveryFilter {
	return &CodeDiscoveryFilter{repo: repo, policy: policy}
}

func (f *CodeDiscoveryFilter) Name() string { return "code-discovery" }

func (f *CodeDiscoveryFilter) Process(ctx context.Context, pool *session.Pool, _ WorkSet) (WorkSet, error) {
	var catalog []string
	err := pool.Do(ctx, func(s scraper.Session) error {
		var err error
		catalog, err = s.FetchCatalogCodes(ctx)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(ErrCatalogUnavailable, "%v", err)
	}

	persisted, err := f.repo.ListEntities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list entities")
	}
	markers := make(map[string]entity.Marker, len(persisted))
	for _, e := range persisted {
		markers[e.Code] = e.Marker
	}

	current := entity.MarkerAt(f.policy.Today())
	work := WorkSet{}
	added := 0
	for _, raw := range catalog {
		code := strings.TrimSpace(raw)
		if code == "" || work.Has(code) {
			continue
		}
		m, known := markers[code]
		if !known {
			if err := f.repo.UpsertEntity(ctx, code, entity.NeverUpdated); err != nil {
				return nil, eris.Wrapf(err, "register %s", code)
			}
			markers[code] = entity.NeverUpdated
			added++
			m = entity.NeverUpdated
		}
		if m.Equal(current) {
			continue
		}
		work[code] = struct{}{}
	}

	zap.L().Info("catalog reconciled",
		zap.Int("catalog", len(catalog)),
		zap.Int("persisted", len(persisted)),
		zap.Int("added", added),
		zap.Int("pending", len(work)),
	)
	return work, nil
}
