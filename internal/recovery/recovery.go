// Package recovery removes the partial history left behind by a run that
// stopped before an entity's first backfill completed.
package recovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/metrics"
)

type Service struct {
	repo         entity.Repository
	dropEntities bool
}

type Option func(*Service)

// WithDropEntities also deletes the never-updated entities themselves so the
// next discovery registers them again.
func WithDropEntities(b bool) Option {
	return func(s *Service) { s.dropEntities = b }
}

func NewService(repo entity.Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PurgeIncomplete deletes every record of entities whose marker is still
// NeverUpdated and returns how many records went. Running it twice is safe.
func (s *Service) PurgeIncomplete(ctx context.Context) (int64, error) {
	all, err := s.repo.ListEntities(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "purge: list entities")
	}

	var codes []string
	for _, e := range all {
		if e.Marker.IsNever() {
			codes = append(codes, e.Code)
		}
	}
	if len(codes) == 0 {
		return 0, nil
	}

	n, err := s.repo.DeleteRecordsForCodes(ctx, codes)
	if err != nil {
		return 0, eris.Wrap(err, "purge: delete records")
	}
	metrics.PurgedRecordsTotal.Add(float64(n))

	if s.dropEntities {
		dropped, err := s.repo.DeleteEntitiesWithMarker(ctx, entity.NeverUpdated)
		if err != nil {
			return n, eris.Wrap(err, "purge: delete entities")
		}
		zap.L().Info("dropped incomplete entities", zap.Int64("entities", dropped))
	}

	if n > 0 {
		zap.L().Info("purged incomplete history", zap.Int64("records", n), zap.Int("entities", len(codes)))
	}
	return n, nil
}
