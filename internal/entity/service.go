package entity

import (
	"context"
	"fmt"

	"github.com/ahmethakanbesel/mse-harvester/internal/apperror"
)

// Service answers read queries for the ops endpoint.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]TrackedEntity, error) {
	return s.repo.ListEntities(ctx)
}

// Records returns the entity's history inside the requested range. Unknown
// codes are a NotFound AppError.
func (s *Service) Records(ctx context.Context, req RecordsRequest) ([]HistoricalRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	all, err := s.repo.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, e := range all {
		if e.Code == req.Code {
			known = true
			break
		}
	}
	if !known {
		return nil, apperror.New(apperror.NotFound, fmt.Sprintf("entity %s not found", req.Code))
	}

	recs, err := s.repo.ListRecordsByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	out := make([]HistoricalRecord, 0, len(recs))
	for _, r := range recs {
		d := Day(r.TradeDate)
		if !req.From.IsZero() && d.Before(Day(req.From)) {
			continue
		}
		if !req.To.IsZero() && d.After(Day(req.To)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
