package entity

import (
	"strings"
	"time"

	"github.com/ahmethakanbesel/mse-harvester/internal/apperror"
)

// RecordsRequest selects the persisted history of one entity. Zero From or To
// leaves that side open.
type RecordsRequest struct {
	Code string
	From time.Time
	To   time.Time
}

func (r *RecordsRequest) Validate() *apperror.AppError {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	if r.Code == "" {
		return apperror.New(apperror.BadRequest, "code is required")
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return apperror.New(apperror.BadRequest, "from cannot be after to")
	}
	return nil
}
