// Package harvest runs one complete harvest: purge, pipeline, purge.
package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/pipeline"
	"github.com/ahmethakanbesel/mse-harvester/internal/recovery"
)

const purgeTimeout = 30 * time.Second

type Harvester struct {
	pipe     *pipeline.Pipe
	recovery *recovery.Service
}

func New(pipe *pipeline.Pipe, rec *recovery.Service) *Harvester {
	return &Harvester{pipe: pipe, recovery: rec}
}

// Run purges leftovers of an interrupted run, runs the pipeline and purges
// again. The closing purge uses a context detached from ctx so it still
// happens after a shutdown signal.
func (h *Harvester) Run(ctx context.Context) error {
	if _, err := h.recovery.PurgeIncomplete(ctx); err != nil {
		return eris.Wrap(err, "startup purge")
	}

	updated, runErr := h.pipe.Run(ctx)
	if runErr == nil {
		zap.L().Info("harvest finished", zap.Strings("updated", updated.Codes()))
	}

	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), purgeTimeout)
	defer cancel()
	if _, err := h.recovery.PurgeIncomplete(purgeCtx); err != nil {
		return errors.Join(runErr, eris.Wrap(err, "closing purge"))
	}
	return runErr
}
