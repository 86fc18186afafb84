package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/config"
	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/fetch"
	"github.com/ahmethakanbesel/mse-harvester/internal/harvest"
	"github.com/ahmethakanbesel/mse-harvester/internal/pipeline"
	"github.com/ahmethakanbesel/mse-harvester/internal/recovery"
	"github.com/ahmethakanbesel/mse-harvester/internal/schedule"
	"github.com/ahmethakanbesel/mse-harvester/internal/scraper/mse"
	"github.com/ahmethakanbesel/mse-harvester/internal/server"
)

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Cancelled on SIGINT/SIGTERM; the harvester still purges on a detached
	// context before returning.
	rootCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	policy := entity.NewUpdatePolicy(loc, cfg.Fetch.BackfillYears)

	src := mse.New(
		mse.WithBaseURL(cfg.Scraper.BaseURL),
		mse.WithHeadless(cfg.Scraper.Headless),
		mse.WithStepTimeout(cfg.Scraper.StepTimeout),
		mse.WithRate(cfg.Scraper.RatePerSec),
	)
	worker := fetch.NewWorker(repo, policy,
		fetch.WithMaxWindowsPerEntity(cfg.Fetch.MaxWindowsPerEntity),
		fetch.WithMaxWindowDays(cfg.Fetch.MaxWindowDays),
		fetch.WithFetchTimeout(cfg.Fetch.Timeout),
	)
	pipe := pipeline.NewPipe(src, cfg.Pool.Size,
		pipeline.NewCodeDiscoveryFilter(repo, policy),
		pipeline.NewCompanyUpdateFilter(repo, worker, cfg.Pipeline.PollInterval),
	)
	harvester := harvest.New(pipe, recovery.NewService(repo, recovery.WithDropEntities(cfg.Recovery.DropEntities)))

	var srv *server.Server
	if cfg.Server.Addr != "" {
		srv = server.New(rootCtx, cfg.Server.Addr, entity.NewService(repo))
		go func() {
			if err := srv.Start(); err != nil {
				zap.L().Error("ops server error", zap.Error(err))
				stop()
			}
		}()
	}

	runErr := schedule.NewRunner(harvester, cfg.Schedule.Interval).Run(rootCtx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("shutdown error", zap.Error(err))
		}
	}

	if rootCtx.Err() != nil && ctx.Err() == nil {
		zap.L().Info("stopped by signal")
		if errors.Is(runErr, context.Canceled) {
			return nil
		}
	}
	return runErr
}
