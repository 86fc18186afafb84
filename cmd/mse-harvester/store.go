package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/config"
	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/platform/postgres"
	"github.com/ahmethakanbesel/mse-harvester/internal/platform/sqlite"
	entityrepo "github.com/ahmethakanbesel/mse-harvester/internal/repository/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/session"
)

// openStore returns the configured repository and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config) (entity.Repository, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		// One connection per concurrent fetch worker plus headroom for the
		// ops endpoint.
		conns := cfg.Pool.Size
		if conns <= 0 {
			conns = session.DefaultSize()
		}
		pool, err := postgres.Open(ctx, cfg.Store.DSN, int32(conns+4)) //nolint:gosec // bounded by session.MaxSize
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("store opened", zap.String("driver", "postgres"))
		return entityrepo.NewPostgresRepository(pool), pool.Close, nil

	case "sqlite", "":
		db, err := sqlite.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("store opened", zap.String("driver", "sqlite"), zap.String("path", cfg.Store.DSN))
		return entityrepo.NewRepository(db.DB), func() { _ = db.Close() }, nil

	default:
		return nil, nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
