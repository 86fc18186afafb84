// Package server exposes the harvester's health, Prometheus metrics and the
// persisted entities over HTTP.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

type Server struct {
	srv *http.Server
}

// New creates a server. Requests inherit baseCtx so a shutdown also cancels
// slow store queries.
func New(baseCtx context.Context, addr string, entitySvc *entity.Service) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    addr,
			Handler: newMux(entitySvc),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start blocks serving until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	zap.L().Info("starting ops server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("shutting down ops server")
	return s.srv.Shutdown(ctx)
}
