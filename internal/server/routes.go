package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(entitySvc *entity.Service) http.Handler {
	return newMux(entitySvc)
}

func newMux(entitySvc *entity.Service) http.Handler {
	h := &handler{entitySvc: entitySvc}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/entities", h.listEntities)
	mux.HandleFunc("GET /api/v1/entities/{code}/records", h.getRecords)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
