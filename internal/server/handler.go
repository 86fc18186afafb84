package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ahmethakanbesel/mse-harvester/internal/apperror"
	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

type handler struct {
	entitySvc *entity.Service
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.entitySvc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entities == nil {
		entities = []entity.TrackedEntity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

func (h *handler) getRecords(w http.ResponseWriter, r *http.Request) {
	req := entity.RecordsRequest{Code: r.PathValue("code")}

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if req.From, err = time.Parse(entity.DateFormat, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from format, expected YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if req.To, err = time.Parse(entity.DateFormat, v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to format, expected YYYY-MM-DD")
			return
		}
	}

	records, err := h.entitySvc.Records(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, records)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperror.From(err)
	if ae.Code() == apperror.Internal {
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, ae.HTTPStatus(), ae.Message())
}
