package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/mirror"
	"github.com/heimdex/dsync/internal/remote"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/items", listItemsHandler(cfg))
		r.Post("/items/{command}", itemCommandHandler(cfg))
		r.Get("/workview/{item_id}", workviewHandler(cfg))
		r.Post("/exports", exportHandler(cfg))
		r.Get("/report", reportHandler(cfg))

		// Push reads from the local filesystem.
		r.With(LoopbackGuard()).Post("/push", pushHandler(cfg))

		r.Get("/mirror/items", mirrorItemsHandler(cfg))
		r.Post("/mirror/sync", mirrorSyncHandler(cfg))
		r.Get("/mirror/runs", mirrorRunsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		resp := StatusResponse{State: state}
		if cfg.Dataset != nil {
			resp.Dataset = DatasetToResponse(cfg.Dataset.Info())
		}

		if cfg.Mirror != nil {
			resp.MirrorItems, _ = cfg.Mirror.CountItems(ctx)
			if cfg.Mirror.IsSyncing() {
				resp.State = "syncing"
				resp.RunsActive = 1
			}
			if runs, err := cfg.Mirror.Runs(ctx, 1); err == nil && len(runs) > 0 {
				resp.LastRun = runs[0]
				if runs[0].Status == mirror.RunStatusFailed {
					resp.LastError = runs[0].Error
				}
			}
		}

		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func workviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
		if err != nil || id <= 0 {
			WriteError(w, http.StatusBadRequest, "item id must be a positive integer", "BAD_REQUEST")
			return
		}
		item := dataset.DatasetItem{ID: dataset.ItemID(id)}
		WriteJSON(w, http.StatusOK, WorkviewResponse{
			ItemID: item.ID,
			URL:    cfg.Dataset.WorkviewURLForItem(item),
		})
	}
}

func requireDataset(w http.ResponseWriter, cfg ServerConfig) bool {
	if cfg.Dataset == nil {
		WriteError(w, http.StatusServiceUnavailable, "remote dataset not configured", "UNAVAILABLE")
		return false
	}
	return true
}

func requireMirror(w http.ResponseWriter, cfg ServerConfig) bool {
	if cfg.Mirror == nil {
		WriteError(w, http.StatusServiceUnavailable, "local mirror not configured", "UNAVAILABLE")
		return false
	}
	return true
}

// writeServiceError maps dataset, remote and mirror errors to responses.
func writeServiceError(w http.ResponseWriter, cfg ServerConfig, err error) {
	var verr *dataset.ValidationError
	var apiErr *remote.APIError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, verr.Error(), "BAD_REQUEST")
	case errors.Is(err, mirror.ErrSyncInProgress):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, remote.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &apiErr):
		cfg.Logger.Warn("remote request failed", "status", apiErr.StatusCode, "error", err)
		WriteError(w, http.StatusBadGateway, err.Error(), "REMOTE_ERROR")
	default:
		cfg.Logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
