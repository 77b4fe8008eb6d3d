package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/mirror"
)

func mirrorItemsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMirror(w, cfg) {
			return
		}
		q := r.URL.Query()
		limit, ok := parseLimit(q.Get("limit"), defaultItemsLimit, maxItemsLimit)
		if !ok {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}
		offset := 0
		if raw := q.Get("offset"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "offset must be a non-negative integer", "BAD_REQUEST")
				return
			}
			offset = n
		}

		items, err := cfg.Mirror.Items(r.Context(), mirror.ItemQuery{
			Status: q.Get("status"),
			Path:   q.Get("path"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		total, err := cfg.Mirror.CountItems(r.Context())
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if items == nil {
			items = []*mirror.Item{}
		}

		WriteJSON(w, http.StatusOK, MirrorItemsResponse{Items: items, Total: total})
	}
}

func mirrorSyncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMirror(w, cfg) {
			return
		}
		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var filters dataset.Filters
		if len(req.Filters) > 0 {
			filters = dataset.FiltersFromMap(req.Filters)
		}
		run, err := cfg.Mirror.RequestSync(r.Context(), filters)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, SyncResponse{RunID: run.ID})
	}
}

func mirrorRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireMirror(w, cfg) {
			return
		}
		limit, ok := parseLimit(r.URL.Query().Get("limit"), 20, 100)
		if !ok {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}
		runs, err := cfg.Mirror.Runs(r.Context(), limit)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		if runs == nil {
			runs = []*mirror.SyncRun{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}
