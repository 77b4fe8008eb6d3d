package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/dsync/internal/dataset"
)

const (
	defaultItemsLimit = 100
	maxItemsLimit     = 5000
)

// filtersFromQuery turns every query parameter except sort and limit into a
// filter; a repeated parameter becomes a list.
func filtersFromQuery(q url.Values) dataset.Filters {
	filters := dataset.Filters{}
	for key, values := range q {
		if key == "sort" || key == "limit" || len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			filters[key] = dataset.Scalar(values[0])
		} else {
			filters[key] = dataset.List(values...)
		}
	}
	return filters
}

func parseLimit(raw string, def, max int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

func listItemsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		q := r.URL.Query()
		limit, ok := parseLimit(q.Get("limit"), defaultItemsLimit, maxItemsLimit)
		if !ok {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}

		it, err := cfg.Dataset.FetchRemoteFiles(r.Context(), filtersFromQuery(q), q.Get("sort"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		resp := ItemsResponse{Items: []ItemResponse{}}
		for len(resp.Items) < limit {
			if !it.Next() {
				break
			}
			item := it.Item()
			resp.Items = append(resp.Items, ItemResponse{
				DatasetItem: item,
				WorkviewURL: cfg.Dataset.WorkviewURLForItem(item),
			})
		}
		// One more item tells a full last page apart from a cut listing.
		resp.Truncated = len(resp.Items) == limit && it.Next()
		if err := it.Err(); err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		resp.Requests = it.Requests()

		WriteJSON(w, http.StatusOK, resp)
	}
}

func itemCommandHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		cmd, err := dataset.ParseCommand(chi.URLParam(r, "command"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		var req CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Dataset.RunIDs(r.Context(), cmd, req.ItemIDs); err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusOK, CommandResponse{Command: cmd.String(), Items: len(req.ItemIDs)})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		err := cfg.Dataset.Export(r.Context(), dataset.ExportOptions{
			Name:               req.Name,
			AnnotationClassIDs: req.AnnotationClassIDs,
			IncludeURLToken:    req.IncludeURLToken,
			IncludeAuthorship:  req.IncludeAuthorship,
		})
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportResponse{Status: "requested", Name: req.Name})
	}
}

func reportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		report, err := cfg.Dataset.GetReport(r.Context(), r.URL.Query().Get("granularity"))
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(report))
	}
}
