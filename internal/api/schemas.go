package api

import (
	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/mirror"
	"github.com/heimdex/dsync/internal/remote"
	"github.com/heimdex/dsync/internal/upload"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State       string           `json:"state"`
	LastError   string           `json:"last_error,omitempty"`
	Dataset     *DatasetResponse `json:"dataset,omitempty"`
	MirrorItems int              `json:"mirror_items"`
	RunsActive  int              `json:"runs_active"`
	LastRun     *mirror.SyncRun  `json:"last_run,omitempty"`
}

type DatasetResponse struct {
	Team      string  `json:"team"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	ID        int     `json:"id"`
	ItemCount int     `json:"item_count"`
	Progress  float64 `json:"progress"`
}

func DatasetToResponse(info dataset.Info) *DatasetResponse {
	return &DatasetResponse{
		Team:      info.Team,
		Name:      info.Name,
		Slug:      info.Slug,
		ID:        info.ID,
		ItemCount: info.ItemCount,
		Progress:  info.Progress,
	}
}

type ItemResponse struct {
	dataset.DatasetItem
	WorkviewURL string `json:"workview_url"`
}

type ItemsResponse struct {
	Items     []ItemResponse `json:"items"`
	Requests  int            `json:"requests"`
	Truncated bool           `json:"truncated"`
}

type CommandRequest struct {
	ItemIDs []dataset.ItemID `json:"item_ids"`
}

type CommandResponse struct {
	Command string `json:"command"`
	Items   int    `json:"items"`
}

type PushRequest struct {
	Paths           []string   `json:"paths"`
	Files           []PushFile `json:"files"`
	Exclude         []string   `json:"exclude,omitempty"`
	Path            string     `json:"path,omitempty"`
	FPS             float64    `json:"fps,omitempty"`
	AsFrames        bool       `json:"as_frames,omitempty"`
	PreserveFolders bool       `json:"preserve_folders,omitempty"`
	Blocking        *bool      `json:"blocking,omitempty"`
	MultiThreaded   *bool      `json:"multi_threaded,omitempty"`
}

// PushFile is a local file with its own upload options.
type PushFile struct {
	LocalPath string  `json:"local_path"`
	Name      string  `json:"name,omitempty"`
	Path      string  `json:"path,omitempty"`
	FPS       float64 `json:"fps,omitempty"`
	AsFrames  bool    `json:"as_frames,omitempty"`
}

type PushResponse struct {
	Files    int                  `json:"files"`
	Blocking bool                 `json:"blocking"`
	Progress upload.Progress      `json:"progress"`
	Blocked  []remote.BlockedItem `json:"blocked,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
}

type ExportRequest struct {
	Name               string `json:"name"`
	AnnotationClassIDs []int  `json:"annotation_class_ids,omitempty"`
	IncludeURLToken    bool   `json:"include_url_token,omitempty"`
	IncludeAuthorship  bool   `json:"include_authorship,omitempty"`
}

type ExportResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

type WorkviewResponse struct {
	ItemID dataset.ItemID `json:"item_id"`
	URL    string         `json:"url"`
}

type MirrorItemsResponse struct {
	Items []*mirror.Item `json:"items"`
	Total int            `json:"total"`
}

type SyncRequest struct {
	Filters map[string]any `json:"filters,omitempty"`
}

type SyncResponse struct {
	RunID string `json:"run_id"`
}

type RunsResponse struct {
	Runs []*mirror.SyncRun `json:"runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func pushResponse(h *upload.Handler, blocking bool) PushResponse {
	resp := PushResponse{
		Files:    h.PendingCount(),
		Blocking: blocking,
		Progress: h.Progress(),
		Blocked:  h.Blocked(),
	}
	for _, e := range h.Errors() {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp
}
