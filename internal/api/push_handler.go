package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/heimdex/dsync/internal/dataset"
	"github.com/heimdex/dsync/internal/upload"
)

func (req PushRequest) sources() []upload.Source {
	var sources []upload.Source
	for _, p := range req.Paths {
		sources = append(sources, upload.Path(p))
	}
	for _, f := range req.Files {
		sources = append(sources, upload.LocalFile{
			LocalPath: f.LocalPath,
			Name:      f.Name,
			Path:      f.Path,
			FPS:       f.FPS,
			AsFrames:  f.AsFrames,
		})
	}
	return sources
}

func (req PushRequest) options() dataset.PushOptions {
	opts := dataset.DefaultPushOptions()
	if req.Blocking != nil {
		opts.Blocking = *req.Blocking
	}
	if req.MultiThreaded != nil {
		opts.MultiThreaded = *req.MultiThreaded
	}
	opts.Exclude = req.Exclude
	opts.Path = req.Path
	opts.FPS = req.FPS
	opts.AsFrames = req.AsFrames
	opts.PreserveFolders = req.PreserveFolders
	return opts
}

func pushHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireDataset(w, cfg) {
			return
		}
		var req PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		opts := req.options()
		h, err := cfg.Dataset.Push(r.Context(), req.sources(), opts)
		if err != nil {
			writeServiceError(w, cfg, err)
			return
		}

		if opts.Blocking {
			WriteJSON(w, http.StatusOK, pushResponse(h, true))
			return
		}

		resp := pushResponse(h, false)
		ctx := cfg.BaseContext
		if ctx == nil {
			ctx = context.Background()
		}
		go func() {
			if err := h.Upload(ctx, opts.MultiThreaded, nil, nil); err != nil {
				cfg.Logger.Warn("background upload stopped", "error", err)
				return
			}
			if err := h.Err(); err != nil {
				cfg.Logger.Warn("background upload finished with failures", "error", err)
			}
		}()
		WriteJSON(w, http.StatusAccepted, resp)
	}
}
