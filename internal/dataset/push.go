package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/heimdex/dsync/internal/files"
	"github.com/heimdex/dsync/internal/upload"
)

// PushOptions configures Push. Path, FPS and AsFrames apply to scanned paths
// only and may not be combined with upload.LocalFile sources.
type PushOptions struct {
	Blocking        bool
	MultiThreaded   bool
	Exclude         []string
	FPS             float64
	AsFrames        bool
	Path            string
	PreserveFolders bool
	Progress        upload.ProgressCallback
	FileUpload      upload.FileUploadCallback
}

func DefaultPushOptions() PushOptions {
	return PushOptions{Blocking: true, MultiThreaded: true}
}

func (o PushOptions) hasFileOptions() bool {
	return o.Path != "" || o.FPS != 0 || o.AsFrames
}

// Push resolves sources into local files and uploads them. In blocking mode
// the upload runs to completion before Push returns; otherwise the handler is
// only prepared and the caller runs Upload.
func (d *RemoteDataset) Push(ctx context.Context, sources []upload.Source, opts PushOptions) (*upload.Handler, error) {
	if sources == nil {
		return nil, invalid("push", "no files given")
	}

	var locals []upload.LocalFile
	var roots []string
	for _, src := range sources {
		switch s := src.(type) {
		case upload.LocalFile:
			locals = append(locals, s)
		case upload.Path:
			roots = append(roots, string(s))
		default:
			return nil, invalid("push", "unsupported source %T", src)
		}
	}
	if len(locals) > 0 && opts.hasFileOptions() {
		return nil, invalid("push", "path, fps and as_frames cannot be combined with local file references")
	}

	if len(roots) > 0 {
		found, err := files.FindFiles(roots, opts.Exclude)
		if err != nil {
			var unsupported *files.UnsupportedFileError
			if errors.As(err, &unsupported) {
				return nil, invalid("push", "%v", err)
			}
			return nil, fmt.Errorf("push: %w", err)
		}
		for _, f := range found {
			lf := upload.LocalFile{LocalPath: f, Path: opts.Path, FPS: opts.FPS, AsFrames: opts.AsFrames}
			if opts.PreserveFolders {
				lf.Path = relativeFolder(f, roots, opts.Path)
			}
			locals = append(locals, lf)
		}
	}

	if len(locals) == 0 {
		return nil, invalid("push", "no files to upload")
	}

	handler := upload.NewHandler(d.api, d, locals, d.upload)
	if !opts.Blocking {
		if err := handler.Prepare(); err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
		d.logger.Info("push prepared", "files", handler.PendingCount())
		return handler, nil
	}

	if err := handler.Upload(ctx, opts.MultiThreaded, opts.Progress, opts.FileUpload); err != nil {
		return handler, fmt.Errorf("push: %w", err)
	}
	return handler, nil
}

// relativeFolder returns file's directory relative to the first root that
// contains it, as an absolute remote path. A file under no root keeps
// fallback.
func relativeFolder(file string, roots []string, fallback string) string {
	absFile, err := filepath.Abs(file)
	if err != nil {
		return fallback
	}
	dir := filepath.Dir(absFile)
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil || !files.IsRelativeTo(dir, absRoot) {
			continue
		}
		rel, err := filepath.Rel(absRoot, dir)
		if err != nil || rel == "." {
			return "/"
		}
		return "/" + filepath.ToSlash(rel)
	}
	return fallback
}
