// Package upload registers local files with the remote dataset service and
// transfers their bytes to pre-signed storage URLs.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	"github.com/heimdex/dsync/internal/remote"
)

const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second

	registerPath = "/v2/teams/{team}/items/register_upload"
	uploadsPath  = "/v2/teams/{team}/items/uploads/{upload_id}"
)

// ErrNotRegistered marks a file the service neither accepted nor blocked.
var ErrNotRegistered = errors.New("file missing from register response")

// Transport is the subset of the remote client the handler needs.
type Transport interface {
	JSON(ctx context.Context, req remote.Request, out any) error
	PutObject(ctx context.Context, signedURL string, body io.Reader, size int64) error
}

// Target names the dataset files are uploaded into.
type Target interface {
	Team() string
	Slug() string
}

type Config struct {
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Progress is a snapshot of a running upload.
type Progress struct {
	Total      int   `json:"total"`
	Completed  int   `json:"completed"`
	Failed     int   `json:"failed"`
	Blocked    int   `json:"blocked"`
	BytesTotal int64 `json:"bytes_total"`
	BytesSent  int64 `json:"bytes_sent"`
}

// FileProgress reports bytes sent for one file.
type FileProgress struct {
	Name  string
	Sent  int64
	Total int64
}

type ProgressCallback func(Progress)
type FileUploadCallback func(FileProgress)

// FileError records a file that could not be uploaded.
type FileError struct {
	File LocalFile
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.File.LocalPath, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

type pendingFile struct {
	file LocalFile
	size int64
}

type job struct {
	pendingFile
	uploadID string
}

// Handler owns one batch of files. Prepare resolves it locally; Upload
// performs the transfer.
type Handler struct {
	transport Transport
	target    Target
	files     []LocalFile
	workers   int
	attempts  int
	delay     time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	prepared bool
	pending  []pendingFile
	blocked  []remote.BlockedItem
	errs     []*FileError
	progress Progress

	cbMu sync.Mutex
}

func NewHandler(transport Transport, target Target, files []LocalFile, cfg Config) *Handler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := cfg.RetryDelay
	if delay < 0 {
		delay = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		transport: transport,
		target:    target,
		files:     files,
		workers:   workers,
		attempts:  attempts,
		delay:     delay,
		logger:    logger,
	}
}

// Files returns the resolved batch.
func (h *Handler) Files() []LocalFile {
	return h.files
}

// Prepare stats every file and computes the batch totals. It never touches
// the network and is idempotent.
func (h *Handler) Prepare() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.prepared {
		return nil
	}

	pending := make([]pendingFile, 0, len(h.files))
	seen := make(map[string]string, len(h.files))
	var total int64
	for _, f := range h.files {
		info, err := os.Stat(f.LocalPath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", f.LocalPath, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", f.LocalPath)
		}
		if prev, ok := seen[f.key()]; ok {
			return fmt.Errorf("%s and %s both upload to %s", prev, f.LocalPath, f.key())
		}
		seen[f.key()] = f.LocalPath
		pending = append(pending, pendingFile{file: f, size: info.Size()})
		total += info.Size()
	}

	h.pending = pending
	h.progress = Progress{Total: len(pending), BytesTotal: total}
	h.prepared = true
	return nil
}

// PendingCount returns the number of files prepared for upload.
func (h *Handler) PendingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

func (h *Handler) Progress() Progress {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.progress
}

// Errors returns the files that failed after all attempts.
func (h *Handler) Errors() []*FileError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*FileError(nil), h.errs...)
}

// Blocked returns the items the service refused to register.
func (h *Handler) Blocked() []remote.BlockedItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]remote.BlockedItem(nil), h.blocked...)
}

// Upload registers the batch and transfers every accepted file. With
// multiThreaded false files go one at a time. Per-file failures are collected
// in Errors; the returned error covers registration and cancellation only.
// Callbacks are serialized but may run on worker goroutines.
func (h *Handler) Upload(ctx context.Context, multiThreaded bool, onProgress ProgressCallback, onFile FileUploadCallback) error {
	if err := h.Prepare(); err != nil {
		return err
	}

	h.mu.Lock()
	pending := h.pending
	h.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	jobs, err := h.register(ctx, pending)
	if err != nil {
		return err
	}
	h.report(onProgress)

	workers := 1
	if multiThreaded {
		workers = h.workers
	}

	h.logger.Info("starting upload",
		"team", h.target.Team(),
		"dataset", h.target.Slug(),
		"files", len(jobs),
		"size", units.HumanSize(float64(h.Progress().BytesTotal)),
		"workers", workers,
	)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := h.uploadWithRetry(ctx, j, onFile)
			h.finish(j, err)
			h.report(onProgress)
			return nil
		})
	}
	_ = g.Wait()

	p := h.Progress()
	h.logger.Info("upload finished",
		"dataset", h.target.Slug(),
		"completed", p.Completed,
		"failed", p.Failed,
		"blocked", p.Blocked,
		"sent", units.HumanSize(float64(p.BytesSent)),
	)
	return ctx.Err()
}

func (h *Handler) register(ctx context.Context, pending []pendingFile) ([]job, error) {
	items := make([]remote.UploadItem, 0, len(pending))
	byKey := make(map[string]pendingFile, len(pending))
	for _, p := range pending {
		items = append(items, remote.UploadItem{
			Name: p.file.RemoteName(),
			Path: p.file.RemotePath(),
			Slots: []remote.UploadSlot{{
				SlotName: "0",
				FileName: p.file.RemoteName(),
				FPS:      p.file.FPS,
				AsFrames: p.file.AsFrames,
			}},
		})
		byKey[p.file.key()] = p
	}

	var resp remote.RegisterUploadResponse
	err := h.transport.JSON(ctx, remote.Request{
		Method: http.MethodPost,
		Team:   h.target.Team(),
		Path:   registerPath,
		Body:   remote.RegisterUploadRequest{DatasetSlug: h.target.Slug(), Items: items},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register upload: %w", err)
	}

	jobs := make([]job, 0, len(resp.Items))
	accounted := make(map[string]bool, len(pending))
	for _, item := range resp.Items {
		key := registrationKey(item.Path, item.Name)
		p, ok := byKey[key]
		if !ok || len(item.Slots) == 0 || accounted[key] {
			h.logger.Warn("registered item does not match a local file", "name", item.Name, "path", item.Path)
			continue
		}
		accounted[key] = true
		jobs = append(jobs, job{pendingFile: p, uploadID: item.Slots[0].UploadID})
	}
	for _, b := range resp.BlockedItems {
		accounted[registrationKey(b.Path, b.Name)] = true
		h.logger.Warn("item blocked by remote", "name", b.Name, "path", b.Path, "reason", b.Reason)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocked = append(h.blocked, resp.BlockedItems...)
	h.progress.Blocked = len(h.blocked)
	for _, p := range pending {
		if accounted[p.file.key()] {
			continue
		}
		h.errs = append(h.errs, &FileError{File: p.file, Err: ErrNotRegistered})
		h.progress.Failed++
		h.logger.Error("file not registered", "file", p.file.LocalPath, "name", p.file.RemoteName(), "path", p.file.RemotePath())
	}
	return jobs, nil
}

func (h *Handler) uploadWithRetry(ctx context.Context, j job, onFile FileUploadCallback) error {
	var err error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		err = h.uploadOne(ctx, j, onFile)
		if err == nil || !remote.IsRetryable(err) || attempt == h.attempts {
			return err
		}

		h.logger.Warn("upload attempt failed, retrying",
			"file", j.file.RemoteName(),
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.delay * time.Duration(attempt)):
		}
	}
	return err
}

func (h *Handler) uploadOne(ctx context.Context, j job, onFile FileUploadCallback) error {
	params := map[string]string{"upload_id": j.uploadID}

	var signed remote.SignedUpload
	if err := h.transport.JSON(ctx, remote.Request{
		Method: http.MethodGet,
		Team:   h.target.Team(),
		Path:   uploadsPath + "/sign",
		Params: params,
	}, &signed); err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	f, err := os.Open(j.file.LocalPath)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	body := &countingReader{r: f, onRead: func(sent int64) {
		if onFile == nil {
			return
		}
		h.cbMu.Lock()
		defer h.cbMu.Unlock()
		onFile(FileProgress{Name: j.file.RemoteName(), Sent: sent, Total: j.size})
	}}
	if err := h.transport.PutObject(ctx, signed.UploadURL, body, j.size); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	if err := h.transport.JSON(ctx, remote.Request{
		Method: http.MethodPost,
		Team:   h.target.Team(),
		Path:   uploadsPath + "/confirm",
		Params: params,
	}, nil); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	return nil
}

func (h *Handler) finish(j job, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.errs = append(h.errs, &FileError{File: j.file, Err: err})
		h.progress.Failed++
		h.logger.Error("upload failed", "file", j.file.LocalPath, "upload_id", j.uploadID, "error", err)
		return
	}
	h.progress.Completed++
	h.progress.BytesSent += j.size
	h.logger.Debug("file uploaded",
		"file", j.file.RemoteName(),
		"size", units.HumanSize(float64(j.size)),
		"upload_id", j.uploadID,
	)
}

func (h *Handler) report(cb ProgressCallback) {
	if cb == nil {
		return
	}
	p := h.Progress()
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	cb(p)
}

// Err joins every per-file error, or returns nil.
func (h *Handler) Err() error {
	errs := h.Errors()
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

type countingReader struct {
	r      io.Reader
	sent   int64
	onRead func(int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		c.onRead(c.sent)
	}
	return n, err
}
