package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Runner executes queued sync runs and queues a full sync every
// syncInterval. A zero syncInterval disables the periodic sync.
type Runner struct {
	service      *Service
	repo         Repository
	logger       *slog.Logger
	pollInterval time.Duration
	syncInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(service *Service, repo Repository, syncInterval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		service:      service,
		repo:         repo,
		logger:       logger,
		pollInterval: 5 * time.Second,
		syncInterval: syncInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("sync runner started", "sync_interval", r.syncInterval.String())

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sync runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if r.paused.Load() {
		return
	}
	r.scheduleIfDue(ctx)
	r.processNextRun(ctx)
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("sync runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("sync runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// scheduleIfDue queues a full sync when the latest run is older than
// syncInterval, or when there has never been one.
func (r *Runner) scheduleIfDue(ctx context.Context) {
	if r.syncInterval <= 0 {
		return
	}
	runs, err := r.repo.ListRuns(ctx, r.service.DatasetID(), 1)
	if err != nil {
		r.logger.Error("failed to list sync runs", "error", err)
		return
	}
	if len(runs) > 0 {
		last := runs[0]
		if last.Status == RunStatusPending || last.Status == RunStatusRunning {
			return
		}
		if time.Since(last.StartedAt) < r.syncInterval {
			return
		}
	}
	if _, err := r.service.RequestSync(ctx, nil); err != nil && !errors.Is(err, ErrSyncInProgress) {
		r.logger.Error("failed to queue periodic sync", "error", err)
	}
}

func (r *Runner) processNextRun(ctx context.Context) {
	runs, err := r.repo.ListPendingRuns(ctx, r.service.DatasetID())
	if err != nil {
		r.logger.Error("failed to list pending sync runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	run := runs[0]
	r.logger.Info("processing sync run", "run_id", run.ID)
	if err := r.service.ExecuteSync(ctx, run); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return
		}
		r.logger.Error("sync run failed", "run_id", run.ID, "error", err)
	}
}

// ActiveRunCount returns the number of runs currently executing.
func (r *Runner) ActiveRunCount(ctx context.Context) int {
	runs, err := r.repo.ListRuns(ctx, r.service.DatasetID(), 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, run := range runs {
		if run.Status == RunStatusRunning {
			count++
		}
	}
	return count
}
