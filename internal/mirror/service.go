// Package mirror keeps a local SQLite copy of a remote dataset's item listing.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heimdex/dsync/internal/dataset"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// ItemSource is the remote listing a mirror follows.
type ItemSource interface {
	ID() int
	FetchRemoteFiles(ctx context.Context, filters dataset.Filters, sort string) (*dataset.ItemIterator, error)
}

type Service struct {
	repo    Repository
	source  ItemSource
	logger  *slog.Logger
	syncing atomic.Bool
	now     func() time.Time
}

func NewService(repo Repository, source ItemSource, logger *slog.Logger) *Service {
	return &Service{repo: repo, source: source, logger: logger, now: time.Now}
}

func (s *Service) DatasetID() int {
	return s.source.ID()
}

// RequestSync queues a sync run. Filters are validated immediately; a run with
// no filters also prunes items the remote no longer lists. It returns
// ErrSyncInProgress while another run is pending or running.
func (s *Service) RequestSync(ctx context.Context, filters dataset.Filters) (*SyncRun, error) {
	if _, err := dataset.Normalize(filters, ""); err != nil {
		return nil, err
	}
	active, err := s.repo.CountActiveRuns(ctx, s.source.ID())
	if err != nil {
		return nil, fmt.Errorf("count active runs: %w", err)
	}
	if active > 0 {
		return nil, ErrSyncInProgress
	}
	encoded, err := encodeFilters(filters)
	if err != nil {
		return nil, err
	}

	run := &SyncRun{
		ID:        NewID(),
		DatasetID: s.source.ID(),
		Status:    RunStatusPending,
		Filters:   encoded,
		StartedAt: s.now(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("sync run queued", "run_id", run.ID, "filtered", encoded != "")
	}
	return run, nil
}

// ExecuteSync consumes the remote listing for run and upserts every item,
// one transaction per page.
func (s *Service) ExecuteSync(ctx context.Context, run *SyncRun) error {
	if !s.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	if err := s.repo.UpdateRunStatus(ctx, run.ID, RunStatusRunning, ""); err != nil {
		return s.fail(ctx, run, fmt.Errorf("mark run running: %w", err))
	}
	run.Status = RunStatusRunning

	filters, err := decodeFilters(run.Filters)
	if err != nil {
		return s.fail(ctx, run, err)
	}

	if s.logger != nil {
		s.logger.Info("starting sync", "run_id", run.ID, "dataset_id", run.DatasetID)
	}

	it, err := s.source.FetchRemoteFiles(ctx, filters, "")
	if err != nil {
		return s.fail(ctx, run, err)
	}

	batch := make([]*Item, 0, dataset.PageSize)
	flush := func() error {
		if err := s.repo.UpsertItems(ctx, batch); err != nil {
			return err
		}
		run.ItemsSeen += len(batch)
		run.Pages = it.Requests()
		batch = batch[:0]
		return s.repo.UpdateRunProgress(ctx, run.ID, run.ItemsSeen, run.Pages)
	}

	for it.Next() {
		item := itemFromDataset(it.Item(), run.ID, s.now())
		if item.DatasetID == 0 {
			item.DatasetID = run.DatasetID
		}
		batch = append(batch, item)
		if len(batch) == dataset.PageSize {
			if err := flush(); err != nil {
				return s.fail(ctx, run, err)
			}
		}
	}
	if err := it.Err(); err != nil {
		if ferr := flush(); ferr != nil && s.logger != nil {
			s.logger.Error("failed to store partial page", "run_id", run.ID, "error", ferr)
		}
		return s.fail(ctx, run, err)
	}
	if err := flush(); err != nil {
		return s.fail(ctx, run, err)
	}

	if len(filters) == 0 {
		pruned, err := s.repo.PruneItems(ctx, run.DatasetID, run.ID)
		if err != nil {
			return s.fail(ctx, run, err)
		}
		run.ItemsPruned = int(pruned)
	}

	finished := s.now()
	run.Status = RunStatusCompleted
	run.FinishedAt = &finished
	if err := s.repo.FinishRun(ctx, run); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("sync completed",
			"run_id", run.ID,
			"items_seen", run.ItemsSeen,
			"items_pruned", run.ItemsPruned,
			"pages", run.Pages,
		)
	}
	return nil
}

// Sync queues and runs a sync in one call.
func (s *Service) Sync(ctx context.Context, filters dataset.Filters) (*SyncRun, error) {
	run, err := s.RequestSync(ctx, filters)
	if err != nil {
		return nil, err
	}
	if err := s.ExecuteSync(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

func (s *Service) IsSyncing() bool {
	return s.syncing.Load()
}

func (s *Service) fail(ctx context.Context, run *SyncRun, cause error) error {
	finished := s.now()
	run.Status = RunStatusFailed
	run.Error = cause.Error()
	run.FinishedAt = &finished
	// The run context may be the cancelled one.
	if err := s.repo.FinishRun(context.WithoutCancel(ctx), run); err != nil && s.logger != nil {
		s.logger.Error("failed to record sync failure", "run_id", run.ID, "error", err)
	}
	if s.logger != nil {
		s.logger.Error("sync failed", "run_id", run.ID, "items_seen", run.ItemsSeen, "error", cause)
	}
	return fmt.Errorf("sync %s: %w", run.ID, cause)
}

func (s *Service) Items(ctx context.Context, q ItemQuery) ([]*Item, error) {
	q.DatasetID = s.source.ID()
	return s.repo.ListItems(ctx, q)
}

func (s *Service) CountItems(ctx context.Context) (int, error) {
	return s.repo.CountItems(ctx, s.source.ID())
}

func (s *Service) Runs(ctx context.Context, limit int) ([]*SyncRun, error) {
	return s.repo.ListRuns(ctx, s.source.ID(), limit)
}

func (s *Service) GetRun(ctx context.Context, id string) (*SyncRun, error) {
	return s.repo.GetRun(ctx, id)
}

// encodeFilters stores lists as JSON arrays and scalars as strings.
func encodeFilters(filters dataset.Filters) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	m := make(map[string]any, len(filters))
	for k, v := range filters {
		if v.IsList() {
			m[k] = v.Values()
		} else {
			m[k] = v.String()
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	return string(b), nil
}

func decodeFilters(s string) (dataset.Filters, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	return dataset.FiltersFromMap(m), nil
}
