package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Repository interface {
	UpsertItems(ctx context.Context, items []*Item) error
	GetItem(ctx context.Context, datasetID int, id int64) (*Item, error)
	ListItems(ctx context.Context, q ItemQuery) ([]*Item, error)
	CountItems(ctx context.Context, datasetID int) (int, error)
	PruneItems(ctx context.Context, datasetID int, keepRunID string) (int64, error)

	CreateRun(ctx context.Context, run *SyncRun) error
	GetRun(ctx context.Context, id string) (*SyncRun, error)
	ListRuns(ctx context.Context, datasetID, limit int) ([]*SyncRun, error)
	ListPendingRuns(ctx context.Context, datasetID int) ([]*SyncRun, error)
	CountActiveRuns(ctx context.Context, datasetID int) (int, error)
	UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateRunProgress(ctx context.Context, id string, itemsSeen, pages int) error
	FinishRun(ctx context.Context, run *SyncRun) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const itemColumns = `id, dataset_id, name, path, status, raw_status, archived, type, priority, slot_count, last_seen_run, synced_at`

// UpsertItems writes items in one transaction.
func (r *SQLiteRepository) UpsertItems(ctx context.Context, items []*Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset_id, id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			status = excluded.status,
			raw_status = excluded.raw_status,
			archived = excluded.archived,
			type = excluded.type,
			priority = excluded.priority,
			slot_count = excluded.slot_count,
			last_seen_run = excluded.last_seen_run,
			synced_at = excluded.synced_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			it.ID, it.DatasetID, it.Name, it.Path, it.Status, nullString(it.RawStatus),
			boolToInt(it.Archived), nullString(it.Type), it.Priority, it.SlotCount,
			nullString(it.LastSeenRun), it.SyncedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("upsert item %d: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetItem(ctx context.Context, datasetID int, id int64) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE dataset_id = ? AND id = ?`, datasetID, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return it, err
}

func (r *SQLiteRepository) ListItems(ctx context.Context, q ItemQuery) ([]*Item, error) {
	var where []string
	var args []any
	if q.DatasetID != 0 {
		where = append(where, "dataset_id = ?")
		args = append(args, q.DatasetID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if q.Path != "" {
		where = append(where, "path = ?")
		args = append(args, q.Path)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY path, name, id LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var it Item
	var rawStatus, itemType, lastSeen sql.NullString
	var archived int
	var syncedAt string

	err := s.Scan(&it.ID, &it.DatasetID, &it.Name, &it.Path, &it.Status, &rawStatus,
		&archived, &itemType, &it.Priority, &it.SlotCount, &lastSeen, &syncedAt)
	if err != nil {
		return nil, err
	}
	it.RawStatus = rawStatus.String
	it.Archived = archived == 1
	it.Type = itemType.String
	it.LastSeenRun = lastSeen.String
	it.SyncedAt, _ = time.Parse(time.RFC3339, syncedAt)
	return &it, nil
}

func (r *SQLiteRepository) CountItems(ctx context.Context, datasetID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE dataset_id = ?", datasetID).Scan(&count)
	return count, err
}

// PruneItems deletes the dataset's items not seen by keepRunID.
func (r *SQLiteRepository) PruneItems(ctx context.Context, datasetID int, keepRunID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM items WHERE dataset_id = ? AND (last_seen_run IS NULL OR last_seen_run != ?)",
		datasetID, keepRunID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const runColumns = `id, dataset_id, status, filters, items_seen, items_pruned, pages, error, started_at, finished_at`

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *SyncRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.DatasetID, run.Status, nullString(run.Filters), run.ItemsSeen, run.ItemsPruned,
		run.Pages, nullString(run.Error), run.StartedAt.UTC().Format(time.RFC3339), nullTime(run.FinishedAt))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*SyncRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, datasetID, limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM sync_runs
		WHERE dataset_id = ? ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, datasetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (r *SQLiteRepository) ListPendingRuns(ctx context.Context, datasetID int) ([]*SyncRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM sync_runs
		WHERE dataset_id = ? AND status = 'pending' ORDER BY started_at ASC, rowid ASC
	`, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// CountActiveRuns counts runs that are pending or running.
func (r *SQLiteRepository) CountActiveRuns(ctx context.Context, datasetID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_runs
		WHERE dataset_id = ? AND status IN ('pending', 'running')
	`, datasetID).Scan(&n)
	return n, err
}

func scanRuns(rows *sql.Rows) ([]*SyncRun, error) {
	var runs []*SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(s scanner) (*SyncRun, error) {
	var run SyncRun
	var filters, errMsg, finishedAt sql.NullString
	var startedAt string

	err := s.Scan(&run.ID, &run.DatasetID, &run.Status, &filters, &run.ItemsSeen, &run.ItemsPruned,
		&run.Pages, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	run.Filters = filters.String
	run.Error = errMsg.String
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, error = ? WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateRunProgress(ctx context.Context, id string, itemsSeen, pages int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs SET items_seen = ?, pages = ? WHERE id = ?
	`, itemsSeen, pages, id)
	return err
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, run *SyncRun) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = ?, items_seen = ?, items_pruned = ?, pages = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.ItemsSeen, run.ItemsPruned, run.Pages, nullString(run.Error), nullTime(run.FinishedAt), run.ID)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
