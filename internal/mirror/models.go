package mirror

import (
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/dsync/internal/dataset"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Item is the local copy of one remote item.
type Item struct {
	ID          int64     `json:"id"`
	DatasetID   int       `json:"dataset_id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Status      string    `json:"status"`
	RawStatus   string    `json:"raw_status,omitempty"`
	Archived    bool      `json:"archived"`
	Type        string    `json:"type,omitempty"`
	Priority    int       `json:"priority"`
	SlotCount   int       `json:"slot_count"`
	LastSeenRun string    `json:"last_seen_run,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

func itemFromDataset(it dataset.DatasetItem, runID string, now time.Time) *Item {
	p := it.Path
	if p == "" {
		p = "/"
	}
	return &Item{
		ID:          int64(it.ID),
		DatasetID:   it.DatasetID,
		Name:        it.Name,
		Path:        p,
		Status:      it.Status.String(),
		RawStatus:   it.RawStatus,
		Archived:    it.Archived,
		Type:        it.Type,
		Priority:    it.Priority,
		SlotCount:   len(it.Slots),
		LastSeenRun: runID,
		SyncedAt:    now,
	}
}

// SyncRun records one pass over the remote listing.
type SyncRun struct {
	ID          string     `json:"id"`
	DatasetID   int        `json:"dataset_id"`
	Status      string     `json:"status"`
	Filters     string     `json:"filters,omitempty"`
	ItemsSeen   int        `json:"items_seen"`
	ItemsPruned int        `json:"items_pruned"`
	Pages       int        `json:"pages"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ItemQuery selects mirrored items. Zero fields match everything.
type ItemQuery struct {
	DatasetID int
	Status    string
	Path      string
	Limit     int
	Offset    int
}

func NewID() string {
	return uuid.NewString()
}
