package dataset

import (
	"fmt"
	"path"
	"strings"

	"github.com/heimdex/dsync/internal/remote"
)

// ItemID is the server-assigned identifier of an item.
type ItemID int64

// Status is the normalized workflow state of an item.
type Status int

const (
	StatusOther Status = iota
	StatusNew
	StatusInProgress
	StatusCompleted
	StatusArchived
)

var statusNames = [...]string{
	StatusOther:      "other",
	StatusNew:        "new",
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusArchived:   "archived",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

// ParseStatus maps a raw server status onto Status. The archived flag wins
// over whatever status the server reports.
func ParseStatus(raw string, archived bool) Status {
	if archived {
		return StatusArchived
	}
	switch strings.ToLower(raw) {
	case "new":
		return StatusNew
	case "annotate", "review", "in_progress":
		return StatusInProgress
	case "complete", "completed":
		return StatusCompleted
	case "archived":
		return StatusArchived
	default:
		return StatusOther
	}
}

// DatasetItem is one remote item as seen by this client.
type DatasetItem struct {
	ID        ItemID        `json:"id"`
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	RawStatus string        `json:"raw_status"`
	Archived  bool          `json:"archived"`
	Path      string        `json:"path"`
	Type      string        `json:"type"`
	DatasetID int           `json:"dataset_id"`
	Priority  int           `json:"priority"`
	Slots     []remote.Slot `json:"slots"`
}

// FullPath is the item's remote folder joined with its name.
func (i DatasetItem) FullPath() string {
	dir := i.Path
	if dir == "" {
		dir = "/"
	}
	return path.Join(dir, i.Name)
}

// ParseItem converts a listing record into a DatasetItem. When the record has
// no type, the first slot's type is used.
func ParseItem(raw remote.Item) DatasetItem {
	itemType := raw.Type
	if itemType == "" && len(raw.Slots) > 0 {
		itemType = raw.Slots[0].Type
	}
	archived := raw.Archived || raw.Status == "archived"
	return DatasetItem{
		ID:        ItemID(raw.ID),
		Name:      raw.Name,
		Status:    ParseStatus(raw.Status, archived),
		RawStatus: raw.Status,
		Archived:  archived,
		Path:      raw.Path,
		Type:      itemType,
		DatasetID: raw.DatasetID,
		Priority:  raw.Priority,
		Slots:     raw.Slots,
	}
}

func itemIDs(items []DatasetItem) []ItemID {
	ids := make([]ItemID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
