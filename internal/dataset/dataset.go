// Package dataset is the client-side view of one remote dataset: listing its
// items, running bulk commands on them, pushing local files and requesting
// exports and reports.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/heimdex/dsync/internal/logging"
	"github.com/heimdex/dsync/internal/remote"
	"github.com/heimdex/dsync/internal/upload"
)

const itemsPath = "/v2/teams/{team}/items"

// API is the remote client surface a dataset needs.
type API interface {
	upload.Transport
	Text(ctx context.Context, req remote.Request) (string, error)
	BaseURL() string
}

// Info identifies a remote dataset.
type Info struct {
	Team      string
	Name      string
	Slug      string
	ID        int
	ItemCount int
	Progress  float64
}

// InfoFromRemote builds Info from a dataset listing record.
func InfoFromRemote(team string, d remote.Dataset) Info {
	return Info{
		Team:      team,
		Name:      d.Name,
		Slug:      d.Slug,
		ID:        d.ID,
		ItemCount: d.ItemCount(),
		Progress:  d.Progress,
	}
}

type Config struct {
	API    API
	Info   Info
	Upload upload.Config
	Logger *slog.Logger
}

// RemoteDataset is safe for concurrent use; it holds no mutable state.
type RemoteDataset struct {
	api    API
	info   Info
	team   string
	slug   string
	id     int
	upload upload.Config
	logger *slog.Logger
}

func New(cfg Config) *RemoteDataset {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logging.WithDataset(logger, cfg.Info.Slug, cfg.Info.ID)
	up := cfg.Upload
	if up.Logger == nil {
		up.Logger = logger
	}
	return &RemoteDataset{
		api:    cfg.API,
		info:   cfg.Info,
		team:   cfg.Info.Team,
		slug:   cfg.Info.Slug,
		id:     cfg.Info.ID,
		upload: up,
		logger: logger,
	}
}

func (d *RemoteDataset) Team() string { return d.team }
func (d *RemoteDataset) Slug() string { return d.slug }
func (d *RemoteDataset) ID() int      { return d.id }
func (d *RemoteDataset) Info() Info   { return d.info }

// FetchRemoteFiles returns an iterator over the dataset's items. Filters and
// sort are validated here, so a bad sort fails before any request. No page is
// fetched until the first call to Next.
func (d *RemoteDataset) FetchRemoteFiles(ctx context.Context, filters Filters, sort string) (*ItemIterator, error) {
	q, err := Normalize(filters, sort)
	if err != nil {
		return nil, err
	}
	return newItemIterator(ctx, d.fetchPage, NewCursor(q)), nil
}

func (d *RemoteDataset) fetchPage(ctx context.Context, c Cursor) (remote.ItemsPage, error) {
	var page remote.ItemsPage
	err := d.api.JSON(ctx, remote.Request{
		Method: http.MethodGet,
		Team:   d.team,
		Path:   itemsPath,
		Query:  c.Params(d.id),
	}, &page)
	if err != nil {
		return remote.ItemsPage{}, fmt.Errorf("list items: %w", err)
	}
	return page, nil
}

// Run dispatches cmd for items.
func (d *RemoteDataset) Run(ctx context.Context, cmd Command, items []DatasetItem) error {
	return d.dispatch(ctx, cmd, itemIDs(items))
}

// RunIDs dispatches cmd for raw item ids.
func (d *RemoteDataset) RunIDs(ctx context.Context, cmd Command, ids []ItemID) error {
	return d.dispatch(ctx, cmd, ids)
}

func (d *RemoteDataset) Archive(ctx context.Context, items []DatasetItem) error {
	return d.Run(ctx, CommandArchive, items)
}

func (d *RemoteDataset) RestoreArchived(ctx context.Context, items []DatasetItem) error {
	return d.Run(ctx, CommandRestore, items)
}

func (d *RemoteDataset) MoveToNew(ctx context.Context, items []DatasetItem) error {
	return d.Run(ctx, CommandMoveToNew, items)
}

func (d *RemoteDataset) Reset(ctx context.Context, items []DatasetItem) error {
	return d.Run(ctx, CommandReset, items)
}

func (d *RemoteDataset) DeleteItems(ctx context.Context, items []DatasetItem) error {
	return d.Run(ctx, CommandDelete, items)
}

// ExportOptions describes an export request.
type ExportOptions struct {
	Name               string
	AnnotationClassIDs []int
	IncludeURLToken    bool
	IncludeAuthorship  bool
}

type exportBody struct {
	AnnotationClassIDs []int  `json:"annotation_class_ids"`
	Name               string `json:"name"`
	IncludeExportToken bool   `json:"include_export_token"`
	IncludeAuthorship  bool   `json:"include_authorship"`
}

// Export asks the service to build a named export of the dataset.
func (d *RemoteDataset) Export(ctx context.Context, opts ExportOptions) error {
	if strings.TrimSpace(opts.Name) == "" {
		return invalid("export", "name is required")
	}
	classIDs := opts.AnnotationClassIDs
	if classIDs == nil {
		classIDs = []int{}
	}

	err := d.api.JSON(ctx, remote.Request{
		Method: http.MethodPost,
		Team:   d.team,
		Path:   "/teams/{team}/datasets/{id}/exports",
		Params: map[string]string{"id": strconv.Itoa(d.id)},
		Body: exportBody{
			AnnotationClassIDs: classIDs,
			Name:               opts.Name,
			IncludeExportToken: opts.IncludeURLToken,
			IncludeAuthorship:  opts.IncludeAuthorship,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("export %q: %w", opts.Name, err)
	}
	d.logger.Info("export requested", "name", opts.Name)
	return nil
}

// Granularity is the time bucket of an annotation report.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts day, week and month; empty means day.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GranularityDay, nil
	case GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	default:
		return "", invalid("report", "invalid granularity %q, expected day, week or month", s)
	}
}

// GetReport returns the annotation report as CSV text, verbatim.
func (d *RemoteDataset) GetReport(ctx context.Context, granularity string) (string, error) {
	g, err := ParseGranularity(granularity)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("dataset_ids", strconv.Itoa(d.id))
	q.Set("granularity", string(g))
	q.Set("group_by", "dataset,user")
	q.Set("format", "csv")

	report, err := d.api.Text(ctx, remote.Request{
		Method: http.MethodGet,
		Team:   d.team,
		Path:   "/reports/{team}/annotation",
		Query:  q,
	})
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	return report, nil
}

// WorkviewURLForItem returns the link that opens item in the remote
// annotation UI.
func (d *RemoteDataset) WorkviewURLForItem(item DatasetItem) string {
	return urlJoin(d.api.BaseURL(), fmt.Sprintf("/workview?dataset=%d&item=%d", d.id, item.ID))
}

// urlJoin joins with exactly one slash between the parts.
func urlJoin(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
