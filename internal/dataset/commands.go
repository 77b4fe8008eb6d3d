package dataset

import (
	"context"
	"fmt"
	"net/http"

	"github.com/heimdex/dsync/internal/remote"
)

// Command is a bulk operation on a set of items.
type Command int

const (
	CommandArchive Command = iota
	CommandRestore
	CommandMoveToNew
	CommandReset
	CommandDelete

	commandCount
)

type itemFilters struct {
	ItemIDs    []ItemID `json:"item_ids"`
	DatasetIDs []int    `json:"dataset_ids"`
}

type filtersBody struct {
	Filters itemFilters `json:"filters"`
}

type datasetItemFilter struct {
	DatasetItemIDs []ItemID `json:"dataset_item_ids"`
}

type filterBody struct {
	Filter datasetItemFilter `json:"filter"`
}

type commandSpec struct {
	name   string
	method string
	path   string // may contain {team} and {slug}
	body   func(ids []ItemID, datasetID int) any
}

func teamScoped(ids []ItemID, datasetID int) any {
	return filtersBody{Filters: itemFilters{ItemIDs: ids, DatasetIDs: []int{datasetID}}}
}

func datasetScoped(ids []ItemID, _ int) any {
	return filterBody{Filter: datasetItemFilter{DatasetItemIDs: ids}}
}

var commandSpecs = [...]commandSpec{
	CommandArchive:   {"archive", http.MethodPost, "/v2/teams/{team}/items/archive", teamScoped},
	CommandRestore:   {"restore", http.MethodPost, "/v2/teams/{team}/items/restore", teamScoped},
	CommandMoveToNew: {"move_to_new", http.MethodPut, "/teams/{team}/datasets/{slug}/items/move_to_new", datasetScoped},
	CommandReset:     {"reset", http.MethodPut, "/teams/{team}/datasets/{slug}/items/reset", datasetScoped},
	CommandDelete:    {"delete", http.MethodDelete, "/teams/{team}/datasets/{slug}/items", datasetScoped},
}

// Every Command has exactly one entry in commandSpecs.
var (
	_ [len(commandSpecs) - int(commandCount)]struct{}
	_ [int(commandCount) - len(commandSpecs)]struct{}
)

func init() {
	for i, spec := range commandSpecs {
		if spec.name == "" || spec.method == "" || spec.path == "" || spec.body == nil {
			panic(fmt.Sprintf("dataset: command %d has no dispatch entry", i))
		}
	}
}

// Commands lists every command in declaration order.
func Commands() []Command {
	out := make([]Command, commandCount)
	for i := range out {
		out[i] = Command(i)
	}
	return out
}

func (c Command) valid() bool {
	return c >= 0 && c < commandCount
}

func (c Command) String() string {
	if !c.valid() {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandSpecs[c].name
}

// ParseCommand resolves a command by its wire name, e.g. "move_to_new".
func ParseCommand(name string) (Command, error) {
	for i, spec := range commandSpecs {
		if spec.name == name {
			return Command(i), nil
		}
	}
	return 0, invalid("command", "unknown command %q", name)
}

// dispatch sends exactly one request for cmd, even when ids is empty.
func (d *RemoteDataset) dispatch(ctx context.Context, cmd Command, ids []ItemID) error {
	if !cmd.valid() {
		return invalid("command", "unknown command %d", int(cmd))
	}
	if ids == nil {
		ids = []ItemID{}
	}
	spec := commandSpecs[cmd]

	d.logger.Info("dispatching item command",
		"command", spec.name,
		"items", len(ids),
	)

	err := d.api.JSON(ctx, remote.Request{
		Method: spec.method,
		Team:   d.team,
		Path:   spec.path,
		Params: map[string]string{"slug": d.slug},
		Body:   spec.body(ids, d.id),
	}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", spec.name, err)
	}
	return nil
}
