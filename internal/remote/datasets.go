package remote

import (
	"context"
	"fmt"
	"net/http"
)

// ListDatasets returns every dataset visible to the team.
func (c *Client) ListDatasets(ctx context.Context, team string) ([]Dataset, error) {
	var datasets []Dataset
	err := c.JSON(ctx, Request{
		Method: http.MethodGet,
		Team:   team,
		Path:   "/teams/{team}/datasets",
	}, &datasets)
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

// GetDataset looks a dataset up by slug. A slug the team does not have
// yields an error matching ErrNotFound.
func (c *Client) GetDataset(ctx context.Context, team, slug string) (*Dataset, error) {
	datasets, err := c.ListDatasets(ctx, team)
	if err != nil {
		return nil, err
	}
	for i := range datasets {
		if datasets[i].Slug == slug {
			return &datasets[i], nil
		}
	}
	return nil, fmt.Errorf("dataset %s/%s: %w", team, slug, ErrNotFound)
}
