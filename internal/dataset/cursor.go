package dataset

import (
	"net/url"
	"strconv"
)

// PageSize is the number of items requested per listing page.
const PageSize = 500

// Cursor is the position within a listing. It is a value; WithNext returns a
// new cursor and leaves the receiver unchanged.
type Cursor struct {
	query Query
	next  string
}

func NewCursor(q Query) Cursor {
	return Cursor{query: q}
}

func (c Cursor) WithNext(token string) Cursor {
	c.next = token
	return c
}

// Next returns the continuation token, if any.
func (c Cursor) Next() (string, bool) {
	return c.next, c.next != ""
}

// Params returns the request parameters for the page at this position.
func (c Cursor) Params(datasetID int) url.Values {
	v := c.query.Values()
	v.Set("dataset_ids", strconv.Itoa(datasetID))
	v.Set("page[size]", strconv.Itoa(PageSize))
	if c.next != "" {
		v.Set("page[from]", c.next)
	}
	return v
}
