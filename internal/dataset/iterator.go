package dataset

import (
	"context"
	"iter"

	"github.com/heimdex/dsync/internal/remote"
)

type pageFetcher func(ctx context.Context, c Cursor) (remote.ItemsPage, error)

// ItemIterator walks a listing page by page. Each page is fetched only when
// the previous one is consumed, so abandoning the iterator stops requests.
//
//	it, err := ds.FetchRemoteFiles(ctx, filters, "")
//	for it.Next() {
//		item := it.Item()
//	}
//	if err := it.Err(); err != nil { ... }
type ItemIterator struct {
	ctx    context.Context
	fetch  pageFetcher
	cursor Cursor

	page     []remote.Item
	pos      int
	item     DatasetItem
	done     bool
	err      error
	requests int
}

func newItemIterator(ctx context.Context, fetch pageFetcher, c Cursor) *ItemIterator {
	return &ItemIterator{ctx: ctx, fetch: fetch, cursor: c}
}

// Next advances to the next item, fetching a page when needed. It returns
// false at the end of the listing or on error.
func (it *ItemIterator) Next() bool {
	for {
		if it.pos < len(it.page) {
			it.item = ParseItem(it.page[it.pos])
			it.pos++
			return true
		}
		if it.done {
			return false
		}

		page, err := it.fetch(it.ctx, it.cursor)
		it.requests++
		if err != nil {
			it.err = err
			it.done = true
			it.page = nil
			return false
		}

		it.page, it.pos = page.Items, 0
		if token, ok := page.Page.NextToken(); ok {
			it.cursor = it.cursor.WithNext(token)
		} else {
			it.done = true
		}
	}
}

// Item returns the current item.
func (it *ItemIterator) Item() DatasetItem {
	return it.item
}

// Err returns the error that ended iteration, if any. Items yielded before
// the error remain valid.
func (it *ItemIterator) Err() error {
	return it.err
}

// Requests returns the number of page requests issued so far.
func (it *ItemIterator) Requests() int {
	return it.requests
}

// All adapts the iterator to a range-over-func sequence. A failure is yielded
// once as a zero item with a non-nil error.
func (it *ItemIterator) All() iter.Seq2[DatasetItem, error] {
	return func(yield func(DatasetItem, error) bool) {
		for it.Next() {
			if !yield(it.item, nil) {
				return
			}
		}
		if it.err != nil {
			yield(DatasetItem{}, it.err)
		}
	}
}

// Collect drains the iterator.
func (it *ItemIterator) Collect() ([]DatasetItem, error) {
	var items []DatasetItem
	for it.Next() {
		items = append(items, it.item)
	}
	return items, it.err
}
