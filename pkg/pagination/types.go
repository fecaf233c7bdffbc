package pagination

import (
	"context"
	"encoding/json"
)

// Identifiable is implemented by every entity shown in a paged list.
// The id de-duplicates items across pages of one pagination run.
type Identifiable interface {
	EntityID() int
}

// PaginationInfo is the paging metadata returned with every list page.
type PaginationInfo struct {
	CurrentPage int `json:"page"`
	TotalPages  int `json:"totalPages"`
}

// HasMore reports whether pages after CurrentPage exist.
func (p PaginationInfo) HasMore() bool {
	return p.CurrentPage < p.TotalPages
}

// UnmarshalJSON defaults missing fields to 1.
func (p *PaginationInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		CurrentPage *int `json:"page"`
		TotalPages  *int `json:"totalPages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.CurrentPage, p.TotalPages = 1, 1
	if raw.CurrentPage != nil {
		p.CurrentPage = *raw.CurrentPage
	}
	if raw.TotalPages != nil {
		p.TotalPages = *raw.TotalPages
	}
	return nil
}

// Page is one fetched list page.
type Page[T any] struct {
	Items      []T
	Pagination PaginationInfo
}

// DataSource fetches one 1-based page of a list.
type DataSource[T any] interface {
	FetchPage(ctx context.Context, page int) (Page[T], error)
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// FetchPage calls f.
func (f DataSourceFunc[T]) FetchPage(ctx context.Context, page int) (Page[T], error) {
	return f(ctx, page)
}

// Cell is one row of the display list: an item or the trailing loading
// sentinel whose appearance asks for the next page.
type Cell[T any] struct {
	item    T
	loading bool
}

// ItemCell wraps v.
func ItemCell[T any](v T) Cell[T] {
	return Cell[T]{item: v}
}

// LoadingCell returns the loading sentinel.
func LoadingCell[T any]() Cell[T] {
	return Cell[T]{loading: true}
}

// IsLoading reports whether c is the loading sentinel.
func (c Cell[T]) IsLoading() bool {
	return c.loading
}

// Item returns the wrapped item; ok is false for the sentinel.
func (c Cell[T]) Item() (item T, ok bool) {
	return c.item, !c.loading
}

// Snapshot is an immutable view of a Pager's state.
type Snapshot[T any] struct {
	// Cells is the display list. Never mutated after publication.
	Cells []Cell[T]

	CurrentPage int
	TotalPages  int

	Loading    bool
	ResetArmed bool
	Visible    bool

	// Failed is set when the most recent fetch failed.
	Failed bool
}

// Items returns the items of the display list without the sentinel.
func (s Snapshot[T]) Items() []T {
	items := make([]T, 0, len(s.Cells))
	for _, c := range s.Cells {
		if item, ok := c.Item(); ok {
			items = append(items, item)
		}
	}
	return items
}

// HasMore reports whether the display list ends with the loading sentinel.
func (s Snapshot[T]) HasMore() bool {
	return len(s.Cells) > 0 && s.Cells[len(s.Cells)-1].IsLoading()
}

// InitialLoadFailed distinguishes a failed first page (nothing to show) from a
// failed load-more (rows stay visible).
func (s Snapshot[T]) InitialLoadFailed() bool {
	return s.Failed && s.CurrentPage == 0 && len(s.Items()) == 0
}
