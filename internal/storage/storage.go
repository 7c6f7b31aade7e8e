package storage

import (
	"context"
	"sort"
	"time"
)

// Extraction is the record built from one fetched page. Its JSON form is
// exactly {url, links, images, metadata}; the bookkeeping fields are kept by
// backends that have a column for them.
type Extraction struct {
	ID        string    `json:"-"`
	RunID     string    `json:"-"`
	Depth     int       `json:"-"`
	FetchedAt time.Time `json:"-"`

	URL      string            `json:"url"`
	Links    []string          `json:"links"`
	Images   []string          `json:"images"`
	Metadata map[string]string `json:"metadata"`
}

// Filter selects stored extractions. Zero fields match everything.
type Filter struct {
	URL    string
	RunID  string
	Depth  *int
	Limit  int
	Offset int
}

// Backend stores and queries extractions.
type Backend interface {
	Save(ctx context.Context, e *Extraction) error
	// Query returns matches newest first.
	Query(ctx context.Context, filter Filter) ([]*Extraction, error)
	Close() error
}

// Matches reports whether e satisfies the field predicates of f. Limit and
// Offset are applied separately by Window.
func (f Filter) Matches(e *Extraction) bool {
	if f.URL != "" && e.URL != f.URL {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Depth != nil && e.Depth != *f.Depth {
		return false
	}
	return true
}

// Window sorts matches newest first and applies Offset and Limit. Backends
// without a query engine filter in memory and finish with Window.
func (f Filter) Window(all []*Extraction) []*Extraction {
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].FetchedAt.After(all[j].FetchedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return []*Extraction{}
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all
}

// DepthOf is a helper for building Filter.Depth.
func DepthOf(d int) *int { return &d }
