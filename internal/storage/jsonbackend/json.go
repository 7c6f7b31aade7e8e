package jsonbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/FranksOps/tendril/internal/export"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/google/uuid"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// Layout decides how extractions map onto files in the output directory.
type Layout string

const (
	// LayoutOverwrite keeps one object per depth; each page replaces the
	// previous one at the same depth.
	LayoutOverwrite Layout = "overwrite"
	// LayoutDepth keeps an array per depth holding every page of this run.
	LayoutDepth Layout = "depth"
	// LayoutURL writes one object per page.
	LayoutURL Layout = "url"
)

const filePrefix = "scraped_data_"

// ParseLayout validates a layout name. The empty string selects LayoutDepth.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutDepth, nil
	case LayoutOverwrite, LayoutDepth, LayoutURL:
		return l, nil
	default:
		return "", fmt.Errorf("unknown json layout %q", s)
	}
}

type jsonBackend struct {
	mu      sync.Mutex
	dir     string
	layout  Layout
	byDepth map[int][]*storage.Extraction
}

// New creates a file-backed storage.Backend writing into dir, creating it if
// needed. Under LayoutDepth the per-depth arrays start empty, so files from an
// earlier run are replaced rather than extended.
//
// A positive maxDepth marks the start of a run bounded by it: output files
// deeper than maxDepth are removed, and under LayoutDepth every per-depth file
// is, so queries only see this run's pages. Readers pass 0.
func New(dir string, layout Layout, maxDepth int) (storage.Backend, error) {
	if layout == "" {
		layout = LayoutDepth
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if maxDepth > 0 {
		if err := prune(dir, layout, maxDepth); err != nil {
			return nil, err
		}
	}
	return &jsonBackend{
		dir:     dir,
		layout:  layout,
		byDepth: make(map[int][]*storage.Extraction),
	}, nil
}

// DepthFile is the file LayoutOverwrite and LayoutDepth use for depth.
func DepthFile(dir string, depth int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d.json", filePrefix, depth))
}

// PageFile is the file LayoutURL uses for a page. The name embeds a
// name-based UUID of the URL so it is stable across runs.
func PageFile(dir string, depth int, rawURL string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL))
	return filepath.Join(dir, fmt.Sprintf("%s%d_%s.json", filePrefix, depth, id))
}

func prune(dir string, layout Layout, maxDepth int) error {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.json"))
	if err != nil {
		return fmt.Errorf("list output files: %w", err)
	}
	for _, p := range paths {
		depth, ok := depthFromName(filepath.Base(p))
		if !ok {
			continue
		}
		stale := depth > maxDepth || (layout == LayoutDepth && p == DepthFile(dir, depth))
		if !stale {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale %s: %w", p, err)
		}
	}
	return nil
}

func (b *jsonBackend) Save(ctx context.Context, e *storage.Extraction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.layout {
	case LayoutOverwrite:
		return export.WriteJSON(DepthFile(b.dir, e.Depth), e)
	case LayoutURL:
		return export.WriteJSON(PageFile(b.dir, e.Depth, e.URL), e)
	default:
		page := append(b.byDepth[e.Depth], e)
		if err := export.WriteJSON(DepthFile(b.dir, e.Depth), page); err != nil {
			return err
		}
		b.byDepth[e.Depth] = page
		return nil
	}
}

// Query reads every scraped_data_* file in the directory, whatever layout
// wrote it. Files carry no run id or fetch time, so RunID is not filtered on
// and file modification time orders the results. Pages sharing a file are
// returned last-written first.
func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Extraction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(b.dir, filePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("list output files: %w", err)
	}

	filter.RunID = ""
	var matched []*storage.Extraction
	for _, p := range paths {
		depth, ok := depthFromName(filepath.Base(p))
		if !ok {
			continue
		}
		if filter.Depth != nil && depth != *filter.Depth {
			continue
		}

		pages, err := readPages(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		slices.Reverse(pages)
		for _, e := range pages {
			e.Depth = depth
			e.FetchedAt = info.ModTime()
			if filter.Matches(e) {
				matched = append(matched, e)
			}
		}
	}

	return filter.Window(matched), nil
}

func (b *jsonBackend) Close() error { return nil }

func depthFromName(name string) (int, bool) {
	var depth int
	if _, err := fmt.Sscanf(name, filePrefix+"%d", &depth); err != nil {
		return 0, false
	}
	return depth, true
}

// readPages decodes a file holding either one extraction or an array of them.
func readPages(path string) ([]*storage.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var pages []*storage.Extraction
		if err := json.Unmarshal(trimmed, &pages); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return pages, nil
	}

	var page storage.Extraction
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []*storage.Extraction{&page}, nil
}
