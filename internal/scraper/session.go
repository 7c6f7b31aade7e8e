package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/FranksOps/tendril/internal/metrics"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/google/uuid"
)

// ErrNoSnapshot is returned by the extraction methods of a Session that has
// not fetched a page yet.
var ErrNoSnapshot = errors.New("scraper: no page fetched")

// Target is one pending page of a scrape.
type Target struct {
	URL   string
	Depth int
}

// Stats counts what a session has done. Counters only grow.
type Stats struct {
	Visited int // fetch attempts
	Fetched int
	Failed  int
	Saved   int
	Skipped int // targets dropped as already visited or too deep
}

// Session is the state of one scrape run: the visited set, the most recent
// snapshot and statistics. It is not safe for concurrent use.
type Session struct {
	scraper  *Scraper
	runID    string
	visited  map[string]struct{}
	snapshot *Snapshot
	stats    Stats
	logger   *slog.Logger
}

// RunID identifies the run in stored extractions.
func (s *Session) RunID() string { return s.runID }

// Stats returns a copy of the counters.
func (s *Session) Stats() Stats { return s.stats }

// Visited reports whether url has been processed in this session.
func (s *Session) Visited(url string) bool {
	_, ok := s.visited[url]
	return ok
}

// Fetch requests url and, on success, replaces the current snapshot with the
// parsed page. Failures are logged and counted; the previous snapshot stays.
func (s *Session) Fetch(ctx context.Context, url string) bool {
	resp, err := s.scraper.fetcher.Fetch(ctx, url)
	if err != nil {
		s.stats.Failed++
		attrs := []any{"url", url, "error", err}
		var fe *FetchError
		if errors.As(err, &fe) && fe.Detector != "" {
			attrs = append(attrs, "detector", fe.Detector)
		}
		s.logger.Error("error fetching page", attrs...)
		return false
	}

	snap, err := NewSnapshot(url, bytes.NewReader(resp.Body))
	if err != nil {
		s.stats.Failed++
		s.logger.Error("error parsing page", "url", url, "error", err)
		return false
	}

	s.snapshot = snap
	s.stats.Fetched++
	return true
}

func (s *Session) current(op string) (*Snapshot, error) {
	if s.snapshot == nil {
		s.logger.Warn("page not fetched, call Fetch first", "op", op)
		return nil, ErrNoSnapshot
	}
	return s.snapshot, nil
}

// Links returns the absolute http(s) links of the current page.
func (s *Session) Links() ([]string, error) {
	snap, err := s.current("links")
	if err != nil {
		return []string{}, err
	}
	return snap.Links(), nil
}

// Images returns the image sources of the current page.
func (s *Session) Images() ([]string, error) {
	snap, err := s.current("images")
	if err != nil {
		return []string{}, err
	}
	return snap.Images(), nil
}

// Text returns the trimmed text of the first element matching selector.
func (s *Session) Text(selector string) (string, error) {
	snap, err := s.current("text")
	if err != nil {
		return "", err
	}
	return snap.Text(selector), nil
}

// Table returns the records of the first table matching selector.
func (s *Session) Table(selector string) ([]map[string]string, error) {
	snap, err := s.current("table")
	if err != nil {
		return []map[string]string{}, err
	}
	rows := snap.Table(selector)
	if len(rows) == 0 && snap.doc.Find(selector).Length() == 0 {
		s.logger.Warn("no table found", "selector", selector)
	}
	return rows, nil
}

// Metadata returns the meta tags of the current page.
func (s *Session) Metadata() (map[string]string, error) {
	snap, err := s.current("metadata")
	if err != nil {
		return map[string]string{}, err
	}
	return snap.Metadata(), nil
}

// FilterLinks returns the links of the current page containing keyword.
func (s *Session) FilterLinks(keyword string) ([]string, error) {
	snap, err := s.current("filter links")
	if err != nil {
		return []string{}, err
	}
	return snap.FilterLinks(keyword), nil
}

// Scrape visits url at depth and then, depth first, every link it leads to
// up to MaxDepth. Pages are visited in the same order as a recursive descent
// over each page's links; a URL is processed at most once per session.
//
// Fetch failures end only their branch. A failed save aborts the run and is
// returned, as is ctx's error when the run is cancelled.
func (s *Session) Scrape(ctx context.Context, url string, depth int) error {
	cfg := s.scraper.cfg
	stack := []Target{{URL: url, Depth: depth}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.Depth > cfg.MaxDepth || s.Visited(t.URL) {
			s.stats.Skipped++
			metrics.RecordExtraction(metrics.OutcomeSkipped)
			continue
		}
		if cfg.MaxPages > 0 && s.stats.Visited >= cfg.MaxPages {
			s.logger.Info("page limit reached", "max_pages", cfg.MaxPages, "pending", len(stack)+1)
			return nil
		}

		s.visited[t.URL] = struct{}{}
		s.stats.Visited++
		if cfg.OnVisit != nil {
			cfg.OnVisit(t)
		}

		if !s.Fetch(ctx, t.URL) {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}

		links, err := s.save(ctx, t)
		if err != nil {
			return err
		}

		if err := cfg.Pacer.Pause(ctx); err != nil {
			return err
		}

		if t.Depth+1 > cfg.MaxDepth {
			continue
		}
		// Reversed so the first link is popped, and so visited, first.
		for _, link := range slices.Backward(links) {
			stack = append(stack, Target{URL: link, Depth: t.Depth + 1})
		}
	}

	return nil
}

// save persists the extraction of the current snapshot and returns its links.
func (s *Session) save(ctx context.Context, t Target) ([]string, error) {
	snap := s.snapshot
	e := &storage.Extraction{
		ID:        uuid.NewString(),
		RunID:     s.runID,
		Depth:     t.Depth,
		FetchedAt: time.Now().UTC(),
		URL:       t.URL,
		Links:     snap.Links(),
		Images:    snap.Images(),
		Metadata:  snap.Metadata(),
	}

	if backend := s.scraper.cfg.Backend; backend != nil {
		if err := backend.Save(ctx, e); err != nil {
			metrics.RecordExtraction(metrics.OutcomeFailed)
			return nil, fmt.Errorf("save %s: %w", t.URL, err)
		}
		metrics.RecordExtraction(metrics.OutcomeSaved)
		s.stats.Saved++
	}

	s.logger.Info("page scraped", "url", t.URL, "depth", t.Depth, "links", len(e.Links), "images", len(e.Images))
	return e.Links, nil
}
