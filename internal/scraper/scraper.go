package scraper

import (
	"context"
	"log/slog"

	"github.com/FranksOps/tendril/internal/storage"
	"github.com/FranksOps/tendril/pkg/httpclient"
	"github.com/FranksOps/tendril/pkg/ratelimit"
	"github.com/google/uuid"
)

// StartDepth is the depth the base URL of a run is scraped at.
const StartDepth = 1

// PageFetcher retrieves one page. *Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*httpclient.Response, error)
}

// Config provides parameters for recursive scrapes.
type Config struct {
	// MaxDepth is the deepest level scraped, inclusive.
	MaxDepth int
	// MaxPages caps fetch attempts per session (0 = unlimited).
	MaxPages int
	// Backend receives one extraction per fetched page. Nil discards them.
	Backend storage.Backend
	// Pacer spaces successive fetches. Nil disables the courtesy pause.
	Pacer *ratelimit.Pacer
	// OnVisit, when set, is called with each target about to be fetched.
	OnVisit func(Target)
}

// Scraper holds what every run shares: the fetcher, the configuration and the
// logger. Per-run state lives in a Session.
type Scraper struct {
	cfg     Config
	fetcher PageFetcher
	logger  *slog.Logger
}

// New creates a Scraper.
func New(cfg Config, fetcher PageFetcher, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{cfg: cfg, fetcher: fetcher, logger: logger}
}

// NewSession starts a run with a fresh run ID and an empty visited set.
func (s *Scraper) NewSession() *Session {
	runID := uuid.NewString()
	return &Session{
		scraper: s,
		runID:   runID,
		visited: make(map[string]struct{}),
		logger:  s.logger.With("run_id", runID),
	}
}

// Run scrapes baseURL and everything reachable from it within MaxDepth in a
// new session, which is returned for its statistics.
func (s *Scraper) Run(ctx context.Context, baseURL string) (*Session, error) {
	sess := s.NewSession()
	return sess, sess.Scrape(ctx, baseURL, StartDepth)
}
