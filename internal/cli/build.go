package cli

import (
	"context"
	"fmt"

	"github.com/FranksOps/tendril/internal/fingerprint"
	"github.com/FranksOps/tendril/internal/scraper"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/FranksOps/tendril/internal/storage/factory"
	"github.com/FranksOps/tendril/pkg/proxy"
	"github.com/FranksOps/tendril/pkg/useragent"
)

func (a *app) newFetcher() (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(a.cfg.Profile)
	if err != nil {
		return nil, err
	}

	var pool *proxy.Pool
	if a.cfg.ProxyFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(a.cfg.ProxyFile); err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		a.logger.Debug("proxies loaded", "count", pool.Len())
		if profile != fingerprint.ProfileGo {
			a.logger.Warn("TLS profile does not apply to HTTPS through a proxy", "profile", profile)
		}
	}

	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      a.cfg.Timeout,
		MaxRedirects: a.cfg.MaxRedirects,
		UseCookieJar: a.cfg.CookieJar,
		ProxyPool:    pool,
		UAPool:       useragent.NewPool(a.cfg.UserAgents),
		Fingerprint:  profile,
	})
}

// openStore opens the configured stores. maxDepth is the bound of the run
// about to write to them, or 0 when only reading.
func (a *app) openStore(ctx context.Context, maxDepth int) (storage.Backend, error) {
	return factory.Open(ctx, factory.Config{
		Stores:      a.cfg.Stores,
		OutDir:      a.cfg.Out,
		Layout:      a.cfg.Layout,
		MaxDepth:    maxDepth,
		CSVPath:     a.cfg.CSVPath,
		SQLitePath:  a.cfg.SQLitePath,
		PostgresDSN: a.cfg.PostgresDSN,
		RedisAddr:   a.cfg.RedisAddr,
		RedisPrefix: a.cfg.RedisPrefix,
	})
}

// fetchOne fetches a single page in a throwaway session for the extraction
// subcommands.
func (a *app) fetchOne(ctx context.Context, url string) (*scraper.Session, error) {
	fetcher, err := a.newFetcher()
	if err != nil {
		return nil, err
	}

	sess := scraper.New(scraper.Config{}, fetcher, a.logger).NewSession()
	if !sess.Fetch(ctx, url) {
		return nil, fmt.Errorf("could not fetch %s", url)
	}
	return sess, nil
}
