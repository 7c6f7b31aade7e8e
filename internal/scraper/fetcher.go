package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/tendril/internal/bypass"
	"github.com/FranksOps/tendril/internal/fingerprint"
	"github.com/FranksOps/tendril/internal/metrics"
	"github.com/FranksOps/tendril/pkg/httpclient"
	"github.com/FranksOps/tendril/pkg/proxy"
	"github.com/FranksOps/tendril/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures how pages are requested.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	// TLSConfig supplies trust roots for HTTPS, whichever profile is used.
	TLSConfig *tls.Config
}

// FetchError describes a failed page request. Detector names the
// bot-protection vendor whose challenge was returned, if one was recognized.
type FetchError struct {
	URL        string
	StatusCode int
	Detector   string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Detector != "" {
		return fmt.Sprintf("fetch %s: %v (challenged by %s)", e.URL, e.Err, e.Detector)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher performs single page GETs with a random user agent, optional proxy
// rotation and an optional TLS fingerprint.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
// By holding a single client across requests, cookie jars (if configured) persist for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}

	// The transport is built once; a proxy chosen per request travels in
	// the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}
	if tr, ok := transport.(*http.Transport); ok && cfg.TLSConfig != nil {
		tr.TLSClientConfig = cfg.TLSConfig
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch GETs targetURL. Transport failures and non-2xx responses come back
// as a *FetchError; the response is returned alongside when one was read.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*httpclient.Response, error) {
	domain := ""
	if u, err := url.Parse(targetURL); err == nil {
		domain = u.Hostname()
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
		if activeProxy != nil {
			ctx = context.WithValue(ctx, proxyKey, activeProxy)
		}
	}

	header := http.Header{}
	header.Set("User-Agent", f.config.UAPool.Pick())
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.5")

	start := time.Now()
	resp, err := f.client.Get(ctx, targetURL, header)

	var statusErr *httpclient.StatusError
	switch {
	case err == nil:
		f.markProxy(activeProxy, true)
		metrics.RecordFetch(domain, metrics.OutcomeOK, "", resp.Duration, len(resp.Body))
		return resp, nil

	case errors.As(err, &statusErr):
		f.markProxy(activeProxy, true)
		detector := bypass.Detect(statusErr.Response)
		metrics.RecordFetch(domain, metrics.OutcomeStatus, detector, statusErr.Response.Duration, len(statusErr.Response.Body))
		return resp, &FetchError{
			URL:        targetURL,
			StatusCode: statusErr.Response.StatusCode,
			Detector:   detector,
			Err:        err,
		}

	default:
		f.markProxy(activeProxy, false)
		metrics.RecordFetch(domain, metrics.OutcomeError, "", time.Since(start), 0)
		return nil, &FetchError{URL: targetURL, Err: err}
	}
}

func (f *Fetcher) markProxy(u *url.URL, ok bool) {
	if u == nil {
		return
	}
	if ok {
		_ = f.config.ProxyPool.MarkSuccess(u)
		return
	}
	_ = f.config.ProxyPool.MarkFailure(u)
	metrics.ProxyFailures.WithLabelValues(u.Redacted()).Inc()
}
