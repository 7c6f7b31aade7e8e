package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when reporting on a proxy the pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

// endpoint is one proxy plus its health bookkeeping.
type endpoint struct {
	url       *url.URL
	failures  int
	benchedTo time.Time
}

// Pool rotates requests over a list of proxies round-robin, benching a proxy
// for a cooldown once it accumulates MaxFailures consecutive failures.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before benching a proxy (default 3).
	MaxFailures int
	// Cooldown is how long a benched proxy sits out (default 5m).
	Cooldown time.Duration
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds one proxy per line from path. Blank lines and lines starting
// with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()

	var raws []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read proxy file: %w", err)
	}
	return p.Add(raws...)
}

// Add parses proxy URLs and appends them. A missing scheme defaults to http.
func (p *Pool) Add(raws ...string) error {
	parsed := make([]*endpoint, 0, len(raws))
	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		parsed = append(parsed, &endpoint{url: u})
	}

	p.mu.Lock()
	p.endpoints = append(p.endpoints, parsed...)
	p.mu.Unlock()
	return nil
}

// Len reports how many proxies the pool holds, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next proxy that is not benched, or nil when the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.endpoints {
		ep := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if ep.benchedTo.IsZero() {
			return ep.url
		}
		if now.After(ep.benchedTo) {
			ep.benchedTo = time.Time{}
			ep.failures = 0
			return ep.url
		}
	}
	return nil
}

// MarkSuccess clears the failure streak of u.
func (p *Pool) MarkSuccess(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep := p.find(u)
	if ep == nil {
		return ErrUnknownProxy
	}
	ep.failures = 0
	return nil
}

// MarkFailure extends the failure streak of u and benches it once the streak
// reaches the configured maximum.
func (p *Pool) MarkFailure(u *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep := p.find(u)
	if ep == nil {
		return ErrUnknownProxy
	}
	ep.failures++
	if ep.failures >= p.maxFailures {
		ep.benchedTo = p.now().Add(p.cooldown)
	}
	return nil
}

// find must be called with p.mu held.
func (p *Pool) find(u *url.URL) *endpoint {
	if u == nil {
		return nil
	}
	key := u.String()
	for _, ep := range p.endpoints {
		if ep.url.String() == key {
			return ep
		}
	}
	return nil
}
