package useragent

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// DefaultPool is the fixed set of browser User-Agents requests are sent with
// when no override is configured.
var DefaultPool = []string{
	// Chrome Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36",
	// Firefox Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Gecko/20100101 Firefox/60.0",
	// Chrome Mac
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.132 Safari/537.36",
	// Chrome Android
	"Mozilla/5.0 (Linux; Android 10; Pixel 3 XL) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.119 Mobile Safari/537.36",
}

// Pool is an immutable set of User-Agents. Pick is the default selection
// strategy; Next cycles through the pool deterministically.
type Pool struct {
	agents []string
	cursor atomic.Uint64
}

// NewPool copies agents into a new Pool. Blank entries are skipped and an
// empty result falls back to DefaultPool.
func NewPool(agents []string) *Pool {
	kept := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, DefaultPool...)
	}
	return &Pool{agents: kept}
}

// Pick returns a uniformly random User-Agent. It is safe for concurrent use.
func (p *Pool) Pick() string {
	if len(p.agents) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.agents))))
	if err != nil {
		return p.Next()
	}
	return p.agents[n.Int64()]
}

// Next returns User-Agents round-robin. It is safe for concurrent use.
func (p *Pool) Next() string {
	if len(p.agents) == 0 {
		return ""
	}
	idx := p.cursor.Add(1) - 1
	return p.agents[idx%uint64(len(p.agents))]
}

// Len reports how many User-Agents the pool holds.
func (p *Pool) Len() int { return len(p.agents) }

// All returns a copy of the pool contents.
func (p *Pool) All() []string {
	out := make([]string, len(p.agents))
	copy(out, p.agents)
	return out
}

// Contains reports whether ua is one of the pool's User-Agents.
func (p *Pool) Contains(ua string) bool {
	for _, a := range p.agents {
		if a == ua {
			return true
		}
	}
	return false
}
