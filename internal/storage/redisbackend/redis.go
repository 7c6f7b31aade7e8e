package redisbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/tendril/internal/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the backend writes.
const DefaultPrefix = "tendril"

// ensure redisBackend implements storage.Backend
var _ storage.Backend = (*redisBackend)(nil)

type redisBackend struct {
	client *redis.Client
	key    string
}

// record is the stored envelope. Extraction hides its bookkeeping fields
// from JSON, so they are carried here explicitly.
type record struct {
	ID        string            `json:"id"`
	RunID     string            `json:"run_id"`
	Depth     int               `json:"depth"`
	FetchedAt time.Time         `json:"fetched_at"`
	URL       string            `json:"url"`
	Links     []string          `json:"links"`
	Images    []string          `json:"images"`
	Metadata  map[string]string `json:"metadata"`
}

// New connects to addr, which is either host:port or a redis:// URL, and
// stores extractions in a list under prefix.
func New(ctx context.Context, addr, prefix string) (storage.Backend, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &redisBackend{client: client, key: prefix + ":extractions"}, nil
}

func (b *redisBackend) Save(ctx context.Context, e *storage.Extraction) error {
	data, err := json.Marshal(record{
		ID:        e.ID,
		RunID:     e.RunID,
		Depth:     e.Depth,
		FetchedAt: e.FetchedAt,
		URL:       e.URL,
		Links:     e.Links,
		Images:    e.Images,
		Metadata:  e.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encode extraction %s: %w", e.URL, err)
	}

	if err := b.client.RPush(ctx, b.key, data).Err(); err != nil {
		return fmt.Errorf("push extraction %s: %w", e.URL, err)
	}
	return nil
}

func (b *redisBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Extraction, error) {
	items, err := b.client.LRange(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read extractions: %w", err)
	}

	matched := []*storage.Extraction{}
	for _, item := range items {
		var r record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode extraction: %w", err)
		}
		e := &storage.Extraction{
			ID:        r.ID,
			RunID:     r.RunID,
			Depth:     r.Depth,
			FetchedAt: r.FetchedAt,
			URL:       r.URL,
			Links:     r.Links,
			Images:    r.Images,
			Metadata:  r.Metadata,
		}
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	return filter.Window(matched), nil
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
