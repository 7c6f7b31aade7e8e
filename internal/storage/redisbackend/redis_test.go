package redisbackend

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/FranksOps/tendril/internal/storage"
	"github.com/google/uuid"
)

func TestRedisBackend(t *testing.T) {
	// Only run this test if TENDRIL_TEST_REDIS_ADDR is set
	addr := os.Getenv("TENDRIL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis backend test: TENDRIL_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := "tendril-test-" + uuid.NewString()
	b, err := New(ctx, addr, prefix)
	if err != nil {
		t.Fatalf("Failed to create Redis backend: %v", err)
	}
	defer func() {
		rb := b.(*redisBackend)
		rb.client.Del(ctx, rb.key)
		b.Close()
	}()

	now := time.Now().UTC()
	first := &storage.Extraction{
		ID: "r1", RunID: "run", Depth: 1, FetchedAt: now.Add(-time.Minute),
		URL: "http://a.test", Links: []string{"http://b.test"}, Images: []string{}, Metadata: map[string]string{"description": "x"},
	}
	second := &storage.Extraction{
		ID: "r2", RunID: "run", Depth: 2, FetchedAt: now,
		URL: "http://b.test", Links: []string{}, Images: []string{"/b.png"}, Metadata: map[string]string{},
	}
	for _, e := range []*storage.Extraction{first, second} {
		if err := b.Save(ctx, e); err != nil {
			t.Fatalf("Failed to save %s: %v", e.URL, err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(all) != 2 || all[0].ID != "r2" {
		t.Fatalf("Expected 2 results newest first, got %+v", all)
	}

	byDepth, _ := b.Query(ctx, storage.Filter{Depth: storage.DepthOf(1)})
	if len(byDepth) != 1 || !reflect.DeepEqual(byDepth[0].Metadata, first.Metadata) {
		t.Errorf("Expected the depth-1 page with its metadata, got %+v", byDepth)
	}
}
