package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func TestMetricsHandler(t *testing.T) {
	RecordFetch("example.com", OutcomeOK, "", time.Second, 11)
	RecordFetch("example.com", OutcomeStatus, "Cloudflare", 10*time.Millisecond, 0)
	RecordExtraction(OutcomeSaved)

	ts := httptest.NewServer(promhttp.Handler())
	defer ts.Close()

	output := scrape(t, ts.URL)

	for _, want := range []string{
		`tendril_fetches_total{detector="",domain="example.com",outcome="ok"}`,
		`tendril_fetches_total{detector="Cloudflare",domain="example.com",outcome="status"}`,
		`tendril_fetch_duration_seconds_bucket`,
		`tendril_fetch_bytes_total{domain="example.com"} 11`,
		`tendril_extractions_total{outcome="saved"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output", want)
		}
	}
}

func TestMetricsServer_Run(t *testing.T) {
	srv := New(18931)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	output := scrape(t, "http://localhost:18931/metrics")
	if !strings.Contains(output, "go_goroutines") {
		t.Error("expected default collectors on /metrics")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
