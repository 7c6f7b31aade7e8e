package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/tendril/internal/export"
	"github.com/FranksOps/tendril/internal/report"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/FranksOps/tendril/internal/storage/jsonbackend"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><head><meta name="description" content="home"></head><body>
			<h1> Welcome </h1>
			<a href="http://%[1]s/about">About</a>
			<a href="http://%[1]s/blog">Blog</a>
			<a href="/relative">Relative</a>
			<img src="/logo.png">
			<table id="people"><tr><th>Name</th><th>Age</th></tr><tr><td>Ann</td><td>30</td></tr></table>
		</body></html>`, r.Host)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>About us</body></html>`)
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Blog</body></html>`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestScrapeCommand(t *testing.T) {
	ts := newTestSite(t)
	out := t.TempDir()

	_, err := run(t, ts.URL+"/", "--depth", "2", "--delay", "0s", "--out", out, "--progress=false", "--log-level", "error")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	var level1 []storage.Extraction
	if err := export.ReadJSON(jsonbackend.DepthFile(out, 1), &level1); err != nil {
		t.Fatalf("read depth 1: %v", err)
	}
	if len(level1) != 1 || level1[0].Metadata["description"] != "home" || len(level1[0].Links) != 2 {
		t.Errorf("unexpected depth 1 data %+v", level1)
	}

	var level2 []storage.Extraction
	if err := export.ReadJSON(jsonbackend.DepthFile(out, 2), &level2); err != nil {
		t.Fatalf("read depth 2: %v", err)
	}
	if len(level2) != 2 || level2[0].URL != ts.URL+"/about" || level2[1].URL != ts.URL+"/blog" {
		t.Errorf("unexpected depth 2 data %+v", level2)
	}

	if _, err := os.Stat(jsonbackend.DepthFile(out, 3)); !os.IsNotExist(err) {
		t.Errorf("expected nothing past depth 2, got %v", err)
	}
}

func TestScrapeCommand_SeveralStoresAndReport(t *testing.T) {
	ts := newTestSite(t)
	out := t.TempDir()

	_, err := run(t, ts.URL+"/", "--delay", "0s", "--out", out, "--store", "sqlite,json", "--progress=false", "--log-level", "error")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	stdout, err := run(t, "report", "--store", "sqlite", "--out", out, "--format", "json", "--log-level", "error")
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	var summary report.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if summary.Pages != 1 || summary.Links != 2 || summary.Images != 1 || summary.MetaTags != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestScrapeCommand_SummaryCountsFailures(t *testing.T) {
	ts := newTestSite(t)
	out := t.TempDir()

	// /about and /blog are served; /missing is not.
	stdout, err := run(t, ts.URL+"/missing", "--delay", "0s", "--out", out, "--summary", "json", "--progress=false", "--log-level", "error")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	var summary report.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, stdout)
	}
	if !summary.Live || summary.Failed != 1 || summary.Pages != 0 {
		t.Errorf("expected one failed page in the run summary, got %+v", summary)
	}

	stdout, err = run(t, ts.URL+"/", "--depth", "2", "--delay", "0s", "--out", out, "--summary", "text", "--progress=false", "--log-level", "error")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !strings.Contains(stdout, "3 scraped, 0 failed") {
		t.Errorf("expected page counts in the text summary, got:\n%s", stdout)
	}
}

func TestScrapeCommand_ShallowerRunDropsDeeperOutput(t *testing.T) {
	ts := newTestSite(t)
	out := t.TempDir()

	if _, err := run(t, ts.URL+"/", "--depth", "2", "--delay", "0s", "--out", out, "--progress=false", "--log-level", "error"); err != nil {
		t.Fatalf("deep scrape: %v", err)
	}
	if _, err := run(t, ts.URL+"/", "--depth", "1", "--delay", "0s", "--out", out, "--progress=false", "--log-level", "error"); err != nil {
		t.Fatalf("shallow scrape: %v", err)
	}

	if _, err := os.Stat(jsonbackend.DepthFile(out, 2)); !os.IsNotExist(err) {
		t.Errorf("expected depth 2 output of the earlier run to be gone, got %v", err)
	}

	stdout, err := run(t, "report", "--out", out, "--format", "json", "--log-level", "error")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if summary.Pages != 1 || summary.Live {
		t.Errorf("expected only the shallow run's page, got %+v", summary)
	}
}

func TestScrapeCommand_BadConfig(t *testing.T) {
	if _, err := run(t, "http://127.0.0.1:1/", "--layout", "append"); err == nil {
		t.Error("expected invalid layout to fail")
	}
	if _, err := run(t); err == nil {
		t.Error("expected a missing url to fail")
	}
	if _, err := run(t, "http://127.0.0.1:1/", "--summary", "pdf"); err == nil {
		t.Error("expected an unknown summary format to fail")
	}
}

func TestLinksCommand(t *testing.T) {
	ts := newTestSite(t)

	stdout, err := run(t, "links", ts.URL+"/", "--log-level", "error")
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	want := ts.URL + "/about\n" + ts.URL + "/blog\n"
	if stdout != want {
		t.Errorf("links output = %q, want %q", stdout, want)
	}

	stdout, _ = run(t, "links", ts.URL+"/", "--filter", "blog", "--log-level", "error")
	if strings.TrimSpace(stdout) != ts.URL+"/blog" {
		t.Errorf("filtered links output = %q", stdout)
	}
}

func TestExtractCommands(t *testing.T) {
	ts := newTestSite(t)

	stdout, err := run(t, "text", ts.URL+"/", "h1", "--log-level", "error")
	if err != nil || stdout != "Welcome\n" {
		t.Errorf("text = %q, %v", stdout, err)
	}

	stdout, err = run(t, "images", ts.URL+"/", "--log-level", "error")
	if err != nil || stdout != "/logo.png\n" {
		t.Errorf("images = %q, %v", stdout, err)
	}

	stdout, err = run(t, "meta", ts.URL+"/", "--log-level", "error")
	if err != nil || !strings.Contains(stdout, `"description": "home"`) {
		t.Errorf("meta = %q, %v", stdout, err)
	}

	if _, err := run(t, "links", ts.URL+"/missing", "--log-level", "error"); err == nil {
		t.Error("expected a failed fetch to fail the command")
	}
}

func TestTableCommand(t *testing.T) {
	ts := newTestSite(t)
	csvPath := filepath.Join(t.TempDir(), "people.csv")

	if _, err := run(t, "table", ts.URL+"/", "#people", "--csv", csvPath, "--log-level", "error"); err != nil {
		t.Fatalf("table: %v", err)
	}

	rows, err := export.ReadCSV(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 1 || rows[0]["Name"] != "Ann" || rows[0]["Age"] != "30" {
		t.Errorf("unexpected rows %v", rows)
	}

	stdout, err := run(t, "table", ts.URL+"/", "#people", "--log-level", "error")
	if err != nil {
		t.Fatalf("table stdout: %v", err)
	}
	var printed []map[string]string
	if err := json.Unmarshal([]byte(stdout), &printed); err != nil || len(printed) != 1 || printed[0]["Name"] != "Ann" {
		t.Errorf("unexpected printed table %q (%v)", stdout, err)
	}
}
