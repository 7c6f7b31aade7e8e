package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/tendril/internal/storage"
)

func TestGenerateSummary(t *testing.T) {
	now := time.Now()

	extractions := []*storage.Extraction{
		{
			URL:       "http://example.com",
			Depth:     1,
			Links:     []string{"http://example.com/a", "http://example.com/b"},
			Images:    []string{"/logo.png"},
			Metadata:  map[string]string{"description": "x"},
			FetchedAt: now,
		},
		{
			URL:       "http://example.com/a",
			Depth:     2,
			Links:     []string{"http://example.com/b", "http://other.org"},
			Metadata:  map[string]string{"description": "a", "og:title": "A"},
			FetchedAt: now.Add(1 * time.Second),
		},
		{
			URL:       "http://other.org",
			Depth:     2,
			FetchedAt: now.Add(2 * time.Second),
		},
	}

	summary := GenerateSummary(extractions)

	if summary.Pages != 3 {
		t.Errorf("expected 3 pages, got %d", summary.Pages)
	}
	if summary.PagesByDepth[1] != 1 || summary.PagesByDepth[2] != 2 {
		t.Errorf("expected depth counts 1/2, got %v", summary.PagesByDepth)
	}
	if summary.PagesByHost["example.com"] != 2 || summary.PagesByHost["other.org"] != 1 {
		t.Errorf("unexpected host counts %v", summary.PagesByHost)
	}
	if summary.Links != 4 {
		t.Errorf("expected 4 links, got %d", summary.Links)
	}
	if summary.UniqueLinks != 3 {
		t.Errorf("expected 3 unique links, got %d", summary.UniqueLinks)
	}
	if summary.Images != 1 {
		t.Errorf("expected 1 image, got %d", summary.Images)
	}
	if summary.MetaTags != 3 {
		t.Errorf("expected 3 meta tags, got %d", summary.MetaTags)
	}
	if summary.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", summary.Duration)
	}
	if summary.Failed != 0 || summary.Live {
		t.Errorf("expected Failed to be left for the caller, got %+v", summary)
	}
}

func TestGenerateSummary_Empty(t *testing.T) {
	summary := GenerateSummary(nil)
	if summary.Pages != 0 || summary.PagesByDepth == nil || summary.PagesByHost == nil {
		t.Errorf("expected zero summary with initialized maps, got %+v", summary)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Summary{Pages: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"Pages": 5`) {
		t.Errorf("expected JSON to contain Pages: 5")
	}
}

func TestWriteText(t *testing.T) {
	summary := Summary{
		Pages:        5,
		PagesByDepth: map[int]int{1: 1, 2: 4},
	}.WithFailures(1)
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Pages:         5 scraped, 1 failed") {
		t.Errorf("expected text to contain page counts, got:\n%s", out)
	}
	if !strings.Contains(out, "2: 4") {
		t.Errorf("expected text to contain 2: 4")
	}
}

func TestWriteText_StoreSummaryOmitsFailures(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, Summary{Pages: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "failed") || !strings.Contains(out, "Pages:         3 scraped\n") {
		t.Errorf("expected no failure count without run statistics, got:\n%s", out)
	}

	buf.Reset()
	if err := WriteHTML(&buf, Summary{Pages: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "<div>Failed</div>") {
		t.Error("expected no Failed card without run statistics")
	}

	buf.Reset()
	_ = WriteHTML(&buf, Summary{Pages: 3}.WithFailures(2))
	if !strings.Contains(buf.String(), "<div>Failed</div>") {
		t.Error("expected a Failed card for a finished run")
	}
}

func TestWriteHTML(t *testing.T) {
	summary := Summary{
		Pages:       10,
		PagesByHost: map[string]int{"<evil>.test": 2},
	}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Tendril Scrape Report</title>") {
		t.Errorf("expected HTML title")
	}
	if strings.Contains(out, "<evil>") || !strings.Contains(out, "&lt;evil&gt;.test") {
		t.Errorf("expected host to be escaped")
	}
}

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "json", Summary{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if err := Write(&buf, "pdf", Summary{}); err == nil {
		t.Error("expected error for unknown format")
	}
}
