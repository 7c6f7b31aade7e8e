package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"net/url"
	"text/template"
	"time"

	"github.com/FranksOps/tendril/internal/storage"
)

// Summary contains aggregated figures about a scrape run or a store.
// Failed pages are never stored, so Failed is only meaningful when Live is set.
type Summary struct {
	Pages        int
	Failed       int
	Live         bool
	PagesByDepth map[int]int
	PagesByHost  map[string]int
	Links        int
	UniqueLinks  int
	Images       int
	MetaTags     int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// GenerateSummary aggregates a slice of extractions. Failed and Live are left
// unset; see WithFailures.
func GenerateSummary(extractions []*storage.Extraction) Summary {
	s := Summary{
		PagesByDepth: make(map[int]int),
		PagesByHost:  make(map[string]int),
	}

	if len(extractions) == 0 {
		return s
	}

	s.StartTime = extractions[0].FetchedAt
	s.EndTime = extractions[0].FetchedAt

	unique := make(map[string]struct{})
	for _, e := range extractions {
		s.Pages++
		s.PagesByDepth[e.Depth]++
		if u, err := url.Parse(e.URL); err == nil && u.Host != "" {
			s.PagesByHost[u.Host]++
		}

		s.Links += len(e.Links)
		for _, l := range e.Links {
			unique[l] = struct{}{}
		}
		s.Images += len(e.Images)
		s.MetaTags += len(e.Metadata)

		if e.FetchedAt.Before(s.StartTime) {
			s.StartTime = e.FetchedAt
		}
		if e.FetchedAt.After(s.EndTime) {
			s.EndTime = e.FetchedAt
		}
	}

	s.UniqueLinks = len(unique)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WithFailures returns s as the summary of a finished run whose fetches
// failed for failed pages.
func (s Summary) WithFailures(failed int) Summary {
	s.Failed = failed
	s.Live = true
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Tendril Scrape Summary
----------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Pages:         {{.Pages}} scraped{{if .Live}}, {{.Failed}} failed{{end}}
Links:         {{.Links}} ({{.UniqueLinks}} unique)
Images:        {{.Images}}
Meta Tags:     {{.MetaTags}}

Pages By Depth:
{{- range $depth, $count := .PagesByDepth}}
  {{$depth}}: {{$count}}
{{- else}}
  None
{{- end}}

Pages By Host:
{{- range $host, $count := .PagesByHost}}
  {{$host}}: {{$count}}
{{- else}}
  None
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render text summary: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Tendril Scrape Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Tendril Scrape Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Pages</div>
    <div class="stat-val">{{.Pages}}</div>
  </div>
  {{- if .Live}}
  <div class="stat-card">
    <div>Failed</div>
    <div class="stat-val" style="color: {{if gt .Failed 0}}red{{else}}green{{end}};">{{.Failed}}</div>
  </div>
  {{- end}}
  <div class="stat-card">
    <div>Links</div>
    <div class="stat-val">{{.Links}} / {{.UniqueLinks}} unique</div>
  </div>
  <div class="stat-card">
    <div>Images</div>
    <div class="stat-val">{{.Images}}</div>
  </div>
  <div class="stat-card">
    <div>Meta Tags</div>
    <div class="stat-val">{{.MetaTags}}</div>
  </div>

  <h3>Pages By Depth</h3>
  <table>
    <tr><th>Depth</th><th>Pages</th></tr>
    {{- range $depth, $count := .PagesByDepth}}
    <tr><td>{{$depth}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Pages By Host</h3>
  <table>
    <tr><th>Host</th><th>Pages</th></tr>
    {{- range $host, $count := .PagesByHost}}
    <tr><td>{{$host}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// Hosts come from scraped pages, so the HTML report escapes them.
var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render html summary: %w", err)
	}
	return nil
}

// Write renders summary in the named format: text, json or html.
func Write(w io.Writer, format string, summary Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
