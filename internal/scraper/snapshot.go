package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Snapshot is the parsed document of one fetched page. Every extraction is
// a pure function of the document.
type Snapshot struct {
	URL string
	doc *goquery.Document
}

// NewSnapshot parses an HTML body fetched from pageURL.
func NewSnapshot(pageURL string, r io.Reader) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return &Snapshot{URL: pageURL, doc: doc}, nil
}

// Links returns the href of every anchor that, once trimmed, starts with
// http:// or https://. Document order and duplicates are kept.
func (s *Snapshot) Links() []string {
	links := []string{}
	s.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			links = append(links, href)
		}
	})
	return links
}

// Images returns the src of every img verbatim.
func (s *Snapshot) Images() []string {
	images := []string{}
	s.doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		images = append(images, img.AttrOr("src", ""))
	})
	return images
}

// Text returns the trimmed text of the first element matching selector, or
// "" when nothing matches.
func (s *Snapshot) Text(selector string) string {
	sel := s.doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

// Table reads the first table matching selector. Headers come from its th
// cells; each later row with at least one td becomes a record keyed by
// header position. Cells past the last header are dropped.
func (s *Snapshot) Table(selector string) []map[string]string {
	rows := []map[string]string{}

	table := s.doc.Find(selector).First()
	if table.Length() == 0 {
		return rows
	}

	var headers []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}
		record := make(map[string]string, cells.Length())
		cells.EachWithBreak(func(i int, td *goquery.Selection) bool {
			if i >= len(headers) {
				return false
			}
			record[headers[i]] = strings.TrimSpace(td.Text())
			return true
		})
		rows = append(rows, record)
	})

	return rows
}

// Metadata maps each meta tag's name, or its property when name is empty, to
// its content. Tags missing either side are skipped; later duplicates win.
func (s *Snapshot) Metadata() map[string]string {
	meta := make(map[string]string)
	s.doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		key := m.AttrOr("name", "")
		if key == "" {
			key = m.AttrOr("property", "")
		}
		content := m.AttrOr("content", "")
		if key != "" && content != "" {
			meta[key] = content
		}
	})
	return meta
}

// FilterLinks returns the Links containing keyword.
func (s *Snapshot) FilterLinks(keyword string) []string {
	filtered := []string{}
	for _, link := range s.Links() {
		if strings.Contains(link, keyword) {
			filtered = append(filtered, link)
		}
	}
	return filtered
}
