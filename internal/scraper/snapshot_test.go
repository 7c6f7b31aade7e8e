package scraper

import (
	"reflect"
	"strings"
	"testing"
)

func mustSnapshot(t *testing.T, html string) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot("http://page.test", strings.NewReader(html))
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestSnapshot_Links(t *testing.T) {
	snap := mustSnapshot(t, `<html><body>
		<a href="https://a.test/1">one</a>
		<a href="/relative">rel</a>
		<a href="mailto:me@a.test">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="  http://b.test  ">spaced</a>
		<a href="httpfoo">not a scheme</a>
		<a>no href</a>
		<a href="https://a.test/1">dup</a>
	</body></html>`)

	want := []string{"https://a.test/1", "http://b.test", "https://a.test/1"}
	if got := snap.Links(); !reflect.DeepEqual(got, want) {
		t.Errorf("Links() = %v, want %v", got, want)
	}
	for _, l := range snap.Links() {
		if !strings.HasPrefix(l, "http://") && !strings.HasPrefix(l, "https://") {
			t.Errorf("non-http link %q returned", l)
		}
	}
}

func TestSnapshot_NoAnchors(t *testing.T) {
	snap := mustSnapshot(t, `<html><body><p>nothing here</p></body></html>`)
	if got := snap.Links(); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil links, got %#v", got)
	}
}

func TestSnapshot_Images(t *testing.T) {
	snap := mustSnapshot(t, `<img src="/a.png"><img alt="no src"><img src="https://cdn.test/b.jpg">`)
	want := []string{"/a.png", "https://cdn.test/b.jpg"}
	if got := snap.Images(); !reflect.DeepEqual(got, want) {
		t.Errorf("Images() = %v, want %v", got, want)
	}
}

func TestSnapshot_Text(t *testing.T) {
	snap := mustSnapshot(t, `<h1>  Title  </h1><p class="x">first</p><p class="x">second</p>`)

	tests := []struct {
		selector string
		want     string
	}{
		{"h1", "Title"},
		{"p.x", "first"},
		{"div.missing", ""},
	}
	for _, tt := range tests {
		if got := snap.Text(tt.selector); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.selector, got, tt.want)
		}
	}
}

func TestSnapshot_Table(t *testing.T) {
	snap := mustSnapshot(t, `<table id="people">
		<tr><th>Name</th><th>Age</th></tr>
		<tr><td>Ann</td><td>30</td></tr>
	</table>`)

	want := []map[string]string{{"Name": "Ann", "Age": "30"}}
	if got := snap.Table("#people"); !reflect.DeepEqual(got, want) {
		t.Errorf("Table() = %v, want %v", got, want)
	}
}

func TestSnapshot_TableEdges(t *testing.T) {
	snap := mustSnapshot(t, `<table>
		<tr><th>A</th></tr>
		<tr><td> 1 </td><td>dropped</td></tr>
		<tr></tr>
		<tr><td>2</td></tr>
	</table>`)

	want := []map[string]string{{"A": "1"}, {"A": "2"}}
	if got := snap.Table("table"); !reflect.DeepEqual(got, want) {
		t.Errorf("Table() = %v, want %v", got, want)
	}

	if got := snap.Table("#missing"); got == nil || len(got) != 0 {
		t.Errorf("expected empty rows for missing table, got %#v", got)
	}
}

func TestSnapshot_Metadata(t *testing.T) {
	snap := mustSnapshot(t, `<head>
		<meta name="description" content="x">
		<meta name="keywords">
		<meta charset="utf-8">
	</head>`)

	want := map[string]string{"description": "x"}
	if got := snap.Metadata(); !reflect.DeepEqual(got, want) {
		t.Errorf("Metadata() = %v, want %v", got, want)
	}
}

func TestSnapshot_MetadataPropertyAndDuplicates(t *testing.T) {
	snap := mustSnapshot(t, `<head>
		<meta property="og:title" content="OG">
		<meta name="" property="og:type" content="site">
		<meta name="author" content="first">
		<meta name="author" content="second">
	</head>`)

	want := map[string]string{"og:title": "OG", "og:type": "site", "author": "second"}
	if got := snap.Metadata(); !reflect.DeepEqual(got, want) {
		t.Errorf("Metadata() = %v, want %v", got, want)
	}
}

func TestSnapshot_FilterLinks(t *testing.T) {
	snap := mustSnapshot(t, `<a href="https://a.test/blog/1">x</a><a href="https://a.test/about">y</a><a href="https://a.test/Blog/2">z</a>`)

	want := []string{"https://a.test/blog/1"}
	if got := snap.FilterLinks("blog"); !reflect.DeepEqual(got, want) {
		t.Errorf("FilterLinks() = %v, want %v", got, want)
	}
	if got := snap.FilterLinks(""); len(got) != 3 {
		t.Errorf("expected empty keyword to keep every link, got %v", got)
	}
}
