package clean

import (
	"strings"
	"testing"
	"time"

	"nook/internal/core"
)

var articlePage = `<!DOCTYPE html>
<html>
<head>
<title>Understanding Go Channels | by Jane Doe - Freedium</title>
<meta property="og:image" content="https://cdn.example.com/preview.png">
<meta property="article:published_time" content="2024-03-15T08:30:00Z">
</head>
<body>
<div class="main-content">
<h1>Understanding Go Channels</h1>
<p><a href="https://medium.com/@janedoe">Jane Doe</a> · <a href="https://medium.com/@janedoe">Follow</a></p>
<p>` + loremText() + `</p>
<img data-src="/images/diagram.png" width="600" height="400" style="border:0">
<pre>ch := make(chan int)</pre>
<span>#golang</span><span>#golang</span><span>#concurrency</span>
</div>
</body>
</html>`

func loremText() string {
	return strings.Repeat("Channels are a typed conduit through which goroutines communicate. ", 12)
}

func TestCleanRewritesImages(t *testing.T) {
	c := New("https://images.weserv.nl")
	html, _, err := c.Clean(articlePage, "https://freedium.cfd/@janedoe/understanding-go-channels-abc123")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if !strings.Contains(html, "images.weserv.nl") {
		t.Errorf("Expected image routed through proxy, got %q", html)
	}
	if !strings.Contains(html, "output=webp") {
		t.Errorf("Expected lossy output format in proxy URL, got %q", html)
	}
	if strings.Contains(html, "width=") || strings.Contains(html, "style=") {
		t.Errorf("Expected layout attributes stripped, got %q", html)
	}
	if !strings.Contains(html, `loading="lazy"`) || !strings.Contains(html, `referrerpolicy="no-referrer"`) {
		t.Errorf("Expected lazy/no-referrer attributes, got %q", html)
	}
}

func TestCleanMetadata(t *testing.T) {
	c := New("")
	_, meta, err := c.Clean(articlePage, "https://freedium.cfd/@janedoe/understanding-go-channels-abc123")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if meta.Title != "Understanding Go Channels" {
		t.Errorf("Expected stripped title, got %q", meta.Title)
	}
	if meta.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got %q", meta.Author)
	}
	if meta.Published != "2024-03-15" {
		t.Errorf("Expected published 2024-03-15, got %q", meta.Published)
	}
	if meta.Thumbnail != "https://cdn.example.com/preview.png" {
		t.Errorf("Expected og:image thumbnail, got %q", meta.Thumbnail)
	}
	if len(meta.Tags) != 2 || meta.Tags[0] != "golang" || meta.Tags[1] != "concurrency" {
		t.Errorf("Expected deduplicated tags [golang concurrency], got %v", meta.Tags)
	}
}

func TestCleanWrapsBarePre(t *testing.T) {
	c := New("")
	html, _, err := c.Clean(articlePage, "https://freedium.cfd/post")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if !strings.Contains(html, "<pre><code>") {
		t.Errorf("Expected bare pre wrapped in code, got %q", html)
	}
	if !strings.Contains(html, "ch := make(chan int)") {
		t.Errorf("Expected pre text preserved, got %q", html)
	}
}

func TestResanitizeByteStable(t *testing.T) {
	c := New("https://images.weserv.nl")
	first, _, err := c.Clean(articlePage, "https://freedium.cfd/post")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	second, _ := c.Resanitize(first)
	if first != second {
		t.Errorf("Resanitize not byte-stable:\n first: %q\nsecond: %q", first, second)
	}
	third, _ := c.Resanitize(second)
	if second != third {
		t.Error("Resanitize not idempotent on its own output")
	}
}

func TestSidecarPrecedence(t *testing.T) {
	cleaned := `<div class="nook-article" data-title="Stored Title" data-author="Stored Author" data-published="2023-01-01" data-tags="a,b"><h1>Completely Different Heading</h1><p>x</p></div>`
	meta := ExtractMetadata(cleaned)
	if meta.Title != "Stored Title" || meta.Author != "Stored Author" || meta.Published != "2023-01-01" {
		t.Errorf("Expected sidecar to win over re-derivation, got %+v", meta)
	}
	if len(meta.Tags) != 2 {
		t.Errorf("Expected 2 tags from sidecar, got %v", meta.Tags)
	}
}

func TestExtractMetadataIdempotent(t *testing.T) {
	c := New("")
	html, meta, err := c.Clean(articlePage, "https://freedium.cfd/post")
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	again := ExtractMetadata(html)
	if again.Title != meta.Title || again.Author != meta.Author || again.Published != meta.Published {
		t.Errorf("Metadata extraction not idempotent:\n first: %+v\nsecond: %+v", meta, again)
	}
	if strings.Join(again.Tags, ",") != strings.Join(meta.Tags, ",") {
		t.Errorf("Tags changed across re-extraction: %v vs %v", meta.Tags, again.Tags)
	}
}

func TestCleanTitleSuffixes(t *testing.T) {
	cases := map[string]string{
		"Some Post | by John Smith":       "Some Post",
		"Some Post - Freedium":            "Some Post",
		"Some Post | by Jane - ReadMedium": "Some Post",
		"Plain Title":                     "Plain Title",
	}
	for in, want := range cases {
		if got := cleanTitle(in); got != want {
			t.Errorf("cleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublishedTextPattern(t *testing.T) {
	page := `<html><body><h1>T</h1><p>Published March 3, 2022 (Updated: May 1, 2023)</p></body></html>`
	meta := ExtractMetadata(page)
	if meta.Published != "2022-03-03" {
		t.Errorf("Expected text-pattern date 2022-03-03, got %q", meta.Published)
	}
}

func TestPublishedDefaultsToToday(t *testing.T) {
	meta := ExtractMetadata(`<html><body><p>no dates here</p></body></html>`)
	if meta.Published != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("Expected today's date default, got %q", meta.Published)
	}
}

func TestValid(t *testing.T) {
	good := `<div class="nook-article" data-title="T" data-published="2024-01-01"><p>x</p></div>`
	if !Valid(good) {
		t.Error("Expected valid fragment to pass")
	}

	noSidecar := `<div><p>x</p></div>`
	if Valid(noSidecar) {
		t.Error("Expected fragment without sidecar to fail")
	}

	missingField := `<div class="nook-article" data-title="T"><p>x</p></div>`
	if Valid(missingField) {
		t.Error("Expected fragment missing published date to fail")
	}

	leakedProxy := `<div class="nook-article" data-title="T" data-published="2024-01-01"><img src="/internal/proxy/img.png"></div>`
	if Valid(leakedProxy) {
		t.Error("Expected fragment with leaked internal proxy path to fail")
	}
}

func TestComposeWithoutMetadataStaysServable(t *testing.T) {
	html := Compose("<p>synthesized body</p>", core.Metadata{})
	if !Valid(html) {
		t.Errorf("Expected composed fragment to remain cache-servable, got %q", html)
	}
	if !strings.Contains(html, `data-title="Untitled"`) {
		t.Errorf("Expected default title in sidecar, got %q", html)
	}
}

func TestExtractText(t *testing.T) {
	text := ExtractText(articlePage, "https://freedium.cfd/post")
	if len(text) < MinTextLength {
		t.Errorf("Expected at least %d chars of text, got %d", MinTextLength, len(text))
	}
	if strings.Contains(text, "<") {
		t.Errorf("Expected plain text, got markup: %q", text[:80])
	}
}
