// Package clean converts raw article HTML into a sanitized, normalized
// fragment plus structured metadata. All output passes through the
// allow-list sanitizer as the final step.
package clean

import (
	"fmt"
	"net/url"
	"strings"

	"nook/internal/core"
	"nook/internal/sanitize"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// MinTextLength is the minimum plain-text length for an extraction to count
// as a real article rather than an error page or stub.
const MinTextLength = 500

// mirrorContainers maps recognized mirror hosts to the selector of their
// main-content element. Mirrors preserve images better inside these
// containers than a generic readability pass does.
var mirrorContainers = map[string]string{
	"freedium.cfd":        "div.main-content",
	"freedium-mirror.cfd": "div.main-content",
	"readmedium.com":      "article",
	"scribe.rip":          "article",
}

// Cleaner rewrites and sanitizes article HTML.
type Cleaner struct {
	imageProxy string // base URL of the size/format-transforming image proxy
}

// New creates a Cleaner. imageProxy may be empty to disable image proxying.
func New(imageProxy string) *Cleaner {
	return &Cleaner{imageProxy: strings.TrimRight(imageProxy, "/")}
}

// Clean extracts the main content from rawHTML, rewrites images, wraps bare
// pre blocks, derives metadata, embeds the metadata sidecar, and sanitizes.
// A preview image declared by the raw page wins over images found in the body.
func (c *Cleaner) Clean(rawHTML, baseURL string) (string, core.Metadata, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", core.Metadata{}, fmt.Errorf("parse base url: %w", err)
	}

	meta := ExtractMetadata(rawHTML)
	if meta.Thumbnail == "" {
		meta.Thumbnail = previewImage(rawHTML)
	}

	content, err := c.mainContent(rawHTML, base, &meta)
	if err != nil {
		return "", core.Metadata{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", core.Metadata{}, fmt.Errorf("parse extracted content: %w", err)
	}
	body := doc.Find("body")

	firstImage := c.rewriteImages(body, base)
	if meta.Thumbnail == "" {
		meta.Thumbnail = firstImage
	}
	wrapBarePre(body)
	normalize(body, &meta)

	inner, err := body.Html()
	if err != nil {
		return "", core.Metadata{}, fmt.Errorf("serialize cleaned content: %w", err)
	}

	return sanitize.HTML(withSidecar(inner, meta)), meta, nil
}

// Resanitize re-normalizes and re-sanitizes a previously cleaned fragment,
// the cache-hit path. The embedded sidecar takes precedence over re-deriving
// metadata from scratch, so the result is byte-stable across round trips.
func (c *Cleaner) Resanitize(cleanedHTML string) (string, core.Metadata) {
	meta := ExtractMetadata(cleanedHTML)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return sanitize.HTML(cleanedHTML), meta
	}
	body := doc.Find("body")
	normalize(body, &meta)
	inner, err := body.Html()
	if err != nil {
		return sanitize.HTML(cleanedHTML), meta
	}
	// Strip the old sidecar container before re-wrapping.
	if container := doc.Find("div." + containerClass).First(); container.Length() > 0 {
		if h, err := container.Html(); err == nil {
			inner = h
		}
	}
	return sanitize.HTML(withSidecar(inner, meta)), meta
}

// Compose wraps a synthesized fragment in the sidecar container and
// sanitizes it. Adapters that build HTML from structured API fields use this
// instead of the readability path.
func Compose(inner string, meta core.Metadata) string {
	// An empty title or date would make the cached fragment fail Valid and
	// force a re-fetch on every hit, so both always get a value.
	if meta.Title == "" {
		meta.Title = "Untitled"
	}
	if meta.Published == "" {
		meta.Published = today()
	}
	if meta.Author == "" {
		meta.Author = "Unknown"
	}
	return sanitize.HTML(withSidecar(inner, meta))
}

// Valid reports whether a cached cleaned fragment can still be served: the
// metadata sidecar must carry the required fields and no image may reference
// a leaked internal (relative) proxy path.
func Valid(cleanedHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return false
	}
	container := doc.Find("div." + containerClass).First()
	if container.Length() == 0 {
		return false
	}
	for _, attr := range []string{"data-title", "data-published"} {
		if v, _ := container.Attr(attr); strings.TrimSpace(v) == "" {
			return false
		}
	}
	leaked := false
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && strings.HasPrefix(src, "/") {
			leaked = true
			return false
		}
		return true
	})
	return !leaked
}

// mainContent returns the HTML of the article body: the mirror's structural
// container when the host is a recognized mirror and the container is
// present, otherwise a generic readability extraction.
func (c *Cleaner) mainContent(rawHTML string, base *url.URL, meta *core.Metadata) (string, error) {
	if selector, ok := mirrorContainers[base.Hostname()]; ok {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
		if err == nil {
			if sel := doc.Find(selector).First(); sel.Length() > 0 {
				if h, err := sel.Html(); err == nil && strings.TrimSpace(h) != "" {
					return h, nil
				}
			}
		}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return "", fmt.Errorf("readability extraction: %w", err)
	}
	if meta.Title == "" {
		meta.Title = cleanTitle(article.Title)
	}
	if meta.Author == "" && article.Byline != "" {
		meta.Author = strings.TrimSpace(strings.TrimPrefix(article.Byline, "by "))
	}
	if meta.Thumbnail == "" {
		meta.Thumbnail = article.Image
	}
	return article.Content, nil
}

// rewriteImages makes every image reference absolute, routes it through the
// image proxy, strips layout attributes, and marks it lazy. Returns the
// first rewritten URL for thumbnail derivation.
func (c *Cleaner) rewriteImages(body *goquery.Selection, base *url.URL) string {
	first := ""
	body.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" {
			img.Remove()
			return
		}
		abs := absoluteURL(base, src)
		proxied := c.proxyImageURL(abs)
		img.SetAttr("src", proxied)
		if first == "" {
			first = proxied
		}

		for _, attr := range []string{"width", "height", "style", "srcset", "data-src", "data-srcset", "sizes"} {
			img.RemoveAttr(attr)
		}
		img.SetAttr("loading", "lazy")
		img.SetAttr("referrerpolicy", "no-referrer")
	})
	return first
}

// imageSource picks the best source for an img: src, then data-src, then the
// last (largest) candidate of srcset/data-srcset.
func imageSource(img *goquery.Selection) string {
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" && !strings.HasPrefix(src, "data:") {
		return strings.TrimSpace(src)
	}
	if src, ok := img.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src)
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if set, ok := img.Attr(attr); ok && strings.TrimSpace(set) != "" {
			candidates := strings.Split(set, ",")
			last := strings.Fields(strings.TrimSpace(candidates[len(candidates)-1]))
			if len(last) > 0 {
				return last[0]
			}
		}
	}
	return ""
}

// proxyImageURL routes an absolute image URL through the transforming proxy,
// requesting a lossy web format at fixed quality.
func (c *Cleaner) proxyImageURL(abs string) string {
	if c.imageProxy == "" || abs == "" {
		return abs
	}
	stripped := strings.TrimPrefix(strings.TrimPrefix(abs, "https://"), "http://")
	return c.imageProxy + "/?url=" + url.QueryEscape(stripped) + "&output=webp&q=75"
}

func absoluteURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// wrapBarePre wraps the text of pre blocks lacking a nested code element so
// downstream styling treats them uniformly.
func wrapBarePre(body *goquery.Selection) {
	body.Find("pre").Each(func(_ int, pre *goquery.Selection) {
		if pre.Find("code").Length() > 0 {
			return
		}
		text := pre.Text()
		pre.Empty()
		pre.AppendHtml("<code></code>")
		pre.Find("code").SetText(text)
	})
}

// previewImage pulls the page's preview image from Open Graph or Twitter
// meta tags in the raw document.
func previewImage(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
		`link[rel="image_src"]`,
	} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if v, ok := node.Attr("content"); ok && v != "" {
			return v
		}
		if v, ok := node.Attr("href"); ok && v != "" {
			return v
		}
	}
	return ""
}
