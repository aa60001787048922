package clean

import (
	"html"
	"regexp"
	"strings"
	"time"

	"nook/internal/core"

	"github.com/PuerkitoBio/goquery"
)

// containerClass marks the cleaned article container carrying the metadata
// sidecar data-attributes.
const containerClass = "nook-article"

var (
	titleBySuffix  = regexp.MustCompile(`\s*\|\s*by\s+.+$`)
	brandSuffix    = regexp.MustCompile(`\s*[-|]\s*(Freedium|ReadMedium|Scribe(\.rip)?|Medium)\s*$`)
	updatedNote    = regexp.MustCompile(`\(Updated:[^)]*\)`)
	textDate       = regexp.MustCompile(`(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}`)
	authorNoise    = []string{"follow", "go to original", "sign in", "sign up", "subscribe"}
	profileAnchors = `a[href*="/@"], a[href*="medium.com/@"], a[rel="author"]`
)

// ExtractMetadata parses title, author, published date, thumbnail, and tags
// from an HTML document or fragment. When the input is a previously cleaned
// fragment, the sidecar data-attribute block takes precedence over
// re-deriving fields from scratch.
func ExtractMetadata(htmlContent string) core.Metadata {
	meta := core.Metadata{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		meta.Published = today()
		return meta
	}

	if sidecar, ok := readSidecar(doc); ok {
		return sidecar
	}

	meta.Title = extractTitle(doc)
	meta.Author = extractAuthor(doc)
	meta.Published = extractPublished(doc)
	meta.Tags = extractTags(doc)
	return meta
}

func readSidecar(doc *goquery.Document) (core.Metadata, bool) {
	container := doc.Find("div." + containerClass).First()
	if container.Length() == 0 {
		return core.Metadata{}, false
	}
	title, _ := container.Attr("data-title")
	if strings.TrimSpace(title) == "" {
		return core.Metadata{}, false
	}
	meta := core.Metadata{Title: title}
	meta.Author, _ = container.Attr("data-author")
	meta.Published, _ = container.Attr("data-published")
	meta.Thumbnail, _ = container.Attr("data-thumbnail")
	if tags, ok := container.Attr("data-tags"); ok && tags != "" {
		meta.Tags = strings.Split(tags, ",")
	}
	if meta.Published == "" {
		meta.Published = today()
	}
	return meta, true
}

// withSidecar wraps a cleaned fragment in the container element that embeds
// metadata as data-attributes, so cache hits can re-extract without the raw
// page.
func withSidecar(inner string, meta core.Metadata) string {
	var b strings.Builder
	b.WriteString(`<div class="` + containerClass + `"`)
	writeAttr(&b, "data-title", meta.Title)
	writeAttr(&b, "data-author", meta.Author)
	writeAttr(&b, "data-published", meta.Published)
	writeAttr(&b, "data-thumbnail", meta.Thumbnail)
	writeAttr(&b, "data-tags", strings.Join(meta.Tags, ","))
	b.WriteString(">")
	b.WriteString(inner)
	b.WriteString("</div>")
	return b.String()
}

func writeAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteString(" " + name + `="` + html.EscapeString(value) + `"`)
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return cleanTitle(title)
}

// cleanTitle strips trailing "| by Author" and mirror-brand suffixes.
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = titleBySuffix.ReplaceAllString(title, "")
	for {
		stripped := brandSuffix.ReplaceAllString(title, "")
		if stripped == title {
			break
		}
		title = stripped
	}
	return strings.TrimSpace(title)
}

// extractAuthor prefers a linked author-profile anchor with the longest text
// (excluding navigation noise), then meta tags, then the H1's "by Author"
// suffix.
func extractAuthor(doc *goquery.Document) string {
	best := ""
	doc.Find(profileAnchors).Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if text == "" || isAuthorNoise(text) {
			return
		}
		if len(text) > len(best) {
			best = text
		}
	})
	if best != "" {
		return best
	}

	for _, sel := range []string{`meta[name="author"]`, `meta[property="article:author"]`} {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	return authorFromHeading(doc)
}

func authorFromHeading(doc *goquery.Document) string {
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	if idx := strings.LastIndex(h1, " by "); idx >= 0 {
		candidate := strings.TrimSpace(h1[idx+len(" by "):])
		if candidate != "" && !isAuthorNoise(candidate) {
			return candidate
		}
	}
	return ""
}

func isAuthorNoise(text string) bool {
	lower := strings.ToLower(text)
	for _, noise := range authorNoise {
		if strings.Contains(lower, noise) {
			return true
		}
	}
	return false
}

// extractPublished returns an ISO date: article:published_time meta first,
// then a "Month Day, Year" text pattern (ignoring "(Updated: ...)" notes),
// defaulting to today.
func extractPublished(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
	} {
		if v, ok := doc.Find(sel).Attr("content"); ok && len(v) >= 10 {
			if _, err := time.Parse("2006-01-02", v[:10]); err == nil {
				return v[:10]
			}
		}
	}

	text := updatedNote.ReplaceAllString(doc.Text(), "")
	if match := textDate.FindString(text); match != "" {
		if t, err := time.Parse("January 2, 2006", match); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return today()
}

// extractTags collects hashtag-style span texts, deduplicated and capped.
func extractTags(doc *goquery.Document) []string {
	var tags []string
	seen := map[string]bool{}
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "#") {
			return true
		}
		tag := strings.TrimSpace(strings.TrimPrefix(text, "#"))
		if tag == "" || seen[tag] {
			return true
		}
		seen[tag] = true
		tags = append(tags, tag)
		return len(tags) < core.MaxTags
	})
	return tags
}

// normalize corrects a degenerate author and removes a duplicate leading H1.
func normalize(body *goquery.Selection, meta *core.Metadata) {
	if meta.Author == "" || meta.Author == "Unknown" {
		best := ""
		body.Find(profileAnchors).Each(func(_ int, a *goquery.Selection) {
			text := strings.TrimSpace(a.Text())
			if text != "" && !isAuthorNoise(text) && len(text) > len(best) {
				best = text
			}
		})
		if best == "" {
			h1 := strings.TrimSpace(body.Find("h1").First().Text())
			if idx := strings.LastIndex(h1, " by "); idx >= 0 {
				best = strings.TrimSpace(h1[idx+len(" by "):])
			}
		}
		if best != "" {
			meta.Author = best
		}
	}
	if meta.Author == "" {
		meta.Author = "Unknown"
	}
	if meta.Published == "" {
		meta.Published = today()
	}

	if meta.Title != "" {
		h1s := body.Find("h1")
		if h1s.Length() > 1 {
			first := h1s.First()
			text := strings.TrimSpace(first.Text())
			if text != "" && strings.HasPrefix(meta.Title, text) {
				first.Remove()
			}
		}
	}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
