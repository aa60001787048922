package sources

import (
	"context"
	"net/url"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// readabilityAdapter is the first generic fallback: one fetch, generic
// extraction, no source-specific parsing.
type readabilityAdapter struct {
	client  *fetch.Client
	cleaner *clean.Cleaner
}

func newReadabilityAdapter(client *fetch.Client, cleaner *clean.Cleaner) *readabilityAdapter {
	return &readabilityAdapter{client: client, cleaner: cleaner}
}

func (a *readabilityAdapter) Name() string           { return "readability" }
func (a *readabilityAdapter) License() core.License  { return core.LicenseUnknown }
func (a *readabilityAdapter) CanHandle(*url.URL) bool { return true }

func (a *readabilityAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	return fetchAndClean(ctx, a.client, a.cleaner, rawURL)
}

func (a *readabilityAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	return fetchText(ctx, a.client, rawURL)
}

// rateLimitMarkers flag a proxy response that is a throttle notice rather
// than extracted content.
var rateLimitMarkers = []string{
	"Too Many Requests",
	"rate limit exceeded",
}

// markdownProxyAdapter is the last-resort fallback: it routes the URL
// through an external text-extraction proxy that returns Markdown and
// converts the result to HTML.
type markdownProxyAdapter struct {
	client   *fetch.Client
	proxyURL string
}

func newMarkdownProxyAdapter(client *fetch.Client, proxyURL string) *markdownProxyAdapter {
	return &markdownProxyAdapter{client: client, proxyURL: strings.TrimRight(proxyURL, "/")}
}

func (a *markdownProxyAdapter) Name() string           { return "markdown-proxy" }
func (a *markdownProxyAdapter) License() core.License  { return core.LicenseUnknown }
func (a *markdownProxyAdapter) CanHandle(*url.URL) bool { return true }

func (a *markdownProxyAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	md := a.fetchMarkdown(ctx, rawURL)
	if md == "" {
		return nil, nil, nil
	}

	title := markdownTitle(md)
	if title == "" {
		// Proxy output with no heading or Title: line; fall back to the host
		// so the cached fragment still carries a title.
		if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
			title = u.Hostname()
		} else {
			title = rawURL
		}
	}
	meta := core.Metadata{Title: title}
	fragment := string(markdown.ToHTML([]byte(md),
		parser.NewWithExtensions(parser.CommonExtensions|parser.AutoHeadingIDs),
		mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})))

	return &core.RenderedContent{HTML: clean.Compose(fragment, meta), Meta: meta}, nil, nil
}

func (a *markdownProxyAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	md := a.fetchMarkdown(ctx, rawURL)
	if !longEnough(md) {
		return "", nil
	}
	return md, nil
}

func (a *markdownProxyAdapter) fetchMarkdown(ctx context.Context, rawURL string) string {
	if a.proxyURL == "" {
		return ""
	}
	resp, err := a.client.Get(ctx, a.proxyURL+"/"+rawURL)
	if err != nil || resp.StatusCode != 200 {
		return ""
	}
	body := string(resp.Body)
	for _, marker := range rateLimitMarkers {
		if strings.Contains(body, marker) {
			return ""
		}
	}
	return body
}

// markdownTitle takes the first ATX heading, or "Title: " preamble line, as
// the article title.
func markdownTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
		if strings.HasPrefix(line, "Title: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Title: "))
		}
	}
	return ""
}
