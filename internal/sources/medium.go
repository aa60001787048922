package sources

import (
	"context"
	"net/url"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"
	"nook/internal/logger"
)

// mirrorErrorMarkers are body substrings a mirror emits when it failed to
// render the article; a response containing one does not count as a result.
var mirrorErrorMarkers = []string{
	"Failed to render",
	"This site can’t be reached",
}

type mediumAdapter struct {
	client       *fetch.Client
	cleaner      *clean.Cleaner
	mirrors      []string
	publications map[string]bool
}

func newMediumAdapter(client *fetch.Client, cleaner *clean.Cleaner, mirrors, publications []string) *mediumAdapter {
	pubs := make(map[string]bool, len(publications))
	for _, p := range publications {
		pubs[strings.ToLower(p)] = true
	}
	return &mediumAdapter{client: client, cleaner: cleaner, mirrors: mirrors, publications: pubs}
}

func (a *mediumAdapter) Name() string          { return "medium" }
func (a *mediumAdapter) License() core.License { return core.LicenseStandard }

// CanHandle matches medium.com itself (any subdomain) plus the static
// allow-list of known Medium-powered publication domains.
func (a *mediumAdapter) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host == "medium.com" || strings.HasSuffix(host, ".medium.com") {
		return true
	}
	return a.publications[host]
}

func (a *mediumAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	mirrorURL, body := a.firstMirror(ctx, rawURL, hasArticleMarker)
	if body == "" {
		return nil, nil, nil
	}
	html, meta, err := a.cleaner.Clean(body, mirrorURL)
	if err != nil {
		return nil, nil, err
	}
	return &core.RenderedContent{HTML: html, Meta: meta}, nil, nil
}

func (a *mediumAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	mirrorURL, body := a.firstMirror(ctx, rawURL, func(mirrorURL, b string) bool {
		return longEnough(clean.ExtractText(b, mirrorURL))
	})
	if body == "" {
		return "", nil
	}
	return clean.ExtractText(body, mirrorURL), nil
}

type mirrorResult struct {
	url  string
	body string
}

// firstMirror issues one fetch per mirror concurrently and returns the first
// response accept() validates. The remaining in-flight fetches are cancelled
// and their results discarded.
func (a *mediumAdapter) firstMirror(ctx context.Context, rawURL string, accept func(mirrorURL, body string) bool) (string, string) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan mirrorResult, len(a.mirrors))
	for _, mirror := range a.mirrors {
		mirrorURL, err := mirrorTarget(rawURL, mirror)
		if err != nil {
			results <- mirrorResult{}
			continue
		}
		go func(mirrorURL string) {
			resp, err := a.client.GetWithTimeout(ctx, mirrorURL, a.client.MirrorTimeout())
			if err != nil || resp.StatusCode != 200 {
				results <- mirrorResult{}
				return
			}
			results <- mirrorResult{url: mirrorURL, body: string(resp.Body)}
		}(mirrorURL)
	}

	for range a.mirrors {
		res := <-results
		if res.body == "" || hasErrorMarker(res.body) {
			continue
		}
		if accept(res.url, res.body) {
			return res.url, res.body
		}
	}
	return "", ""
}

// mirrorTarget rewrites rawURL for a mirror: path-embedded for mirrors that
// accept full URLs, plain host replacement otherwise. Mirror entries default
// to https but may carry an explicit scheme.
func mirrorTarget(rawURL, mirror string) (string, error) {
	scheme, host := "https", mirror
	if i := strings.Index(mirror, "://"); i >= 0 {
		scheme, host = mirror[:i], mirror[i+3:]
	}
	if strings.Contains(host, "freedium") {
		return scheme + "://" + host + "/" + rawURL, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parsed.Scheme = scheme
	parsed.Host = host
	return parsed.String(), nil
}

// hasArticleMarker reports whether a mirror response contains the injected
// article container rather than a shell page.
func hasArticleMarker(_, body string) bool {
	return strings.Contains(body, "<article") ||
		strings.Contains(body, "main-content") ||
		strings.Contains(body, "<h1")
}

func hasErrorMarker(body string) bool {
	for _, marker := range mirrorErrorMarkers {
		if strings.Contains(body, marker) {
			logger.Debug("mirror returned error page", "marker", marker)
			return true
		}
	}
	return false
}
