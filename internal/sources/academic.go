package sources

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/fetch"
)

// arxivAdapter serves arxiv.org abstract pages through the generic cleaner.
type arxivAdapter struct {
	client  *fetch.Client
	cleaner *clean.Cleaner
}

func newArxivAdapter(client *fetch.Client, cleaner *clean.Cleaner) *arxivAdapter {
	return &arxivAdapter{client: client, cleaner: cleaner}
}

func (a *arxivAdapter) Name() string          { return "arxiv" }
func (a *arxivAdapter) License() core.License { return core.LicenseOpenAccess }

func (a *arxivAdapter) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	return host == "arxiv.org" || host == "www.arxiv.org"
}

func (a *arxivAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	return fetchAndClean(ctx, a.client, a.cleaner, rawURL)
}

func (a *arxivAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	return fetchText(ctx, a.client, rawURL)
}

var pmcIDPattern = regexp.MustCompile(`PMC\d+`)

// pubmedAdapter serves PubMed Central article pages. The path must carry a
// PMC article-ID segment; bare search or listing pages are not articles.
type pubmedAdapter struct {
	client  *fetch.Client
	cleaner *clean.Cleaner
}

func newPubMedAdapter(client *fetch.Client, cleaner *clean.Cleaner) *pubmedAdapter {
	return &pubmedAdapter{client: client, cleaner: cleaner}
}

func (a *pubmedAdapter) Name() string          { return "pubmed" }
func (a *pubmedAdapter) License() core.License { return core.LicenseOpenAccess }

func (a *pubmedAdapter) CanHandle(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host != "pmc.ncbi.nlm.nih.gov" && host != "www.ncbi.nlm.nih.gov" {
		return false
	}
	return pmcIDPattern.MatchString(u.Path)
}

func (a *pubmedAdapter) FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	return fetchAndClean(ctx, a.client, a.cleaner, rawURL)
}

func (a *pubmedAdapter) FetchText(ctx context.Context, rawURL string) (string, error) {
	return fetchText(ctx, a.client, rawURL)
}

// fetchAndClean is the shared single-fetch path: canonical URL, generic
// cleaner, nothing source-specific.
func fetchAndClean(ctx context.Context, client *fetch.Client, cleaner *clean.Cleaner, rawURL string) (*core.RenderedContent, *core.ExternalFile, error) {
	resp, err := client.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, nil
	}
	html, meta, err := cleaner.Clean(string(resp.Body), rawURL)
	if err != nil {
		return nil, nil, err
	}
	return &core.RenderedContent{HTML: html, Meta: meta}, nil, nil
}

// longEnough is the shared text-length gate: an extraction counts as a real
// article only when it is strictly longer than the minimum.
func longEnough(text string) bool {
	return len(text) > clean.MinTextLength
}

func fetchText(ctx context.Context, client *fetch.Client, rawURL string) (string, error) {
	resp, err := client.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", nil
	}
	text := clean.ExtractText(string(resp.Body), rawURL)
	if !longEnough(text) {
		return "", nil
	}
	return text, nil
}
