// Package sources holds the closed set of source adapters that turn a URL
// into readable content, and the classifier that orders them for a given
// URL.
package sources

import (
	"context"
	"fmt"
	"net/url"

	"nook/internal/clean"
	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/fetch"
)

// Adapter is a source-specific strategy for retrieving content. An adapter
// that has nothing for a URL returns all-nil (or an empty string from
// FetchText) rather than an error; errors are reserved for genuine failures
// and never abort the resolution, only this candidate.
type Adapter interface {
	// Name identifies the adapter and is recorded as the cache source.
	Name() string

	// License classifies the content this source serves.
	License() core.License

	// CanHandle reports whether the adapter applies to the URL.
	CanHandle(u *url.URL) bool

	// FetchRendered produces a sanitized article or an external file
	// pointer. At most one of the two results is non-nil.
	FetchRendered(ctx context.Context, rawURL string) (*core.RenderedContent, *core.ExternalFile, error)

	// FetchText produces extracted plain text, or "" when unavailable.
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// Registry is the ordered, immutable adapter set built once at startup.
type Registry struct {
	specific []Adapter // priority order; first match wins
	fallback []Adapter // generic tail, always appended
}

// NewRegistry builds the full adapter set from configuration.
func NewRegistry(client *fetch.Client, cleaner *clean.Cleaner, cfg config.Sources) *Registry {
	specific := []Adapter{
		newMediumAdapter(client, cleaner, cfg.MediumMirrors, cfg.MediumPublications),
		newYouTubeAdapter(client),
		newArxivAdapter(client, cleaner),
		newPubMedAdapter(client, cleaner),
		newOpenAlexAdapter(client),
		newSemanticScholarAdapter(client, cfg.SemanticScholarKey),
		newLibgenAdapter(client, cfg.LibgenMirrors),
	}
	fallback := []Adapter{
		newReadabilityAdapter(client, cleaner),
		newMarkdownProxyAdapter(client, cfg.MarkdownProxyURL),
	}
	return &Registry{specific: specific, fallback: fallback}
}

// Classify returns the ordered adapter candidates for a URL: the first
// specific adapter whose CanHandle matches, followed by the generic fallback
// tail. With the tail registered the list is never empty; it returns
// core.ErrUnsupportedSource only when the registry was built without
// fallbacks and nothing matches.
func (r *Registry) Classify(rawURL string) ([]Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	var candidates []Adapter
	for _, a := range r.specific {
		if a.CanHandle(u) {
			candidates = append(candidates, a)
			break
		}
	}
	candidates = append(candidates, r.fallback...)

	if len(candidates) == 0 {
		return nil, core.ErrUnsupportedSource
	}
	return candidates, nil
}

// Adapters returns every registered adapter, specific before fallback.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, 0, len(r.specific)+len(r.fallback))
	out = append(out, r.specific...)
	out = append(out, r.fallback...)
	return out
}
