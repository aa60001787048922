// Package resolve orchestrates content resolution: cache check, ordered
// adapter candidates, and persistence of successful fetches.
package resolve

import (
	"context"
	"time"

	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/logger"
	"nook/internal/sources"
	"nook/internal/store"
)

// Result is the outcome of a resolution. Exactly one of Rendered and File is
// non-nil.
type Result struct {
	URL      string                `json:"url"`
	Source   string                `json:"source"`
	License  core.License          `json:"license"`
	Cached   bool                  `json:"cached"`
	Rendered *core.RenderedContent `json:"rendered,omitempty"`
	File     *core.ExternalFile    `json:"file,omitempty"`
}

// Resolver runs the resolution pipeline against the adapter registry and the
// content cache.
type Resolver struct {
	registry *sources.Registry
	store    *store.Store
	cleaner  *clean.Cleaner
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Resolver with the given cache freshness window.
func New(registry *sources.Registry, st *store.Store, cleaner *clean.Cleaner, ttl time.Duration) *Resolver {
	return &Resolver{
		registry: registry,
		store:    st,
		cleaner:  cleaner,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Unlock resolves a URL to readable content. A fresh cached fragment that
// still passes the integrity check is re-sanitized and served without any
// network traffic; otherwise the adapter candidates run in order until one
// produces content. Adapter errors are logged and skipped, never fatal.
func (r *Resolver) Unlock(ctx context.Context, rawURL string) (*Result, error) {
	if cached := r.fromCache(rawURL); cached != nil {
		return cached, nil
	}

	candidates, err := r.registry.Classify(rawURL)
	if err != nil {
		return nil, err
	}

	for _, adapter := range candidates {
		rendered, file, err := adapter.FetchRendered(ctx, rawURL)
		if err != nil {
			logger.Warn("Adapter failed, trying next candidate",
				"adapter", adapter.Name(), "url", rawURL, "error", err.Error())
			continue
		}

		// External files are served by reference and never cached.
		if file != nil {
			logger.Info("Resolved to external file", "adapter", adapter.Name(), "url", rawURL)
			return &Result{
				URL: rawURL, Source: adapter.Name(), License: adapter.License(), File: file,
			}, nil
		}

		if rendered != nil {
			r.persist(rawURL, adapter, rendered)
			logger.Info("Resolved content", "adapter", adapter.Name(), "url", rawURL)
			return &Result{
				URL: rawURL, Source: adapter.Name(), License: adapter.License(), Rendered: rendered,
			}, nil
		}
	}

	logger.Warn("All adapter candidates exhausted", "url", rawURL)
	return nil, core.ErrFetchFailed
}

// Text resolves a URL to extracted plain text for downstream language-model
// use, reusing fresh cached text when present. Returns the text and the name
// of the source that produced it.
func (r *Resolver) Text(ctx context.Context, rawURL string) (string, string, error) {
	entry, err := r.store.GetCacheEntry(rawURL)
	if err != nil {
		logger.Warn("Cache lookup failed", "url", rawURL, "error", err.Error())
	} else if entry != nil && entry.Fresh(r.ttl, r.now()) && entry.Text != "" {
		return entry.Text, entry.Source, nil
	}

	candidates, err := r.registry.Classify(rawURL)
	if err != nil {
		return "", "", err
	}

	for _, adapter := range candidates {
		text, err := adapter.FetchText(ctx, rawURL)
		if err != nil {
			logger.Warn("Adapter text fetch failed, trying next candidate",
				"adapter", adapter.Name(), "url", rawURL, "error", err.Error())
			continue
		}
		if text == "" {
			continue
		}
		r.persistText(rawURL, adapter, text)
		return text, adapter.Name(), nil
	}

	return "", "", core.ErrFetchFailed
}

// fromCache returns a cache-hit Result, or nil when the entry is absent,
// stale, or fails the integrity check.
func (r *Resolver) fromCache(rawURL string) *Result {
	entry, err := r.store.GetCacheEntry(rawURL)
	if err != nil {
		logger.Warn("Cache lookup failed", "url", rawURL, "error", err.Error())
		return nil
	}
	if entry == nil || !entry.Fresh(r.ttl, r.now()) || entry.HTML == "" {
		return nil
	}
	if !clean.Valid(entry.HTML) {
		logger.Warn("Cached fragment failed integrity check, re-fetching",
			"url", rawURL, "source", entry.Source)
		return nil
	}

	html, meta := r.cleaner.Resanitize(entry.HTML)
	return &Result{
		URL:     rawURL,
		Source:  entry.Source,
		License: entry.License,
		Cached:  true,
		Rendered: &core.RenderedContent{
			HTML: html,
			Meta: meta,
		},
	}
}

// persist writes a freshly fetched fragment to the cache. A re-fetch resets
// the text and summary fields; they are regenerated from the new content on
// demand. Persistence failures are logged but never fail the request.
func (r *Resolver) persist(rawURL string, adapter sources.Adapter, rendered *core.RenderedContent) {
	err := r.store.UpsertCacheEntry(core.CacheEntry{
		URL:       rawURL,
		Source:    adapter.Name(),
		HTML:      rendered.HTML,
		License:   adapter.License(),
		UpdatedAt: r.now().UTC(),
	})
	if err != nil {
		logger.Warn("Failed to cache content", "url", rawURL, "error", err.Error())
	}
}

// persistText writes extracted text to the cache, keeping any fragment the
// same source already cached for the URL.
func (r *Resolver) persistText(rawURL string, adapter sources.Adapter, text string) {
	entry := core.CacheEntry{
		URL:       rawURL,
		Source:    adapter.Name(),
		Text:      text,
		License:   adapter.License(),
		UpdatedAt: r.now().UTC(),
	}
	if existing, err := r.store.GetCacheEntryBySource(rawURL, adapter.Name()); err == nil && existing != nil {
		entry.HTML = existing.HTML
	}
	if err := r.store.UpsertCacheEntry(entry); err != nil {
		logger.Warn("Failed to cache text", "url", rawURL, "error", err.Error())
	}
}
