// Package feeds aggregates configured RSS/Atom feeds into a single
// discover listing.
package feeds

import (
	"context"
	"sort"
	"sync"
	"time"

	"nook/internal/config"
	"nook/internal/logger"

	"github.com/mmcdole/gofeed"
)

// Item is one discoverable article from a feed.
type Item struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Feed      string    `json:"feed"`
	Published time.Time `json:"published"`
	Summary   string    `json:"summary,omitempty"`
}

// Aggregator fetches and merges the configured feeds.
type Aggregator struct {
	cfg config.Feeds
}

// New creates an Aggregator.
func New(cfg config.Feeds) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Discover fetches every configured feed with bounded concurrency and
// returns the merged items, newest first, capped at the configured maximum.
// Individual feed failures are logged and skipped.
func (a *Aggregator) Discover(ctx context.Context) ([]Item, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	concurrency := a.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var items []Item
	var wg sync.WaitGroup

	for _, feedURL := range a.cfg.URLs {
		wg.Add(1)
		go func(feedURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			parsed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
			if err != nil {
				logger.Warn("Feed fetch failed, skipping", "feed", feedURL, "error", err.Error())
				return
			}

			mu.Lock()
			defer mu.Unlock()
			for _, entry := range parsed.Items {
				if entry.Link == "" {
					continue
				}
				item := Item{
					Title:   entry.Title,
					URL:     entry.Link,
					Feed:    parsed.Title,
					Summary: entry.Description,
				}
				if entry.PublishedParsed != nil {
					item.Published = *entry.PublishedParsed
				} else if entry.UpdatedParsed != nil {
					item.Published = *entry.UpdatedParsed
				}
				items = append(items, item)
			}
		}(feedURL)
	}
	wg.Wait()

	sort.Slice(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	if a.cfg.MaxItems > 0 && len(items) > a.cfg.MaxItems {
		items = items[:a.cfg.MaxItems]
	}
	return items, nil
}
