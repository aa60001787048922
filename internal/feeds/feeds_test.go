package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nook/internal/config"
)

func rssFeed(title string, entries ...[2]string) string {
	body := fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title>`, title)
	for _, e := range entries {
		body += fmt.Sprintf(`<item><title>%s</title><link>https://example.com/%s</link><pubDate>%s</pubDate></item>`,
			e[0], e[0], e[1])
	}
	return body + `</channel></rss>`
}

func TestDiscoverMergesFeedsNewestFirst(t *testing.T) {
	tech := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed("Tech",
			[2]string{"older", "Mon, 02 Jan 2023 10:00:00 GMT"},
			[2]string{"newest", "Wed, 04 Jan 2023 10:00:00 GMT"})))
	}))
	defer tech.Close()

	science := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed("Science",
			[2]string{"middle", "Tue, 03 Jan 2023 10:00:00 GMT"})))
	}))
	defer science.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	agg := New(config.Feeds{
		URLs:        []string{tech.URL, science.URL, broken.URL},
		Timeout:     5 * time.Second,
		Concurrency: 2,
	})

	items, err := agg.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items across healthy feeds, got %d", len(items))
	}
	for i, want := range []string{"newest", "middle", "older"} {
		if items[i].Title != want {
			t.Errorf("Expected item %d to be %q, got %q", i, want, items[i].Title)
		}
	}
	if items[1].Feed != "Science" {
		t.Errorf("Expected feed attribution, got %q", items[1].Feed)
	}
}

func TestDiscoverCapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed("Big",
			[2]string{"a", "Mon, 02 Jan 2023 10:00:00 GMT"},
			[2]string{"b", "Tue, 03 Jan 2023 10:00:00 GMT"},
			[2]string{"c", "Wed, 04 Jan 2023 10:00:00 GMT"})))
	}))
	defer srv.Close()

	agg := New(config.Feeds{URLs: []string{srv.URL}, Timeout: 5 * time.Second, MaxItems: 2})
	items, err := agg.Discover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("Expected cap of 2, got %d", len(items))
	}
}

func TestDiscoverEmptyConfiguration(t *testing.T) {
	items, err := New(config.Feeds{}).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
}
