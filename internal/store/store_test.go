package store

import (
	"testing"
	"time"

	"nook/internal/core"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCacheUpsertUpdatesInPlace(t *testing.T) {
	s := testStore(t)

	first := core.CacheEntry{
		URL: "https://medium.com/@x/post", Source: "medium",
		HTML: "<div>v1</div>", Text: "v1 text",
		License: core.LicenseStandard, UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := s.UpsertCacheEntry(first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second := first
	second.HTML = "<div>v2</div>"
	second.UpdatedAt = time.Now().UTC()
	if err := s.UpsertCacheEntry(second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := s.GetCacheEntry(first.URL)
	if err != nil {
		t.Fatalf("GetCacheEntry failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a cache hit")
	}
	if got.HTML != "<div>v2</div>" {
		t.Errorf("Expected updated row, got html %q", got.HTML)
	}
	if got.Source != "medium" || got.License != core.LicenseStandard {
		t.Errorf("Expected source/license to round-trip, got %q %q", got.Source, got.License)
	}
}

func TestCacheMissReturnsNil(t *testing.T) {
	s := testStore(t)
	got, err := s.GetCacheEntry("https://example.com/never-seen")
	if err != nil {
		t.Fatalf("GetCacheEntry failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil on miss, got %+v", got)
	}
}

func TestCacheMostRecentSourceWins(t *testing.T) {
	s := testStore(t)
	url := "https://example.com/article"

	old := core.CacheEntry{URL: url, Source: "readability", HTML: "<div>old</div>",
		License: core.LicenseUnknown, UpdatedAt: time.Now().UTC().Add(-2 * time.Hour)}
	newer := core.CacheEntry{URL: url, Source: "markdown-proxy", HTML: "<div>new</div>",
		License: core.LicenseUnknown, UpdatedAt: time.Now().UTC()}

	if err := s.UpsertCacheEntry(old); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCacheEntry(newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCacheEntry(url)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "markdown-proxy" {
		t.Errorf("Expected most recent source, got %q", got.Source)
	}
}

func TestSetCachedSummary(t *testing.T) {
	s := testStore(t)
	entry := core.CacheEntry{URL: "https://example.com/a", Source: "readability",
		HTML: "<div>body</div>", License: core.LicenseUnknown, UpdatedAt: time.Now().UTC()}
	if err := s.UpsertCacheEntry(entry); err != nil {
		t.Fatal(err)
	}

	if err := s.SetCachedSummary(entry.URL, entry.Source, "A summary."); err != nil {
		t.Fatalf("SetCachedSummary failed: %v", err)
	}

	got, err := s.GetCacheEntryBySource(entry.URL, entry.Source)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "A summary." {
		t.Errorf("Expected summary to persist, got %q", got.Summary)
	}
	if got.HTML != "<div>body</div>" {
		t.Errorf("Expected html untouched, got %q", got.HTML)
	}
}

func TestDeleteAndFlushCache(t *testing.T) {
	s := testStore(t)
	for _, u := range []string{"https://a.example/1", "https://b.example/2"} {
		if err := s.UpsertCacheEntry(core.CacheEntry{
			URL: u, Source: "readability", HTML: "<div>x</div>",
			License: core.LicenseUnknown, UpdatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeleteCacheEntry("https://a.example/1"); err != nil {
		t.Fatalf("DeleteCacheEntry failed: %v", err)
	}
	if got, _ := s.GetCacheEntry("https://a.example/1"); got != nil {
		t.Error("Expected deleted entry to be gone")
	}
	if got, _ := s.GetCacheEntry("https://b.example/2"); got == nil {
		t.Error("Expected other entry to survive a targeted delete")
	}

	if err := s.FlushCache(); err != nil {
		t.Fatalf("FlushCache failed: %v", err)
	}
	if got, _ := s.GetCacheEntry("https://b.example/2"); got != nil {
		t.Error("Expected full flush to remove everything")
	}
}

func TestCreateOrGetUserIsIdempotent(t *testing.T) {
	s := testStore(t)

	first, err := s.CreateOrGetUser("reader@example.com")
	if err != nil {
		t.Fatalf("CreateOrGetUser failed: %v", err)
	}
	if first.Tier != core.TierSeeker {
		t.Errorf("Expected new users to start as seeker, got %q", first.Tier)
	}

	again, err := s.CreateOrGetUser("reader@example.com")
	if err != nil {
		t.Fatalf("Second CreateOrGetUser failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Expected same user on repeat, got ids %d and %d", first.ID, again.ID)
	}
}

func TestUpdateUserTier(t *testing.T) {
	s := testStore(t)
	user, err := s.CreateOrGetUser("upgrade@example.com")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateUserTier(user.ID, core.TierPatron); err != nil {
		t.Fatalf("UpdateUserTier failed: %v", err)
	}
	got, err := s.GetUserByEmail("upgrade@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != core.TierPatron {
		t.Errorf("Expected patron, got %q", got.Tier)
	}

	if err := s.UpdateUserTier(99999, core.TierInsider); err == nil {
		t.Error("Expected error updating a nonexistent user")
	}
}

func TestSavedArticlesLifecycle(t *testing.T) {
	s := testStore(t)
	user, err := s.CreateOrGetUser("library@example.com")
	if err != nil {
		t.Fatal(err)
	}

	saved, err := s.SaveArticle(user.ID, "https://example.com/a", "Article A", "sum")
	if err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	if _, err := s.SaveArticle(user.ID, "https://example.com/b", "Article B", ""); err != nil {
		t.Fatal(err)
	}

	articles, err := s.ListSavedArticles(user.ID)
	if err != nil {
		t.Fatalf("ListSavedArticles failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("Expected 2 saved articles, got %d", len(articles))
	}

	if err := s.DeleteSavedArticle(user.ID, saved.ID); err != nil {
		t.Fatalf("DeleteSavedArticle failed: %v", err)
	}
	articles, _ = s.ListSavedArticles(user.ID)
	if len(articles) != 1 || articles[0].Title != "Article B" {
		t.Errorf("Expected only Article B to remain, got %+v", articles)
	}

	if err := s.DeleteSavedArticle(user.ID, saved.ID); err == nil {
		t.Error("Expected error deleting an already-deleted article")
	}
}

func TestUsageCountersIncrementPerAction(t *testing.T) {
	s := testStore(t)
	user, err := s.CreateOrGetUser("counter@example.com")
	if err != nil {
		t.Fatal(err)
	}
	date := "2026-09-01"

	for want := 1; want <= 3; want++ {
		count, err := s.IncrementUsage(user.ID, date, "unlock")
		if err != nil {
			t.Fatalf("IncrementUsage failed: %v", err)
		}
		if count != want {
			t.Errorf("Expected count %d, got %d", want, count)
		}
	}
	if _, err := s.IncrementUsage(user.ID, date, "summarize"); err != nil {
		t.Fatal(err)
	}

	logs, err := s.GetUsage(user.ID, date)
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 actions, got %d", len(logs))
	}

	count, err := s.GetUsageCount(user.ID, date, "unlock")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected unlock count 3, got %d", count)
	}
	if count, _ := s.GetUsageCount(user.ID, "2026-09-02", "unlock"); count != 0 {
		t.Errorf("Expected a fresh day to start at 0, got %d", count)
	}
}
