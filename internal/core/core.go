package core

import "time"

// License classifies how freely a source's content may be redistributed.
type License string

const (
	LicensePublicArchive License = "public-archive"
	LicenseOpenAccess    License = "open-access"
	LicenseStandard      License = "standard-license"
	LicenseCopyrighted   License = "copyrighted"
	LicenseUnknown       License = "unknown"
)

// Tier is a user's subscription level.
type Tier string

const (
	TierSeeker  Tier = "seeker" // free
	TierInsider Tier = "insider"
	TierPatron  Tier = "patron"
)

// MaxTags caps the number of tags extracted from an article.
const MaxTags = 10

// Metadata holds the structured fields extracted alongside a cleaned article.
type Metadata struct {
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Published string   `json:"published"` // ISO date (YYYY-MM-DD); today if unknown
	Thumbnail string   `json:"thumbnail,omitempty"`
	Tags      []string `json:"tags,omitempty"` // ordered, deduplicated, capped at MaxTags
}

// RenderedContent is a sanitized HTML article fragment plus its metadata.
type RenderedContent struct {
	HTML string   `json:"html"`
	Meta Metadata `json:"meta"`
}

// ExternalFile points at a document that is served by reference rather than
// inline (e.g. a PDF download). Mutually exclusive with RenderedContent for
// a given adapter outcome.
type ExternalFile struct {
	Kind        string `json:"kind"` // currently always "pdf"
	DownloadURL string `json:"download_url"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
}

// CacheEntry is one row of the content cache, keyed by (url, source).
// The three payload fields are each independently presence-gated: an empty
// string means "not cached", never "cached as empty".
type CacheEntry struct {
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	HTML      string    `json:"html,omitempty"`
	Text      string    `json:"text,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	License   License   `json:"license"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fresh reports whether the entry is younger than ttl.
func (e CacheEntry) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.UpdatedAt) < ttl
}

// User is a registered reader.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedArticle is a user's library entry.
type SavedArticle struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageLog is a per-user, per-day, per-action counter.
type UsageLog struct {
	UserID int64  `json:"user_id"`
	Date   string `json:"date"` // YYYY-MM-DD
	Action string `json:"action"`
	Count  int    `json:"count"`
}
