// Package store persists users, saved articles, usage counters, and the
// content cache in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nook/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "nook.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		tier TEXT NOT NULL DEFAULT 'seeker',
		admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`

	savedArticlesTable := `
	CREATE TABLE IF NOT EXISTS saved_articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		summary TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`

	usageLogsTable := `
	CREATE TABLE IF NOT EXISTS usage_logs (
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		action TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, date, action)
	);`

	contentCacheTable := `
	CREATE TABLE IF NOT EXISTS content_cache (
		url TEXT NOT NULL,
		source TEXT NOT NULL,
		html TEXT,
		text_content TEXT,
		summary TEXT,
		license TEXT NOT NULL DEFAULT 'unknown',
		updated_at DATETIME NOT NULL,
		UNIQUE (url, source)
	);`

	for _, table := range []string{usersTable, savedArticlesTable, usageLogsTable, contentCacheTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure,
// the recoverable race two concurrent resolvers can hit on first insert.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- content cache ---

// UpsertCacheEntry inserts a cache row or updates it in place when the
// (url, source) key already exists, so a second writer discovering the row
// mid-race updates it rather than violating the uniqueness invariant.
func (s *Store) UpsertCacheEntry(entry core.CacheEntry) error {
	query := `
	INSERT INTO content_cache (url, source, html, text_content, summary, license, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (url, source) DO UPDATE SET
		html = excluded.html,
		text_content = excluded.text_content,
		summary = excluded.summary,
		license = excluded.license,
		updated_at = excluded.updated_at`

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(query,
		entry.URL, entry.Source, entry.HTML, entry.Text, entry.Summary,
		string(entry.License), entry.UpdatedAt)
	return err
}

// GetCacheEntry returns the most recently updated cache row for a URL,
// regardless of source (the source is unknown ahead of resolution), or nil
// on a miss.
func (s *Store) GetCacheEntry(url string) (*core.CacheEntry, error) {
	query := `
	SELECT url, source, html, text_content, summary, license, updated_at
	FROM content_cache
	WHERE url = ?
	ORDER BY updated_at DESC
	LIMIT 1`

	return s.scanCacheEntry(s.db.QueryRow(query, url))
}

// GetCacheEntryBySource returns the cache row for an exact (url, source)
// pair, or nil on a miss.
func (s *Store) GetCacheEntryBySource(url, source string) (*core.CacheEntry, error) {
	query := `
	SELECT url, source, html, text_content, summary, license, updated_at
	FROM content_cache
	WHERE url = ? AND source = ?`

	return s.scanCacheEntry(s.db.QueryRow(query, url, source))
}

func (s *Store) scanCacheEntry(row *sql.Row) (*core.CacheEntry, error) {
	var entry core.CacheEntry
	var html, text, summary, license sql.NullString

	err := row.Scan(&entry.URL, &entry.Source, &html, &text, &summary, &license, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}

	entry.HTML = html.String
	entry.Text = text.String
	entry.Summary = summary.String
	entry.License = core.License(license.String)
	return &entry, nil
}

// SetCachedSummary stores an AI summary on an existing cache row.
func (s *Store) SetCachedSummary(url, source, summary string) error {
	_, err := s.db.Exec(
		`UPDATE content_cache SET summary = ?, updated_at = ? WHERE url = ? AND source = ?`,
		summary, time.Now().UTC(), url, source)
	return err
}

// DeleteCacheEntry removes all cache rows for a URL (administrative flush).
func (s *Store) DeleteCacheEntry(url string) error {
	_, err := s.db.Exec(`DELETE FROM content_cache WHERE url = ?`, url)
	return err
}

// FlushCache removes every cache row (administrative flush).
func (s *Store) FlushCache() error {
	if _, err := s.db.Exec(`DELETE FROM content_cache`); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	_, err := s.db.Exec("VACUUM")
	return err
}

// --- users ---

// CreateOrGetUser returns the user for an email, creating a seeker-tier
// record on first sight.
func (s *Store) CreateOrGetUser(email string) (*core.User, error) {
	_, err := s.db.Exec(
		`INSERT INTO users (email, tier, created_at) VALUES (?, ?, ?)`,
		email, string(core.TierSeeker), time.Now().UTC())
	if err != nil && !IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.GetUserByEmail(email)
}

// GetUserByEmail returns a user or nil when unknown.
func (s *Store) GetUserByEmail(email string) (*core.User, error) {
	row := s.db.QueryRow(
		`SELECT id, email, tier, admin, created_at FROM users WHERE email = ?`, email)

	var user core.User
	var tier string
	var admin int
	err := row.Scan(&user.ID, &user.Email, &tier, &admin, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.Tier = core.Tier(tier)
	user.Admin = admin != 0
	return &user, nil
}

// UpdateUserTier changes a user's subscription tier.
func (s *Store) UpdateUserTier(userID int64, tier core.Tier) error {
	res, err := s.db.Exec(`UPDATE users SET tier = ? WHERE id = ?`, string(tier), userID)
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no user with id %d", userID)
	}
	return nil
}

// SetUserAdmin grants or revokes administrative access.
func (s *Store) SetUserAdmin(userID int64, admin bool) error {
	val := 0
	if admin {
		val = 1
	}
	res, err := s.db.Exec(`UPDATE users SET admin = ? WHERE id = ?`, val, userID)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no user with id %d", userID)
	}
	return nil
}

// --- saved articles ---

// SaveArticle adds an article to a user's library.
func (s *Store) SaveArticle(userID int64, url, title, summary string) (*core.SavedArticle, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO saved_articles (user_id, url, title, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, url, title, summary, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save article: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &core.SavedArticle{
		ID: id, UserID: userID, URL: url, Title: title, Summary: summary, CreatedAt: now,
	}, nil
}

// ListSavedArticles returns a user's library, newest first.
func (s *Store) ListSavedArticles(userID int64) ([]core.SavedArticle, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, url, title, summary, created_at
		 FROM saved_articles WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved articles: %w", err)
	}
	defer rows.Close()

	var articles []core.SavedArticle
	for rows.Next() {
		var a core.SavedArticle
		var title, summary sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.URL, &title, &summary, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved article: %w", err)
		}
		a.Title = title.String
		a.Summary = summary.String
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// DeleteSavedArticle removes one of a user's library entries.
func (s *Store) DeleteSavedArticle(userID, articleID int64) error {
	res, err := s.db.Exec(
		`DELETE FROM saved_articles WHERE id = ? AND user_id = ?`, articleID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete saved article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no saved article %d for user %d", articleID, userID)
	}
	return nil
}

// --- usage ---

// IncrementUsage bumps the daily counter for an action and returns the new
// count.
func (s *Store) IncrementUsage(userID int64, date, action string) (int, error) {
	_, err := s.db.Exec(`
		INSERT INTO usage_logs (user_id, date, action, count) VALUES (?, ?, ?, 1)
		ON CONFLICT (user_id, date, action) DO UPDATE SET count = count + 1`,
		userID, date, action)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	return s.GetUsageCount(userID, date, action)
}

// GetUsageCount returns a single day's counter for an action.
func (s *Store) GetUsageCount(userID int64, date, action string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT count FROM usage_logs WHERE user_id = ? AND date = ? AND action = ?`,
		userID, date, action).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	return count, nil
}

// GetUsage returns all of a user's counters for a day.
func (s *Store) GetUsage(userID int64, date string) ([]core.UsageLog, error) {
	rows, err := s.db.Query(
		`SELECT user_id, date, action, count FROM usage_logs WHERE user_id = ? AND date = ?`,
		userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}
	defer rows.Close()

	var logs []core.UsageLog
	for rows.Next() {
		var l core.UsageLog
		if err := rows.Scan(&l.UserID, &l.Date, &l.Action, &l.Count); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
