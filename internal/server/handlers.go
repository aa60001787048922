package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"nook/internal/auth"
	"nook/internal/billing"
	"nook/internal/clean"
	"nook/internal/core"
	"nook/internal/llm"

	"github.com/go-chi/chi/v5"
)

var serverStartTime = time.Now()

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	if _, err := s.deps.Store.GetCacheEntry("health-probe"); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatusResponse{
		Version: "v1.0.0",
		Uptime:  time.Since(serverStartTime).String(),
	})
}

type unlockRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "a url is required")
		return
	}
	user := auth.UserFrom(r.Context())
	if err := s.deps.Quota.Consume(user, "unlock"); err != nil {
		s.respondQuotaError(w, err)
		return
	}

	result, err := s.deps.Resolver.Unlock(r.Context(), req.URL)
	if err != nil {
		s.respondResolveError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type summarizeRequest struct {
	URL string `json:"url"`
}

type summarizeResponse struct {
	URL      string `json:"url"`
	Summary  string `json:"summary"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Cached   bool   `json:"cached"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "a url is required")
		return
	}
	user := auth.UserFrom(r.Context())
	if err := s.deps.Quota.Consume(user, "summarize"); err != nil {
		s.respondQuotaError(w, err)
		return
	}

	// A fresh cached summary short-circuits the provider chain entirely.
	if entry, err := s.deps.Store.GetCacheEntry(req.URL); err == nil && entry != nil &&
		entry.Fresh(s.deps.CacheTTL, time.Now()) && entry.Summary != "" {
		s.respondJSON(w, http.StatusOK, summarizeResponse{
			URL: req.URL, Summary: entry.Summary, Cached: true,
		})
		return
	}

	text, source, err := s.deps.Resolver.Text(r.Context(), req.URL)
	if err != nil {
		s.respondResolveError(w, err)
		return
	}

	result, err := s.deps.Chain.Summarize(r.Context(), s.articleTitle(req.URL), text, user.Tier)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}

	if err := s.deps.Store.SetCachedSummary(req.URL, source, result.Text); err != nil {
		s.log.Warn("Failed to cache summary", "url", req.URL, "error", err)
	}

	s.respondJSON(w, http.StatusOK, summarizeResponse{
		URL: req.URL, Summary: result.Text, Provider: result.Provider, Model: result.Model,
	})
}

// articleTitle resolves the title for a URL from the cached fragment's
// metadata sidecar, falling back to the URL itself when nothing is cached.
func (s *Server) articleTitle(url string) string {
	entry, err := s.deps.Store.GetCacheEntry(url)
	if err != nil || entry == nil || entry.HTML == "" {
		return url
	}
	if title := clean.ExtractMetadata(entry.HTML).Title; title != "" {
		return title
	}
	return url
}

type chatRequest struct {
	URL      string        `json:"url"`
	Question string        `json:"question"`
	History  []llm.Message `json:"history,omitempty"`
}

type chatResponse struct {
	URL      string `json:"url"`
	Answer   string `json:"answer"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" || req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "a url and question are required")
		return
	}
	user := auth.UserFrom(r.Context())
	if err := s.deps.Quota.Consume(user, "chat"); err != nil {
		s.respondQuotaError(w, err)
		return
	}

	text, _, err := s.deps.Resolver.Text(r.Context(), req.URL)
	if err != nil {
		s.respondResolveError(w, err)
		return
	}

	result, err := s.deps.Chain.Chat(r.Context(), text, req.History, req.Question, user.Tier)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, chatResponse{
		URL: req.URL, Answer: result.Text, Provider: result.Provider, Model: result.Model,
	})
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	articles, err := s.deps.Store.ListSavedArticles(user.ID)
	if err != nil {
		s.log.Error("Failed to list saved articles", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if articles == nil {
		articles = []core.SavedArticle{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

type saveArticleRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}

func (s *Server) handleSaveArticle(w http.ResponseWriter, r *http.Request) {
	var req saveArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "a url is required")
		return
	}
	user := auth.UserFrom(r.Context())
	article, err := s.deps.Store.SaveArticle(user.ID, req.URL, req.Title, req.Summary)
	if err != nil {
		s.log.Error("Failed to save article", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusCreated, article)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	user := auth.UserFrom(r.Context())
	if err := s.deps.Store.DeleteSavedArticle(user.ID, id); err != nil {
		s.respondError(w, http.StatusNotFound, "article not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type usageResponse struct {
	Tier      core.Tier       `json:"tier"`
	Date      string          `json:"date"`
	Usage     []core.UsageLog `json:"usage"`
	Remaining map[string]int  `json:"remaining"` // -1 means unlimited
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFrom(r.Context())
	date := time.Now().UTC().Format("2006-01-02")

	logs, err := s.deps.Store.GetUsage(user.ID, date)
	if err != nil {
		s.log.Error("Failed to read usage", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if logs == nil {
		logs = []core.UsageLog{}
	}

	remaining := make(map[string]int)
	for _, action := range []string{"unlock", "summarize", "chat"} {
		left, err := s.deps.Quota.Remaining(user, action)
		if err != nil {
			s.log.Error("Failed to compute remaining quota", "action", action, "error", err)
			continue
		}
		remaining[action] = left
	}

	s.respondJSON(w, http.StatusOK, usageResponse{
		Tier: user.Tier, Date: date, Usage: logs, Remaining: remaining,
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Feeds.Discover(r.Context())
	if err != nil {
		s.log.Error("Discover failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	user, err := s.deps.Billing.HandleEvent(payload, r.Header.Get("X-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrBadSignature):
			s.respondError(w, http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, billing.ErrUnknownTier):
			s.respondError(w, http.StatusUnprocessableEntity, "unknown tier")
		default:
			s.respondError(w, http.StatusBadRequest, "invalid event")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"email": user.Email, "tier": user.Tier})
}

type cacheFlushRequest struct {
	URL string `json:"url,omitempty"` // empty flushes everything
}

func (s *Server) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	var req cacheFlushRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var err error
	if req.URL != "" {
		err = s.deps.Store.DeleteCacheEntry(req.URL)
	} else {
		err = s.deps.Store.FlushCache()
	}
	if err != nil {
		s.log.Error("Cache flush failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

// --- response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondResolveError maps the resolution failure taxonomy to HTTP statuses.
func (s *Server) respondResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnsupportedSource):
		s.respondError(w, http.StatusUnprocessableEntity, core.ErrUnsupportedSource.Error())
	case errors.Is(err, core.ErrFetchFailed):
		s.respondError(w, http.StatusNotFound, core.ErrFetchFailed.Error())
	case errors.Is(err, core.ErrUnsafeTarget):
		s.respondError(w, http.StatusBadRequest, core.ErrUnsafeTarget.Error())
	case errors.Is(err, core.ErrContentTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, core.ErrContentTooLarge.Error())
	default:
		s.log.Error("Resolution failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrRateLimited):
		s.respondError(w, http.StatusTooManyRequests, core.ErrRateLimited.Error())
	case errors.Is(err, core.ErrProviderUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, core.ErrProviderUnavailable.Error())
	default:
		s.log.Error("Provider chain failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondQuotaError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrQuotaExceeded) {
		s.respondError(w, http.StatusTooManyRequests, auth.ErrQuotaExceeded.Error())
		return
	}
	s.log.Error("Quota check failed", "error", err)
	s.respondError(w, http.StatusInternalServerError, "internal error")
}
