// Package auth verifies bearer tokens, attaches the user to the request
// context, and enforces per-tier daily quotas.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/logger"
	"nook/internal/store"
)

var (
	// ErrInvalidToken means the bearer token is missing or unrecognized.
	ErrInvalidToken = errors.New("invalid or missing token")

	// ErrQuotaExceeded means the user's daily allowance for an action ran out.
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)

// Verifier maps a bearer token to a user identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (email string, err error)
}

// StaticVerifier verifies tokens against a configured token -> email map.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier over the configured token map.
func NewStaticVerifier(cfg config.AuthToken) *StaticVerifier {
	return &StaticVerifier{tokens: cfg.Tokens}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (string, error) {
	email, ok := v.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return email, nil
}

type contextKey string

const userKey contextKey = "nook.user"

// UserFrom returns the authenticated user attached by Middleware, or nil.
func UserFrom(ctx context.Context) *core.User {
	user, _ := ctx.Value(userKey).(*core.User)
	return user
}

// WithUser attaches a user to the context.
func WithUser(ctx context.Context, user *core.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// Middleware authenticates requests with a bearer token and loads (creating
// on first sight) the user record.
func Middleware(verifier Verifier, st *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			email, err := verifier.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w)
				return
			}
			user, err := st.CreateOrGetUser(email)
			if err != nil {
				logger.Error("Failed to load user", err, "email", email)
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects authenticated requests from non-admin users.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFrom(r.Context())
		if user == nil || !user.Admin {
			http.Error(w, `{"error":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"invalid or missing token"}`))
}

// Quota enforces per-tier daily allowances backed by the usage log.
type Quota struct {
	store  *store.Store
	quotas config.Quotas
	now    func() time.Time
}

// NewQuota creates a quota enforcer.
func NewQuota(st *store.Store, quotas config.Quotas) *Quota {
	return &Quota{store: st, quotas: quotas, now: time.Now}
}

// Consume records one use of an action and returns ErrQuotaExceeded when
// the day's allowance is spent. A zero allowance means unlimited.
func (q *Quota) Consume(user *core.User, action string) error {
	allowance := q.quotas.Allowance(action, string(user.Tier))
	if allowance <= 0 {
		_, err := q.store.IncrementUsage(user.ID, q.today(), action)
		return err
	}

	count, err := q.store.IncrementUsage(user.ID, q.today(), action)
	if err != nil {
		return err
	}
	if count > allowance {
		return ErrQuotaExceeded
	}
	return nil
}

// Remaining reports how many uses of an action are left today (-1 for
// unlimited).
func (q *Quota) Remaining(user *core.User, action string) (int, error) {
	allowance := q.quotas.Allowance(action, string(user.Tier))
	if allowance <= 0 {
		return -1, nil
	}
	count, err := q.store.GetUsageCount(user.ID, q.today(), action)
	if err != nil {
		return 0, err
	}
	if count >= allowance {
		return 0, nil
	}
	return allowance - count, nil
}

func (q *Quota) today() string {
	return q.now().UTC().Format("2006-01-02")
}
