// Package billing verifies signed payment events and applies tier upgrades.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nook/internal/core"
	"nook/internal/logger"
	"nook/internal/store"
)

var (
	// ErrBadSignature means the event signature does not match the payload.
	ErrBadSignature = errors.New("invalid event signature")

	// ErrUnknownTier means the event names a tier that does not exist.
	ErrUnknownTier = errors.New("unknown subscription tier")
)

// SignatureVerifier checks the authenticity of a webhook payload.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

// HMACVerifier verifies hex-encoded HMAC-SHA256 signatures, with or without
// the conventional "sha256=" prefix.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the shared webhook secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(payload []byte, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign produces the hex HMAC-SHA256 signature for a payload. Used by tests
// and by outbound webhook tooling.
func (v *HMACVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is a payment notification: a user reached a subscription tier.
type Event struct {
	Email string `json:"email"`
	Tier  string `json:"tier"`
}

// Service applies verified payment events to user records.
type Service struct {
	verifier SignatureVerifier
	store    *store.Store
}

// NewService creates the billing service.
func NewService(verifier SignatureVerifier, st *store.Store) *Service {
	return &Service{verifier: verifier, store: st}
}

// HandleEvent verifies and applies one payment event, returning the updated
// user.
func (s *Service) HandleEvent(payload []byte, signature string) (*core.User, error) {
	if !s.verifier.Verify(payload, signature) {
		return nil, ErrBadSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if event.Email == "" {
		return nil, errors.New("event is missing an email")
	}

	tier := core.Tier(event.Tier)
	switch tier {
	case core.TierSeeker, core.TierInsider, core.TierPatron:
	default:
		return nil, ErrUnknownTier
	}

	user, err := s.store.CreateOrGetUser(event.Email)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateUserTier(user.ID, tier); err != nil {
		return nil, err
	}
	user.Tier = tier

	logger.Info("Applied payment event", "email", event.Email, "tier", string(tier))
	return user, nil
}
