package billing

import (
	"errors"
	"testing"

	"nook/internal/core"
	"nook/internal/store"
)

func testService(t *testing.T) (*Service, *store.Store, *HMACVerifier) {
	t.Helper()
	st, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	verifier := NewHMACVerifier("webhook-secret")
	return NewService(verifier, st), st, verifier
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("s3cret")
	payload := []byte(`{"email":"a@b.c","tier":"patron"}`)
	sig := v.Sign(payload)

	if !v.Verify(payload, sig) {
		t.Error("Expected a valid signature to verify")
	}
	if !v.Verify(payload, "sha256="+sig) {
		t.Error("Expected the prefixed form to verify")
	}
	if v.Verify(payload, "deadbeef") {
		t.Error("Expected a wrong signature to fail")
	}
	if v.Verify([]byte(`tampered`), sig) {
		t.Error("Expected a tampered payload to fail")
	}
	if NewHMACVerifier("").Verify(payload, sig) {
		t.Error("Expected verification to fail without a configured secret")
	}
}

func TestHandleEventUpgradesTier(t *testing.T) {
	svc, st, verifier := testService(t)
	payload := []byte(`{"email":"upgrader@example.com","tier":"insider"}`)

	user, err := svc.HandleEvent(payload, verifier.Sign(payload))
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if user.Tier != core.TierInsider {
		t.Errorf("Expected insider, got %q", user.Tier)
	}

	stored, err := st.GetUserByEmail("upgrader@example.com")
	if err != nil || stored == nil {
		t.Fatalf("Expected persisted user, got %+v err=%v", stored, err)
	}
	if stored.Tier != core.TierInsider {
		t.Errorf("Expected persisted tier insider, got %q", stored.Tier)
	}
}

func TestHandleEventRejectsBadSignature(t *testing.T) {
	svc, _, _ := testService(t)
	payload := []byte(`{"email":"a@b.c","tier":"patron"}`)

	if _, err := svc.HandleEvent(payload, "sha256=bogus"); !errors.Is(err, ErrBadSignature) {
		t.Errorf("Expected ErrBadSignature, got %v", err)
	}
}

func TestHandleEventRejectsUnknownTier(t *testing.T) {
	svc, _, verifier := testService(t)
	payload := []byte(`{"email":"a@b.c","tier":"platinum"}`)

	if _, err := svc.HandleEvent(payload, verifier.Sign(payload)); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("Expected ErrUnknownTier, got %v", err)
	}
}
