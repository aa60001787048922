package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nook/internal/config"
	"nook/internal/core"
)

func testConfig(allowPrivate bool) config.Fetch {
	return config.Fetch{
		Timeout:             5 * time.Second,
		MirrorTimeout:       2 * time.Second,
		AllowPrivateTargets: allowPrivate,
		UserAgent:           "nook-test/1.0",
	}
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "nook-test/1.0" {
			t.Errorf("Expected configured user agent, got %q", got)
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := New(testConfig(true))
	resp, err := client.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "hello" {
		t.Errorf("Expected body 'hello', got %q", resp.Body)
	}
}

func TestGetLimited_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	client := New(testConfig(true))
	_, err := client.GetLimited(context.Background(), srv.URL, 1024)
	if !errors.Is(err, core.ErrContentTooLarge) {
		t.Errorf("Expected ErrContentTooLarge, got %v", err)
	}
}

func TestGetLimited_UnderCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("small"))
	}))
	defer srv.Close()

	client := New(testConfig(true))
	resp, err := client.GetLimited(context.Background(), srv.URL, 1024)
	if err != nil {
		t.Fatalf("GetLimited failed: %v", err)
	}
	if string(resp.Body) != "small" {
		t.Errorf("Expected body 'small', got %q", resp.Body)
	}
}

func TestPrivateTargetsRejected(t *testing.T) {
	client := New(testConfig(false))

	for _, target := range []string{"http://127.0.0.1/x", "http://10.0.0.5/x", "http://169.254.1.1/x"} {
		_, err := client.Get(context.Background(), target)
		if !errors.Is(err, core.ErrUnsafeTarget) {
			t.Errorf("Expected ErrUnsafeTarget for %s, got %v", target, err)
		}
	}
}

func TestPrivateTargetsAllowedWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(testConfig(true))
	resp, err := client.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Expected loopback fetch to succeed with private targets allowed: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("Expected body 'ok', got %q", resp.Body)
	}
}

func TestUnsupportedScheme(t *testing.T) {
	client := New(testConfig(true))
	if _, err := client.Get(context.Background(), "ftp://example.com/file"); err == nil {
		t.Error("Expected error for ftp scheme")
	}
}
