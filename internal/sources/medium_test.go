package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nook/internal/clean"
	"nook/internal/config"
	"nook/internal/fetch"
)

func testClient() *fetch.Client {
	return fetch.New(config.Fetch{
		Timeout:             5 * time.Second,
		MirrorTimeout:       2 * time.Second,
		AllowPrivateTargets: true,
		UserAgent:           "nook-test/1.0",
	})
}

func articleBody() string {
	return `<html><head><title>The Post | by Jane Doe</title></head><body><article><h1>The Post</h1><p>` +
		strings.Repeat("Real article content with substance. ", 20) + `</p></article></body></html>`
}

func TestMediumFanOutFirstValidMirrorWins(t *testing.T) {
	shell := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>nothing here</div></body></html>"))
	}))
	defer shell.Close()

	failed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article>Failed to render</article></body></html>"))
	}))
	defer failed.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleBody()))
	}))
	defer good.Close()

	adapter := newMediumAdapter(testClient(), clean.New(""),
		[]string{shell.URL, failed.URL, good.URL}, nil)

	rendered, file, err := adapter.FetchRendered(context.Background(), "https://medium.com/@x/post-aaaa")
	if err != nil {
		t.Fatalf("FetchRendered failed: %v", err)
	}
	if file != nil {
		t.Fatal("Expected rendered content, got external file")
	}
	if rendered == nil {
		t.Fatal("Expected rendered content from the valid mirror")
	}
	if !strings.Contains(rendered.HTML, "Real article content") {
		t.Errorf("Expected winning mirror's content, got %q", rendered.HTML)
	}
	if rendered.Meta.Title != "The Post" {
		t.Errorf("Expected title 'The Post', got %q", rendered.Meta.Title)
	}
}

func TestMediumFanOutAllMirrorsFail(t *testing.T) {
	shell := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>no marker</div></body></html>"))
	}))
	defer shell.Close()

	adapter := newMediumAdapter(testClient(), clean.New(""), []string{shell.URL, shell.URL}, nil)

	rendered, file, err := adapter.FetchRendered(context.Background(), "https://medium.com/@x/post-bbbb")
	if err != nil {
		t.Fatalf("Expected graceful absence, got error: %v", err)
	}
	if rendered != nil || file != nil {
		t.Error("Expected no result when no mirror has the article marker")
	}
}

func TestMediumFetchTextRequiresMinimumLength(t *testing.T) {
	tiny := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><article><h1>T</h1><p>short</p></article></body></html>"))
	}))
	defer tiny.Close()

	adapter := newMediumAdapter(testClient(), clean.New(""), []string{tiny.URL}, nil)
	text, err := adapter.FetchText(context.Background(), "https://medium.com/@x/post-cccc")
	if err != nil {
		t.Fatalf("FetchText failed: %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty result below %d chars, got %d chars", clean.MinTextLength, len(text))
	}
}
