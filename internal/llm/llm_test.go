package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nook/internal/config"
	"nook/internal/core"
)

type stubProvider struct {
	name   string
	result CompletionResult
	calls  int
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return true }
func (s *stubProvider) Complete(ctx context.Context, prompt string, tier core.Tier) CompletionResult {
	s.calls++
	return s.result
}

func TestChainFallsThroughOnRateLimit(t *testing.T) {
	throttled := &stubProvider{name: "gemini",
		result: CompletionResult{Outcome: OutcomeRateLimited, Provider: "gemini"}}
	healthy := &stubProvider{name: "groq",
		result: CompletionResult{Outcome: OutcomeSuccess, Text: "a summary", Provider: "groq", Model: "llama-3.3-70b-versatile"}}

	chain := NewChainWith(throttled, healthy)
	result, err := chain.Complete(context.Background(), "prompt", core.TierSeeker)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Provider != "groq" {
		t.Errorf("Expected groq to serve after gemini throttle, got %q", result.Provider)
	}
	if throttled.calls != 1 || healthy.calls != 1 {
		t.Errorf("Expected each provider tried once, got %d and %d", throttled.calls, healthy.calls)
	}
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &stubProvider{name: "gemini",
		result: CompletionResult{Outcome: OutcomeSuccess, Text: "done", Provider: "gemini", Model: "gemini-flash-latest"}}
	second := &stubProvider{name: "groq",
		result: CompletionResult{Outcome: OutcomeSuccess, Text: "unused", Provider: "groq"}}

	chain := NewChainWith(first, second)
	result, err := chain.Complete(context.Background(), "prompt", core.TierPatron)
	if err != nil {
		t.Fatal(err)
	}
	if result.Provider != "gemini" || second.calls != 0 {
		t.Errorf("Expected first success to short-circuit, got %q (second called %d times)",
			result.Provider, second.calls)
	}
}

func TestChainRateLimitedWhenAllThrottled(t *testing.T) {
	chain := NewChainWith(
		&stubProvider{name: "gemini", result: CompletionResult{Outcome: OutcomeRateLimited}},
		&stubProvider{name: "groq", result: CompletionResult{Outcome: OutcomeRateLimited}},
	)
	_, err := chain.Complete(context.Background(), "prompt", core.TierSeeker)
	if !errors.Is(err, core.ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestChainUnavailableWhenNothingConfigured(t *testing.T) {
	unconfigured, err := NewGemini(config.GeminiConfig{})
	if err != nil {
		t.Fatal(err)
	}
	chain := NewChainWith(unconfigured, NewGroq(config.GroqConfig{}))

	_, err = chain.Complete(context.Background(), "prompt", core.TierSeeker)
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGroqTriesNextModelAfterThrottle(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req groqRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		models = append(models, req.Model)
		if req.Model == "big-model" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"the answer"}}]}`))
	}))
	defer srv.Close()

	groq := NewGroq(config.GroqConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Models:  []string{"big-model", "small-model"},
		Timeout: 5 * time.Second,
	})

	result := groq.Complete(context.Background(), "prompt", core.TierSeeker)
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("Expected success, got %+v", result)
	}
	if result.Text != "the answer" || result.Model != "small-model" {
		t.Errorf("Expected answer from fallback model, got %+v", result)
	}
	if len(models) != 2 {
		t.Errorf("Expected both models tried, got %v", models)
	}
}

func TestGroqRateLimitedWhenAllModelsThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	groq := NewGroq(config.GroqConfig{
		APIKey: "test-key", BaseURL: srv.URL,
		Models: []string{"a", "b"}, Timeout: 5 * time.Second,
	})
	if result := groq.Complete(context.Background(), "prompt", core.TierSeeker); result.Outcome != OutcomeRateLimited {
		t.Errorf("Expected rate-limited outcome, got %+v", result)
	}
}

func TestChatPromptCarriesHistory(t *testing.T) {
	recorder := &promptRecorder{}
	chain := NewChainWith(recorder)

	history := []Message{
		{Role: "user", Content: "What is it about?"},
		{Role: "assistant", Content: "Distributed caching."},
	}
	if _, err := chain.Chat(context.Background(), "article text", history, "And the tradeoffs?", core.TierInsider); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"article text", "What is it about?", "Distributed caching.", "And the tradeoffs?"} {
		if !strings.Contains(recorder.prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

type promptRecorder struct {
	prompt string
}

func (p *promptRecorder) Name() string     { return "recorder" }
func (p *promptRecorder) Configured() bool { return true }
func (p *promptRecorder) Complete(ctx context.Context, prompt string, tier core.Tier) CompletionResult {
	p.prompt = prompt
	return CompletionResult{Outcome: OutcomeSuccess, Text: "ok", Provider: "recorder"}
}
