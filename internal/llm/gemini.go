package llm

import (
	"context"
	"strings"
	"time"

	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/logger"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no per-tier model list is configured.
const DefaultGeminiModel = "gemini-flash-lite-latest"

// geminiRetryBackoff is the pause before retrying a throttled model once.
const geminiRetryBackoff = 2 * time.Second

// Gemini is the Google Gemini provider. Each tier carries its own ordered
// model list; throttled models are retried once with backoff before falling
// through to the next model.
type Gemini struct {
	client *genai.Client
	cfg    config.GeminiConfig
}

// NewGemini creates the Gemini provider. Without an API key it is built
// unconfigured rather than failing, so the chain can skip it.
func NewGemini(cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return &Gemini{cfg: cfg}, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

func (g *Gemini) Name() string     { return "gemini" }
func (g *Gemini) Configured() bool { return g.client != nil }

func (g *Gemini) models(tier core.Tier) []string {
	if models := g.cfg.TierModels[string(tier)]; len(models) > 0 {
		return models
	}
	return []string{DefaultGeminiModel}
}

func (g *Gemini) Complete(ctx context.Context, prompt string, tier core.Tier) CompletionResult {
	if g.client == nil {
		return CompletionResult{Outcome: OutcomeNotConfigured, Provider: g.Name()}
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	rateLimited := false
	for _, model := range g.models(tier) {
		for attempt := 0; attempt < 2; attempt++ {
			resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
			if err != nil {
				if !isGeminiRateLimit(err) {
					logger.Warn("Gemini model failed", "model", model, "error", err.Error())
					break
				}
				rateLimited = true
				logger.Warn("Gemini model throttled", "model", model, "attempt", attempt+1)
				select {
				case <-time.After(geminiRetryBackoff):
				case <-ctx.Done():
					return CompletionResult{Outcome: OutcomeRateLimited, Provider: g.Name()}
				}
				continue
			}

			text := resp.Text()
			if text == "" {
				break
			}
			return CompletionResult{
				Outcome:  OutcomeSuccess,
				Text:     strings.TrimSpace(text),
				Provider: g.Name(),
				Model:    model,
			}
		}
	}

	if rateLimited {
		return CompletionResult{Outcome: OutcomeRateLimited, Provider: g.Name()}
	}
	return CompletionResult{Outcome: OutcomeFailed, Provider: g.Name()}
}

// isGeminiRateLimit recognizes the API's throttling signals in error text.
func isGeminiRateLimit(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
