// Package llm runs summarization and chat prompts through an ordered chain
// of language-model providers, falling through on throttling or failure.
package llm

import (
	"context"
	"fmt"
	"strings"

	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/logger"
)

const (
	// SummarizePromptTemplate is the template for the article summarization prompt.
	SummarizePromptTemplate = `Summarize the following article in 3-5 sentences. Capture the main argument and the most important supporting points. Write only the summary, no meta-commentary.

Title: %s

Article:
---
%s
---`

	// ChatPromptTemplate grounds a conversational answer in the article text.
	ChatPromptTemplate = `You are answering questions about a specific article. Base your answers only on the article content below. If the article does not contain the answer, say so.

Article:
---
%s
---

%sQuestion: %s`
)

// Outcome classifies a provider attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeRateLimited   Outcome = "rate-limited"
	OutcomeNotConfigured Outcome = "not-configured"
	OutcomeFailed        Outcome = "failed"
)

// CompletionResult is the outcome of one provider's attempt at a prompt.
// Text and Model are set only on success.
type CompletionResult struct {
	Outcome  Outcome `json:"outcome"`
	Text     string  `json:"text,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
}

// Message is one turn of a chat history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Provider is a single language-model backend.
type Provider interface {
	Name() string

	// Configured reports whether the provider has credentials. Unconfigured
	// providers are skipped silently by the chain.
	Configured() bool

	// Complete runs the prompt with the model selection for the tier.
	Complete(ctx context.Context, prompt string, tier core.Tier) CompletionResult
}

// Chain tries providers in configured order until one succeeds.
type Chain struct {
	providers []Provider
}

// NewChain builds the provider chain from configuration. Unknown provider
// names in the order list are logged and skipped.
func NewChain(cfg config.AI) (*Chain, error) {
	var providers []Provider
	for _, name := range cfg.Order {
		switch name {
		case "gemini":
			g, err := NewGemini(cfg.Gemini)
			if err != nil {
				return nil, fmt.Errorf("failed to build gemini provider: %w", err)
			}
			providers = append(providers, g)
		case "groq":
			providers = append(providers, NewGroq(cfg.Groq))
		default:
			logger.Warn("Unknown provider in chain order, skipping", "provider", name)
		}
	}
	return &Chain{providers: providers}, nil
}

// NewChainWith builds a chain from explicit providers.
func NewChainWith(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Complete runs the prompt through the chain. It returns the first success;
// otherwise core.ErrRateLimited when at least one provider was throttled, or
// core.ErrProviderUnavailable when nothing is configured or everything
// failed outright.
func (c *Chain) Complete(ctx context.Context, prompt string, tier core.Tier) (CompletionResult, error) {
	rateLimited := false

	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		result := p.Complete(ctx, prompt, tier)
		switch result.Outcome {
		case OutcomeSuccess:
			return result, nil
		case OutcomeRateLimited:
			rateLimited = true
			logger.Warn("Provider rate limited, falling through", "provider", p.Name())
		case OutcomeFailed:
			logger.Warn("Provider failed, falling through", "provider", p.Name())
		}
	}

	if rateLimited {
		return CompletionResult{Outcome: OutcomeRateLimited}, core.ErrRateLimited
	}
	return CompletionResult{Outcome: OutcomeFailed}, core.ErrProviderUnavailable
}

// Summarize runs the summarization prompt for an article.
func (c *Chain) Summarize(ctx context.Context, title, text string, tier core.Tier) (CompletionResult, error) {
	return c.Complete(ctx, fmt.Sprintf(SummarizePromptTemplate, title, text), tier)
}

// Chat answers a question about an article, grounded in its text and the
// prior conversation turns.
func (c *Chain) Chat(ctx context.Context, text string, history []Message, question string, tier core.Tier) (CompletionResult, error) {
	var turns strings.Builder
	for _, m := range history {
		role := "User"
		if m.Role == "assistant" {
			role = "Assistant"
		}
		turns.WriteString(fmt.Sprintf("%s: %s\n", role, m.Content))
	}
	conversation := turns.String()
	if conversation != "" {
		conversation = "Conversation so far:\n" + conversation + "\n"
	}
	return c.Complete(ctx, fmt.Sprintf(ChatPromptTemplate, text, conversation, question), tier)
}
