package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nook/internal/config"
	"nook/internal/core"
	"nook/internal/logger"
)

// Groq is the OpenAI-compatible HTTP provider. It shares one model list
// across tiers and tries each configured model in order.
type Groq struct {
	cfg        config.GroqConfig
	httpClient *http.Client
}

// NewGroq creates the Groq provider.
func NewGroq(cfg config.GroqConfig) *Groq {
	return &Groq{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *Groq) Name() string     { return "groq" }
func (g *Groq) Configured() bool { return g.cfg.APIKey != "" && g.cfg.BaseURL != "" }

type groqRequest struct {
	Model    string        `json:"model"`
	Messages []groqMessage `json:"messages"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// groqResponse covers the two shapes OpenAI-compatible endpoints return:
// the chat-completion choices array, and a flat "response" string some
// proxies use.
type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Response string `json:"response"`
}

func (g *Groq) Complete(ctx context.Context, prompt string, tier core.Tier) CompletionResult {
	if !g.Configured() {
		return CompletionResult{Outcome: OutcomeNotConfigured, Provider: g.Name()}
	}

	rateLimited := false
	for _, model := range g.cfg.Models {
		text, status, err := g.completion(ctx, model, prompt)
		if err != nil {
			logger.Warn("Groq request failed", "model", model, "error", err.Error())
			continue
		}
		switch {
		case status == http.StatusTooManyRequests:
			rateLimited = true
			logger.Warn("Groq model throttled", "model", model)
			continue
		case status == http.StatusBadGateway,
			status == http.StatusServiceUnavailable,
			status == http.StatusGatewayTimeout:
			logger.Warn("Groq upstream unavailable", "model", model, "status", status)
			continue
		case status != http.StatusOK:
			logger.Warn("Groq model rejected request", "model", model, "status", status)
			continue
		}
		if text == "" {
			continue
		}
		return CompletionResult{
			Outcome:  OutcomeSuccess,
			Text:     strings.TrimSpace(text),
			Provider: g.Name(),
			Model:    model,
		}
	}

	if rateLimited {
		return CompletionResult{Outcome: OutcomeRateLimited, Provider: g.Name()}
	}
	return CompletionResult{Outcome: OutcomeFailed, Provider: g.Name()}
}

// completion performs one chat-completion call and returns the extracted
// text alongside the HTTP status.
func (g *Groq) completion(ctx context.Context, model, prompt string) (string, int, error) {
	payload, err := json.Marshal(groqRequest{
		Model:    model,
		Messages: []groqMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := strings.TrimRight(g.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, nil
	}

	var parsed groqResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) > 0 {
		return parsed.Choices[0].Message.Content, resp.StatusCode, nil
	}
	return parsed.Response, resp.StatusCode, nil
}
