// Package chat talks to OpenAI-compatible chat completion endpoints
// (SiliconFlow, DeepSeek, OpenAI).
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the SiliconFlow API root.
const DefaultBaseURL = "https://api.siliconflow.cn/v1"

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Config holds the endpoint and credentials.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// Provider sends one user message per call and returns the reply text.
type Provider struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewProvider creates a Provider. The HTTP client timeout is a backstop;
// callers bound each call with their context.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	return NewProviderWithClient(cfg, &http.Client{Timeout: 60 * time.Second}, logger)
}

// NewProviderWithClient creates a Provider with a custom HTTP client (for testing).
func NewProviderWithClient(cfg Config, client *http.Client, logger *slog.Logger) *Provider {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Provider{
		cfg:        cfg,
		endpoint:   strings.TrimRight(base, "/") + "/chat/completions",
		httpClient: client,
		log:        logger.With("adapter", "chat"),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ErrEmptyResponse is returned when the service answers without any choice.
var ErrEmptyResponse = errors.New("chat: empty response")

// Complete posts prompt as a single user message and returns the content of
// the first choice. A content value that is itself a JSON object is returned
// as its raw JSON text.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     p.cfg.Model,
		Messages:  []message{{Role: "user", Content: prompt}},
		MaxTokens: p.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	p.log.DebugContext(ctx, "chat request", slog.String("model", p.cfg.Model), slog.Int("prompt_len", len(prompt)))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("chat: read body: %w", err)
	}

	p.log.DebugContext(ctx, "chat response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("chat: decode json: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return contentText(cr.Choices[0].Message.Content)
}

func contentText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", ErrEmptyResponse
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("chat: decode content: %w", err)
		}
		return s, nil
	}
	return string(raw), nil
}
