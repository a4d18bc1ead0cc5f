// Package reasoner is a thin client for an OpenAI-compatible chat endpoint
// (Groq by default). It backs the engine's verdict explanations and the
// outcome guard's post-transaction analysis. Everything here is best effort:
// callers must treat an error as "no opinion", never as a blocked request.
package reasoner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel   = "llama-3.3-70b-versatile"
	defaultTimeout = 20 * time.Second
)

// Config selects the endpoint and model. Zero values fall back to Groq
// defaults; an empty APIKey disables the client entirely.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"-"` // from AEGIS_LLM_API_KEY, never from config files
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"-"`
}

// Client talks to the chat endpoint. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

// New builds a Client, or returns nil if no API key is configured. A nil
// *Client is a valid no-op: its methods return ErrDisabled.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = fmt.Errorf("reasoner: disabled (no API key)")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends one system+user exchange and returns the trimmed reply.
// Single attempt, bounded by the configured timeout; no retries — the
// pipeline must not stall on a slow model.
func (c *Client) Chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("reasoner: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reasoner: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil || len(out.Choices) == 0 {
		return "", fmt.Errorf("reasoner: empty response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
