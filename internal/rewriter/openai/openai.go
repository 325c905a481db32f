// Package openai implements the Rewriter interface using OpenAI's Chat
// Completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/job"
	"github.com/nadzzz/narrator/internal/rewriter"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Rewriter uses the OpenAI Chat Completions API to rewrite text for narration.
type Rewriter struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// New creates a new OpenAI rewriter from config. It fails with
// job.ErrCredential when no API key is configured.
func New(cfg config.OpenAIConfig) (*Rewriter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required for AI rewriting", job.ErrCredential)
	}
	return &Rewriter{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL(cfg.BaseURL),
		model:     cfg.RewriteModel,
		maxTokens: cfg.MaxOutputTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Rewrite sends one piece of text to the Chat Completions API.
func (r *Rewriter) Rewrite(ctx context.Context, text string, style rewriter.Style, creativity float64) (string, error) {
	reqBody := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: rewriter.SystemInstruction},
			{Role: "user", Content: rewriter.UserPrompt(text, style)},
		},
		Temperature: creativity,
		MaxTokens:   r.maxTokens,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}

	out := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	slog.Debug("rewrite complete", "input_length", len(text), "output_length", len(out), "style", style)
	return out, nil
}

// ValidateCredentials performs a cheap read-only call (list models) with key.
// It reports false on any failure and never returns an error.
func ValidateCredentials(ctx context.Context, baseURLOverride, key string) bool {
	if key == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(baseURLOverride)+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("credential check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode == http.StatusOK
}

// --- Internal types and helpers ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func baseURL(u string) string {
	if u == "" {
		return defaultBaseURL
	}
	return strings.TrimSuffix(u, "/")
}
