package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/pkg/models"
)

const chatHTTPTimeout = 60 * time.Second

type openAIGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func newOpenAIGenerator(cfg config.GenerationConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the openai generation provider")
	}
	return &openAIGenerator{
		client:  &http.Client{Timeout: chatHTTPTimeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}, nil
}

func (g *openAIGenerator) Name() string { return "openai" }

// Generate calls the chat completions endpoint. Transport failures and
// non-2xx statuses wrap ErrUnavailable so the synthesizer can degrade
// to canned output instead of failing the query.
func (g *openAIGenerator) Generate(ctx context.Context, prompt string, settings models.GenerationSettings) (string, error) {
	reqBody := chatRequest{
		Model: settings.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request to %s: %w: %w", g.baseURL, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat API error (model=%s, status=%d): %s: %w",
			settings.Model, resp.StatusCode, strings.TrimSpace(string(bodySnippet)), ErrUnavailable)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w: %w", ErrUnavailable, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices (model=%s): %w", settings.Model, ErrUnavailable)
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
