// Package openai implements the AI capability over an OpenAI-compatible HTTP
// API: single-shot chat completions for classification and text embeddings.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tankwatch/tankwatch/pkg/config"
	"github.com/tankwatch/tankwatch/pkg/logging"
	"github.com/tankwatch/tankwatch/pkg/telemetry"
)

// Client talks to an OpenAI-compatible API
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	http           *http.Client
	logger         *zap.Logger
}

// New creates a new OpenAI client
func New(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logging.GetLogger().With(zap.String("component", "openai-client")),
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Classify sends a single-shot prompt and returns the raw completion text
func (c *Client) Classify(ctx context.Context, prompt string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "openai.classify")
	defer span.End()

	var resp chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("classification response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns an embedding vector for the given text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "openai.embed")
	defer span.End()

	var resp embeddingResponse
	err := c.post(ctx, "/embeddings", embeddingRequest{
		Model: c.embeddingModel,
		Input: text,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
