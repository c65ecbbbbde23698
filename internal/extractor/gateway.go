package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// GatewayClient talks to an OpenAI-compatible chat completions endpoint.
type GatewayClient struct {
	URL          string
	APIKey       string
	Model        string
	MaxRetryTime time.Duration
	HTTP         HTTPDoer
}

func NewGatewayClient(url, apiKey, model string, maxRetry time.Duration) *GatewayClient {
	return &GatewayClient{
		URL:          url,
		APIKey:       apiKey,
		Model:        model,
		MaxRetryTime: maxRetry,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *GatewayClient) Generate(ctx context.Context, req Request) (string, error) {
	if g.URL == "" || g.APIKey == "" {
		return "", errors.New("llm gateway not configured")
	}

	body, err := postJSON(ctx, g.HTTP, g.URL, map[string]string{
		"Authorization": "Bearer " + g.APIKey,
	}, chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemInstruction},
			{Role: "user", Content: req.Content},
		},
		Temperature: req.Temperature,
	}, g.MaxRetryTime)
	if err != nil {
		return "", fmt.Errorf("llm gateway: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
