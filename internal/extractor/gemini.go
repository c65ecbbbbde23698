package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiClient calls the generateContent REST method.
type GeminiClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxRetryTime time.Duration
	HTTP         HTTPDoer
}

func NewGeminiClient(apiKey, model string, maxRetry time.Duration) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		BaseURL:      defaultGeminiBaseURL,
		APIKey:       apiKey,
		Model:        model,
		MaxRetryTime: maxRetry,
		HTTP:         &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if g.APIKey == "" {
		return "", errors.New("gemini api key not configured")
	}

	payload := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Content}}}},
	}
	payload.GenerationConfig.Temperature = req.Temperature

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(g.BaseURL, "/"), url.PathEscape(g.Model))
	body, err := postJSON(ctx, g.HTTP, endpoint, map[string]string{
		"x-goog-api-key": g.APIKey,
	}, payload, g.MaxRetryTime)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
