package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VisionAdapter = (*AnthropicAdapter)(nil)

// AnthropicAdapter implements adapter.VisionAdapter against the native
// Messages API with base64 image blocks.
type AnthropicAdapter struct {
	apiKey      string
	base        string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewAnthropicAdapter(apiKey, model string, maxTokens int, temperature float64) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key empty")
	}
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicAdapter{
		apiKey:      apiKey,
		base:        "https://api.anthropic.com/v1",
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *AnthropicAdapter) Provider() string { return "anthropic" }
func (a *AnthropicAdapter) Model() string    { return a.model }

func (a *AnthropicAdapter) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("anthropic: empty image")
	}

	type imageSource struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	}
	type contentBlock struct {
		Type   string       `json:"type"`
		Text   string       `json:"text,omitempty"`
		Source *imageSource `json:"source,omitempty"`
	}
	type message struct {
		Role    string         `json:"role"`
		Content []contentBlock `json:"content"`
	}

	reqBody := struct {
		Model       string    `json:"model"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
		Messages    []message `json:"messages"`
	}{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{Type: "image", Source: &imageSource{
					Type:      "base64",
					MediaType: mimeOrPNG(img.MIMEType),
					Data:      base64.StdEncoding.EncodeToString(img.Data),
				}},
				{Type: "text", Text: prompt},
			},
		}},
	}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("anthropic http %d", resp.StatusCode)
	}

	var payload struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Content {
		if c.Type == "text" && c.Text != "" {
			return c.Text, nil
		}
	}
	return "", errors.New("anthropic: no text content")
}
