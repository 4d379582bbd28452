package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VisionAdapter = (*CompatAdapter)(nil)

// CompatAdapter implements adapter.VisionAdapter against an
// OpenAI-compatible chat-completions gateway. DeepSeek and Qwen (DashScope
// compatible mode) both speak this dialect.
type CompatAdapter struct {
	provider    string
	apiKey      string
	base        string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewDeepSeekAdapter(apiKey, base, model string, maxTokens int, temperature float64) (*CompatAdapter, error) {
	if base == "" {
		base = "https://api.deepseek.com"
	}
	if model == "" {
		model = "deepseek-chat"
	}
	return newCompatAdapter("deepseek", apiKey, base, model, maxTokens, temperature)
}

func NewQwenAdapter(apiKey, base, model string, maxTokens int, temperature float64) (*CompatAdapter, error) {
	if base == "" {
		base = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	}
	if model == "" {
		model = "qwen-vl-max"
	}
	return newCompatAdapter("qwen", apiKey, base, model, maxTokens, temperature)
}

func newCompatAdapter(provider, apiKey, base, model string, maxTokens int, temperature float64) (*CompatAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key empty", provider)
	}
	return &CompatAdapter{
		provider:    provider,
		apiKey:      apiKey,
		base:        strings.TrimRight(base, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *CompatAdapter) Provider() string { return c.provider }
func (c *CompatAdapter) Model() string    { return c.model }

func (c *CompatAdapter) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%s: empty image", c.provider)
	}

	type imageURL struct {
		URL string `json:"url"`
	}
	type contentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}
	type message struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeOrPNG(img.MIMEType),
		base64.StdEncoding.EncodeToString(img.Data))

	reqBody := struct {
		Model       string    `json:"model"`
		Messages    []message `json:"messages"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
	}{
		Model: c.model,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s http %d", c.provider, resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, ch := range payload.Choices {
		if ch.Message.Content != "" {
			return ch.Message.Content, nil
		}
	}
	return "", errors.New(c.provider + ": no choice content")
}
