package vision

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

var _ adapter.VisionAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.VisionAdapter using the official SDK
// with inline image bytes.
type GeminiAdapter struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, maxTokens int, temperature float64) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:      c,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: float32(temperature),
	}, nil
}

func (g *GeminiAdapter) Provider() string { return "gemini" }
func (g *GeminiAdapter) Model() string    { return g.model }

func (g *GeminiAdapter) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("gemini: empty image")
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: mimeOrPNG(img.MIMEType), Data: img.Data}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTokens,
		Temperature:     genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.New("gemini: empty response")
}
