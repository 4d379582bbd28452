package adapter

import (
	"context"

	"bidforge/internal/domain/model"
)

// ProviderInfo describes a configured vision provider.
type ProviderInfo struct {
	Provider     string
	DefaultModel string
	Models       []string
	KeyEnvVar    string
}

// VisionAdapter is the port for vision-capable model providers. AnalyzeImage
// sends one image plus a prompt and returns the raw text reply; provider
// failures surface as errors and are the caller's to soften into warnings.
type VisionAdapter interface {
	Provider() string
	Model() string
	AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error)
}

// Embedder turns texts into dense vectors for similarity storage.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
