package vision

import (
	"context"
	"errors"
	"testing"

	"bidforge/internal/config"
	"bidforge/internal/domain"
)

func TestNewAdapter_UnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter(context.Background(), config.VisionConfig{Provider: "palantir"})
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewAdapter_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter(context.Background(), config.VisionConfig{Provider: "openai"})
	if !errors.Is(err, domain.ErrNoVisionProvider) {
		t.Fatalf("expected ErrNoVisionProvider, got %v", err)
	}
}

func TestNewAdapter_UnsupportedModel(t *testing.T) {
	t.Parallel()

	_, err := NewAdapter(context.Background(), config.VisionConfig{
		Provider:  "openai",
		OpenAIKey: "sk-test",
		Model:     "gpt-1",
	})
	if err == nil {
		t.Fatalf("expected error for unsupported model")
	}
}

func TestNewAdapter_DefaultModel(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(context.Background(), config.VisionConfig{
		Provider:  "openai",
		OpenAIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("NewAdapter returned error: %v", err)
	}
	if a.Model() != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", a.Model())
	}
}

func TestNewAdapter_Noop(t *testing.T) {
	t.Parallel()

	a, err := NewAdapter(context.Background(), config.VisionConfig{Provider: "noop"})
	if err != nil {
		t.Fatalf("NewAdapter returned error: %v", err)
	}
	if a.Provider() != "noop" {
		t.Fatalf("expected noop, got %q", a.Provider())
	}
}

func TestProvidersAndInfo(t *testing.T) {
	t.Parallel()

	names := Providers()
	if len(names) != 6 {
		t.Fatalf("expected 6 providers, got %d: %v", len(names), names)
	}

	info, ok := Info("anthropic")
	if !ok {
		t.Fatalf("expected anthropic in the capability table")
	}
	if info.KeyEnvVar != "ANTHROPIC_API_KEY" {
		t.Fatalf("unexpected key env var: %q", info.KeyEnvVar)
	}

	if _, ok := Info("palantir"); ok {
		t.Fatalf("unknown provider resolved")
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", got)
	}

	short := EstimateTokens("hello world")
	long := EstimateTokens("hello world, this is a much longer prompt about structural drawings")
	if short <= 0 || long <= short {
		t.Fatalf("token estimates not monotone: short=%d long=%d", short, long)
	}
}
