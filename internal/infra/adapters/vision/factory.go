package vision

import (
	"context"
	"fmt"
	"strings"

	"bidforge/internal/config"
	"bidforge/internal/domain"
	"bidforge/internal/domain/ports/adapter"
)

// providerSpec is one entry of the capability table: the closed set of
// providers this build knows, with their defaults. Validated at startup,
// never extended at run time.
type providerSpec struct {
	defaultModel string
	models       []string
	keyEnvVar    string
	key          func(cfg config.VisionConfig) string
	build        func(ctx context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error)
}

var providers = map[string]providerSpec{
	"openai": {
		defaultModel: "gpt-4o",
		models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
		keyEnvVar:    "OPENAI_API_KEY",
		key:          func(cfg config.VisionConfig) string { return cfg.OpenAIKey },
		build: func(_ context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error) {
			return NewOpenAIAdapter(cfg.OpenAIKey, model, cfg.MaxTokens, cfg.Temperature)
		},
	},
	"anthropic": {
		defaultModel: "claude-3-5-sonnet-20241022",
		models: []string{
			"claude-3-5-sonnet-20241022",
			"claude-3-opus-20240229",
			"claude-3-haiku-20240307",
		},
		keyEnvVar: "ANTHROPIC_API_KEY",
		key:       func(cfg config.VisionConfig) string { return cfg.AnthropicKey },
		build: func(_ context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error) {
			return NewAnthropicAdapter(cfg.AnthropicKey, model, cfg.MaxTokens, cfg.Temperature)
		},
	},
	"gemini": {
		defaultModel: "gemini-2.0-flash",
		models:       []string{"gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash"},
		keyEnvVar:    "GOOGLE_API_KEY",
		key:          func(cfg config.VisionConfig) string { return cfg.GeminiKey },
		build: func(ctx context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error) {
			return NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, model, cfg.MaxTokens, cfg.Temperature)
		},
	},
	"deepseek": {
		defaultModel: "deepseek-chat",
		models:       []string{"deepseek-chat"},
		keyEnvVar:    "DEEPSEEK_API_KEY",
		key:          func(cfg config.VisionConfig) string { return cfg.DeepSeekKey },
		build: func(_ context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error) {
			return NewDeepSeekAdapter(cfg.DeepSeekKey, cfg.DeepSeekURL, model, cfg.MaxTokens, cfg.Temperature)
		},
	},
	"qwen": {
		defaultModel: "qwen-vl-max",
		models:       []string{"qwen-vl-max", "qwen-vl-plus"},
		keyEnvVar:    "DASHSCOPE_API_KEY",
		key:          func(cfg config.VisionConfig) string { return cfg.QwenKey },
		build: func(_ context.Context, cfg config.VisionConfig, model string) (adapter.VisionAdapter, error) {
			return NewQwenAdapter(cfg.QwenKey, cfg.QwenURL, model, cfg.MaxTokens, cfg.Temperature)
		},
	},
	"noop": {
		defaultModel: "noop-vision",
		models:       []string{"noop-vision"},
		key:          func(config.VisionConfig) string { return "noop" },
		build: func(context.Context, config.VisionConfig, string) (adapter.VisionAdapter, error) {
			return NewNoopAdapter(), nil
		},
	},
}

// NewAdapter constructs the configured vision adapter. Called once at
// startup; a missing key or unknown provider is a configuration error and
// is never retried.
func NewAdapter(ctx context.Context, cfg config.VisionConfig) (adapter.VisionAdapter, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	spec, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", domain.ErrUnknownProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
	if spec.key(cfg) == "" {
		return nil, fmt.Errorf("%w: %s requires %s", domain.ErrNoVisionProvider, name, spec.keyEnvVar)
	}

	model := cfg.Model
	if model == "" {
		model = spec.defaultModel
	} else if !contains(spec.models, model) {
		return nil, fmt.Errorf("model %q not supported for %s (available: %s)",
			model, name, strings.Join(spec.models, ", "))
	}
	return spec.build(ctx, cfg, model)
}

// Providers lists the fixed provider set.
func Providers() []string {
	out := make([]string, 0, len(providers))
	for name := range providers {
		out = append(out, name)
	}
	return out
}

// Info describes a provider entry of the capability table.
func Info(name string) (adapter.ProviderInfo, bool) {
	spec, ok := providers[strings.ToLower(name)]
	if !ok {
		return adapter.ProviderInfo{}, false
	}
	return adapter.ProviderInfo{
		Provider:     strings.ToLower(name),
		DefaultModel: spec.defaultModel,
		Models:       spec.models,
		KeyEnvVar:    spec.keyEnvVar,
	}, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
