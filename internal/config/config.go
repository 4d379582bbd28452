package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	AdminAPIKey   string `yaml:"admin_api_key"`
	SessionSecret string `yaml:"session_secret"`
	MaxUploadMB   int64  `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// VisionConfig selects and parameterizes the vision provider. Keys fall back
// to the environment variables the reference deployment uses.
type VisionConfig struct {
	Provider string `yaml:"provider"` // openai|anthropic|gemini|deepseek|qwen|noop
	Model    string `yaml:"model"`    // provider default when empty

	OpenAIKey    string `yaml:"openai_key"`
	AnthropicKey string `yaml:"anthropic_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DeepSeekKey  string `yaml:"deepseek_key"`
	DeepSeekURL  string `yaml:"deepseek_url"`
	QwenKey      string `yaml:"qwen_key"`
	QwenURL      string `yaml:"qwen_url"`

	MaxTokens       int           `yaml:"max_tokens"`    // reply budget, default 2000
	Temperature     float64       `yaml:"temperature"`   // default 0.1
	PromptBudget    int           `yaml:"prompt_budget"` // estimated prompt-token warn threshold
	RateLimit       int           `yaml:"rate_limit"`    // calls per window, 0 disables
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`

	SystemPromptPath string `yaml:"system_prompt_path"`
}

type VectorConfig struct {
	Collection     string `yaml:"collection"`      // table name, default sketch_vectors
	EmbeddingModel string `yaml:"embedding_model"` // default text-embedding-3-small
	Dimensions     int    `yaml:"dimensions"`      // default 1536
}

type WorkflowConfig struct {
	MaxHops int `yaml:"max_hops"`
}

type WorkerConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Vision   VisionConfig   `yaml:"vision"`
	Vector   VectorConfig   `yaml:"vector"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path and applies environment fallbacks
// for provider credentials. Missing file is an error; missing keys are only
// an error at adapter construction time.
func LoadConfig(path string, dev bool) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Vision.Provider == "" {
		cfg.Vision.Provider = os.Getenv("VISION_PROVIDER")
	}
	if cfg.Vision.Provider == "" {
		cfg.Vision.Provider = "openai"
	}
	if cfg.Vision.MaxTokens == 0 {
		cfg.Vision.MaxTokens = 2000
	}
	if cfg.Vision.Temperature == 0 {
		cfg.Vision.Temperature = 0.1
	}
	if cfg.Vision.PromptBudget == 0 {
		cfg.Vision.PromptBudget = 8000
	}
	if cfg.Vision.RateLimitWindow == 0 {
		cfg.Vision.RateLimitWindow = time.Minute
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "sketch_vectors"
	}
	if cfg.Vector.EmbeddingModel == "" {
		cfg.Vector.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = 1536
	}
	if cfg.Workflow.MaxHops == 0 {
		cfg.Workflow.MaxHops = 32
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = 4
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = 64
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
}

func applyEnv(cfg *Config) {
	envOr := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	envOr(&cfg.Vision.OpenAIKey, "OPENAI_API_KEY")
	envOr(&cfg.Vision.AnthropicKey, "ANTHROPIC_API_KEY")
	envOr(&cfg.Vision.GeminiKey, "GOOGLE_API_KEY")
	envOr(&cfg.Vision.DeepSeekKey, "DEEPSEEK_API_KEY")
	envOr(&cfg.Vision.QwenKey, "DASHSCOPE_API_KEY")
	envOr(&cfg.Vision.Model, "VISION_MODEL")
	envOr(&cfg.Database.URL, "DATABASE_URL")
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.New("config: server.port out of range")
	}
	if cfg.Workflow.MaxHops < 1 {
		return errors.New("config: workflow.max_hops must be positive")
	}
	return nil
}
