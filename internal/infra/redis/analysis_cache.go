package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"bidforge/internal/domain/model"
	"bidforge/internal/infra/metrics"
)

// AnalysisCache stores finished sketch analyses keyed by the image bytes
// and the prompt that produced them, so identical re-uploads skip the
// vision provider entirely.
type AnalysisCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewAnalysisCache(client RedisClient, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AnalysisCache{client: client, ttl: ttl}
}

// Key digests the image content plus the prompt. Changing either
// invalidates the entry naturally.
func (c *AnalysisCache) Key(image []byte, prompt string) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte(prompt))
	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}

func (c *AnalysisCache) Get(ctx context.Context, key string) (*model.SketchAnalysis, error) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, Nil) {
			metrics.IncCacheRequest("analysis", "miss")
			return nil, nil
		}
		return nil, err
	}

	var out model.SketchAnalysis
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		// Corrupt entry. Drop it and treat as a miss.
		_ = c.client.Del(ctx, key)
		metrics.IncCacheRequest("analysis", "miss")
		return nil, nil
	}
	metrics.IncCacheRequest("analysis", "hit")
	return &out, nil
}

func (c *AnalysisCache) Store(ctx context.Context, key string, analysis *model.SketchAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}
