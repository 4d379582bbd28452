package vision

import (
	"context"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.VisionAdapter = (*limitedVision)(nil)

type limitedVision struct {
	inner adapter.VisionAdapter
	sem   chan struct{}
}

// NewLimitedVision bounds concurrent provider calls across all runs.
func NewLimitedVision(inner adapter.VisionAdapter, maxConcurrent int) adapter.VisionAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedVision{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedVision) Provider() string { return l.inner.Provider() }
func (l *limitedVision) Model() string    { return l.inner.Model() }

func (l *limitedVision) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.AnalyzeImage(ctx, img, prompt)
}
