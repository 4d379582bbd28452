package vision

import (
	"context"
	"time"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

var _ adapter.VisionAdapter = (*NoopAdapter)(nil)

// NoopAdapter implements adapter.VisionAdapter for local/dev runs. It
// returns a fixed low-confidence analysis instead of calling a provider.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

func (n *NoopAdapter) Provider() string { return "noop" }
func (n *NoopAdapter) Model() string    { return "noop-vision" }

func (n *NoopAdapter) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return `{"document_type":"unknown","project_phase":"unknown","confidence_score":10.0,"notes":"noop adapter reply"}`, nil
}
