package usecase

import (
	"context"
	"errors"
	"sync"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
)

// --- shared fakes for the usecase tests ---

// fakeVision replays canned replies in order. An empty queue returns an
// error so runaway loops fail loudly.
type fakeVision struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
}

var _ adapter.VisionAdapter = (*fakeVision)(nil)

func (f *fakeVision) Provider() string { return "fake" }
func (f *fakeVision) Model() string    { return "fake-vision" }

func (f *fakeVision) AnalyzeImage(ctx context.Context, img model.SketchImage, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i >= len(f.replies) {
		return "", errors.New("fakeVision: no reply queued")
	}
	return f.replies[i], nil
}

// fakeVectorStore records added documents and can be forced to fail.
type fakeVectorStore struct {
	mu     sync.Mutex
	docs   []adapter.Document
	addErr error
}

var _ adapter.VectorStore = (*fakeVectorStore)(nil)

func (f *fakeVectorStore) AddDocuments(ctx context.Context, docs []adapter.Document) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.addErr != nil {
		return nil, f.addErr
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = "vec-" + string(rune('a'+len(f.docs)+i))
	}
	f.docs = append(f.docs, docs...)
	return ids, nil
}

func (f *fakeVectorStore) SearchSimilar(ctx context.Context, query string, limit int) ([]adapter.Match, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteBySketch(ctx context.Context, sketchID string) error { return nil }

// fakeSketchUC satisfies SketchUseCase for orchestrator tests without a
// provider round trip.
type fakeSketchUC struct {
	results  []model.SketchAnalysis
	warnings []string
	err      error
}

var _ SketchUseCase = (*fakeSketchUC)(nil)

func (f *fakeSketchUC) Provider() string { return "fake" }

func (f *fakeSketchUC) AnalyzeSketch(ctx context.Context, img model.SketchImage, meta model.SketchMetadata, projectContext string) (*model.SketchAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &model.SketchAnalysis{SketchID: meta.SketchID}, nil
	}
	return &f.results[0], nil
}

func (f *fakeSketchUC) AnalyzeAll(ctx context.Context, images []model.SketchImage, metas []model.SketchMetadata, projectContext string) ([]model.SketchAnalysis, []string, error) {
	if f.err != nil {
		return nil, f.warnings, f.err
	}
	return f.results, f.warnings, nil
}

func (f *fakeSketchUC) ToEmbeddingText(a *model.SketchAnalysis) string {
	return "Document Type: " + string(a.DocumentType)
}

func (f *fakeSketchUC) Aggregate(results []model.SketchAnalysis) map[string]any {
	return map[string]any{"total_sketches": len(results)}
}

func oneImage() []model.SketchImage {
	return []model.SketchImage{{Data: []byte{0xFF, 0xD8}, MIMEType: "image/jpeg", Width: 10, Height: 10}}
}
