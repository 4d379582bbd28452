package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bidforge/internal/config"
	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
)

const analysisReply = `{
  "document_type": "structural",
  "project_phase": "schematic",
  "specifications": ["RC frame"],
  "confidence_score": 87.5,
  "notes": "clean drawing"
}`

func newTestSketchUC(t *testing.T, v *fakeVision) *sketchUC {
	t.Helper()
	uc, err := NewSketchUseCase(v, nil, nil, config.VisionConfig{}, nopLogger())
	if err != nil {
		t.Fatalf("NewSketchUseCase returned error: %v", err)
	}
	return uc
}

func TestSketchUC_AnalyzeSketch(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{replies: []string{analysisReply}})

	got, err := uc.AnalyzeSketch(context.Background(), oneImage()[0], model.SketchMetadata{SketchID: "s1", Filename: "plan.png"}, "G+3 residential Dubai")
	if err != nil {
		t.Fatalf("AnalyzeSketch returned error: %v", err)
	}
	if got.SketchID != "s1" {
		t.Fatalf("expected sketch_id s1, got %q", got.SketchID)
	}
	if got.DocumentType != model.DocumentStructural {
		t.Fatalf("expected structural, got %q", got.DocumentType)
	}
	if got.ConfidenceScore != 87.5 {
		t.Fatalf("expected confidence 87.5, got %v", got.ConfidenceScore)
	}
	if got.AnalyzedAt.IsZero() {
		t.Fatalf("expected AnalyzedAt to be stamped")
	}
}

func TestSketchUC_EmptyImage(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{})
	if _, err := uc.AnalyzeSketch(context.Background(), model.SketchImage{}, model.SketchMetadata{}, ""); !errors.Is(err, domain.ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestSketchUC_ConfidenceClamped(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{replies: []string{`{"document_type":"civil","confidence_score":250}`}})

	got, err := uc.AnalyzeSketch(context.Background(), oneImage()[0], model.SketchMetadata{SketchID: "s1"}, "")
	if err != nil {
		t.Fatalf("AnalyzeSketch returned error: %v", err)
	}
	if got.ConfidenceScore != 100 {
		t.Fatalf("expected clamp to 100, got %v", got.ConfidenceScore)
	}
}

func TestParseAnalysis(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		reply string
		want  model.DocumentType
		fails bool
	}{
		{"plain json", `{"document_type":"civil"}`, model.DocumentCivil, false},
		{"json fence", "```json\n{\"document_type\":\"MEP\"}\n```", model.DocumentMEP, false},
		{"bare fence", "```\n{\"document_type\":\"civil\"}\n```", model.DocumentCivil, false},
		{"embedded in prose", "Here is the result:\n{\"document_type\":\"electrical\"}\nHope that helps.", model.DocumentElectrical, false},
		{"no json at all", "I cannot analyze this image.", "", true},
		{"unbalanced braces", "result: } {", "", true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseAnalysis(tc.reply)
			if tc.fails {
				if !errors.Is(err, domain.ErrNoJSONInReply) {
					t.Fatalf("expected ErrNoJSONInReply, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnalysis returned error: %v", err)
			}
			if got.DocumentType != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.DocumentType)
			}
		})
	}
}

func TestSketchUC_AnalyzeAllPartialFailure(t *testing.T) {
	t.Parallel()

	v := &fakeVision{
		replies: []string{"", analysisReply},
		errs:    []error{errors.New("provider timeout"), nil},
	}
	uc := newTestSketchUC(t, v)

	images := append(oneImage(), oneImage()...)
	results, warnings, err := uc.AnalyzeAll(context.Background(), images, nil, "")
	if err != nil {
		t.Fatalf("AnalyzeAll returned error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "provider timeout") {
		t.Fatalf("expected one warning about the timeout, got %v", warnings)
	}
	// Unnamed sketches get positional IDs.
	if results[0].SketchID != "sketch_2" {
		t.Fatalf("expected positional sketch ID, got %q", results[0].SketchID)
	}
}

func TestSketchUC_AnalyzeAllTotalFailure(t *testing.T) {
	t.Parallel()

	v := &fakeVision{errs: []error{errors.New("boom"), errors.New("boom")}}
	uc := newTestSketchUC(t, v)

	images := append(oneImage(), oneImage()...)
	if _, _, err := uc.AnalyzeAll(context.Background(), images, nil, ""); err == nil {
		t.Fatalf("expected error when every analysis fails")
	}
}

func TestSketchUC_AnalyzeAllHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := newTestSketchUC(t, &fakeVision{replies: []string{analysisReply}})
	if _, _, err := uc.AnalyzeAll(ctx, oneImage(), nil, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSketchUC_PromptContainsContextAndMetadata(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{})
	prompt := uc.buildPrompt(model.SketchMetadata{Filename: "plan.png", Width: 800, Height: 600}, "G+3 residential Dubai")

	for _, want := range []string{"G+3 residential Dubai", "plan.png", "800x600", "ONLY valid JSON"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSketchUC_Aggregate(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{})
	results := []model.SketchAnalysis{
		{DocumentType: model.DocumentStructural, ConfidenceScore: 80, ProcessingTime: 2 * time.Second},
		{DocumentType: model.DocumentStructural, ConfidenceScore: 60, ProcessingTime: 3 * time.Second},
		{DocumentType: model.DocumentCivil, ConfidenceScore: 70, ProcessingTime: time.Second},
	}

	agg := uc.Aggregate(results)
	if agg["total_sketches"] != 3 {
		t.Fatalf("expected 3 sketches, got %v", agg["total_sketches"])
	}
	if avg := agg["confidence_avg"].(float64); avg != 70 {
		t.Fatalf("expected avg 70, got %v", avg)
	}
	if total := agg["total_processing_time"].(float64); total != 6 {
		t.Fatalf("expected 6s total, got %v", total)
	}
	if types := agg["document_types"].([]string); len(types) != 2 {
		t.Fatalf("expected 2 distinct types, got %v", types)
	}
}

func TestSketchUC_ToEmbeddingText(t *testing.T) {
	t.Parallel()

	uc := newTestSketchUC(t, &fakeVision{})
	a := &model.SketchAnalysis{
		DocumentType:   model.DocumentStructural,
		ProjectPhase:   model.PhaseSchematic,
		Specifications: []string{"RC frame"},
		Components:     []model.Component{{Type: "beam", Size: "300x600"}},
		Materials:      []model.Material{{Name: "concrete", Grade: "C40"}},
		Standards:      []string{"BS 8110"},
		RegionalCodes:  []string{"Dubai Municipality"},
		Notes:          "clean drawing",
	}

	text := uc.ToEmbeddingText(a)
	for _, want := range []string{
		"Document Type: structural",
		"Project Phase: schematic",
		"- RC frame",
		"- beam: 300x600",
		"- concrete C40",
		"- BS 8110",
		"- Dubai Municipality",
		"Notes: clean drawing",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("embedding text missing %q:\n%s", want, text)
		}
	}
}
