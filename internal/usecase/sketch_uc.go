// File: internal/usecase/sketch_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bidforge/internal/config"
	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
	"bidforge/internal/infra/adapters/vision"
	"bidforge/internal/infra/logging"
	"bidforge/internal/infra/metrics"
	"bidforge/internal/infra/redis"
)

// Compile-time check
var _ SketchUseCase = (*sketchUC)(nil)

// SketchUseCase analyzes construction drawings through the configured
// vision provider and renders the results for aggregation and embedding.
type SketchUseCase interface {
	AnalyzeSketch(ctx context.Context, img model.SketchImage, meta model.SketchMetadata, projectContext string) (*model.SketchAnalysis, error)
	AnalyzeAll(ctx context.Context, images []model.SketchImage, metas []model.SketchMetadata, projectContext string) ([]model.SketchAnalysis, []string, error)
	ToEmbeddingText(a *model.SketchAnalysis) string
	Aggregate(results []model.SketchAnalysis) map[string]any
	Provider() string
}

type sketchUC struct {
	vision       adapter.VisionAdapter
	cache        *redis.AnalysisCache // nil when redis is absent
	limiter      *redis.RateLimiter   // nil disables rate limiting
	cfg          config.VisionConfig
	systemPrompt string
	log          *zerolog.Logger
}

func NewSketchUseCase(va adapter.VisionAdapter, cache *redis.AnalysisCache, limiter *redis.RateLimiter, cfg config.VisionConfig, log *zerolog.Logger) (*sketchUC, error) {
	if va == nil {
		return nil, domain.ErrNoVisionProvider
	}
	prompt := defaultSystemPrompt
	if cfg.SystemPromptPath != "" {
		data, err := os.ReadFile(cfg.SystemPromptPath)
		if err != nil {
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		prompt = string(data)
	}
	return &sketchUC{vision: va, cache: cache, limiter: limiter, cfg: cfg, systemPrompt: prompt, log: log}, nil
}

func (s *sketchUC) Provider() string { return s.vision.Provider() }

func (s *sketchUC) AnalyzeSketch(ctx context.Context, img model.SketchImage, meta model.SketchMetadata, projectContext string) (*model.SketchAnalysis, error) {
	if len(img.Data) == 0 {
		return nil, domain.ErrEmptyImage
	}

	start := time.Now()
	prompt := s.buildPrompt(meta, projectContext)

	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.Key(img.Data, prompt)
		if hit, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.log.Warn().Err(err).Msg("analysis cache unavailable")
		} else if hit != nil {
			return hit, nil
		}
	}

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		key := redis.VisionCallKey("global", s.vision.Provider())
		ok, err := s.limiter.Allow(ctx, key, s.cfg.RateLimit, s.cfg.RateLimitWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing call")
		} else if !ok {
			return nil, fmt.Errorf("vision rate limit exceeded for %s", s.vision.Provider())
		}
	}

	promptTokens := vision.EstimateTokens(prompt)
	if s.cfg.PromptBudget > 0 && promptTokens > s.cfg.PromptBudget {
		metrics.IncOversizePrompt(s.vision.Provider(), s.vision.Model())
		s.log.Warn().
			Int("estimated_tokens", promptTokens).
			Int("budget", s.cfg.PromptBudget).
			Msg("prompt exceeds token budget")
	}

	reply, err := s.vision.AnalyzeImage(ctx, img, prompt)
	latency := int(time.Since(start).Milliseconds())
	metrics.ObserveVisionCall(s.vision.Provider(), s.vision.Model(), promptTokens, latency, err == nil)
	if err != nil {
		return nil, fmt.Errorf("vision analysis: %w", err)
	}

	analysis, err := parseAnalysis(reply)
	if err != nil {
		return nil, err
	}

	analysis.SketchID = meta.SketchID
	analysis.ProcessingTime = time.Since(start)
	analysis.AnalyzedAt = time.Now()
	analysis.ClampConfidence()

	if s.cache != nil {
		if err := s.cache.Store(ctx, cacheKey, analysis); err != nil {
			s.log.Warn().Err(err).Msg("analysis cache store failed")
		}
	}
	return analysis, nil
}

// AnalyzeAll runs the images strictly in sequence. A single failed image
// becomes a warning; only a run where every image fails is an error.
func (s *sketchUC) AnalyzeAll(ctx context.Context, images []model.SketchImage, metas []model.SketchMetadata, projectContext string) ([]model.SketchAnalysis, []string, error) {
	if len(images) == 0 {
		return nil, nil, domain.ErrEmptyImage
	}

	results := make([]model.SketchAnalysis, 0, len(images))
	var warnings []string
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return results, warnings, err
		}

		meta := model.SketchMetadata{SketchID: fmt.Sprintf("sketch_%d", i+1)}
		if i < len(metas) {
			meta = metas[i]
		}

		imgCtx := logging.WithSketchID(ctx, meta.SketchID)
		a, err := s.AnalyzeSketch(imgCtx, img, meta, projectContext)
		if err != nil {
			logging.With(imgCtx, s.log).Warn().Err(err).Msg("sketch analysis failed")
			warnings = append(warnings, fmt.Sprintf("%s: %v", meta.SketchID, err))
			continue
		}
		results = append(results, *a)
	}

	if len(results) == 0 {
		return nil, warnings, fmt.Errorf("all %d sketch analyses failed", len(images))
	}
	return results, warnings, nil
}

func (s *sketchUC) buildPrompt(meta model.SketchMetadata, projectContext string) string {
	var b strings.Builder
	b.WriteString(s.systemPrompt)

	if projectContext != "" {
		b.WriteString("\n## Project Context\n")
		b.WriteString(projectContext)
		b.WriteString("\n")
	}

	b.WriteString("\n## Drawing Metadata\n")
	if meta.Filename != "" {
		fmt.Fprintf(&b, "- Filename: %s\n", meta.Filename)
	}
	if meta.Width > 0 && meta.Height > 0 {
		fmt.Fprintf(&b, "- Image dimensions: %dx%d pixels\n", meta.Width, meta.Height)
	}

	b.WriteString("\n## Task\nAnalyze this construction drawing and return ONLY valid JSON following the schema.\n")
	return b.String()
}

// parseAnalysis decodes the provider reply into a structured analysis.
// Markdown fences are stripped; when the reply embeds JSON in prose, the
// span from the first '{' to the last '}' is tried before giving up.
func parseAnalysis(reply string) (*model.SketchAnalysis, error) {
	cleaned := strings.TrimSpace(reply)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if i := strings.LastIndex(cleaned, "```"); i >= 0 {
			cleaned = cleaned[:i]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var out model.SketchAnalysis
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return &out, nil
	}

	open := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if open < 0 || end <= open {
		return nil, domain.ErrNoJSONInReply
	}
	if err := json.Unmarshal([]byte(cleaned[open:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoJSONInReply, err)
	}
	return &out, nil
}

// ToEmbeddingText flattens an analysis into a plain-text document for the
// vector store.
func (s *sketchUC) ToEmbeddingText(a *model.SketchAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document Type: %s\n", a.DocumentType)
	fmt.Fprintf(&b, "Project Phase: %s\n\n", a.ProjectPhase)

	b.WriteString("Technical Specifications:\n")
	for _, spec := range a.Specifications {
		fmt.Fprintf(&b, "- %s\n", spec)
	}

	b.WriteString("\nComponents:\n")
	for _, c := range a.Components {
		size := c.Size
		if size == "" {
			size = "N/A"
		}
		fmt.Fprintf(&b, "- %s: %s\n", c.Type, size)
	}

	b.WriteString("\nMaterials:\n")
	for _, m := range a.Materials {
		fmt.Fprintf(&b, "- %s %s\n", m.Name, m.Grade)
	}

	b.WriteString("\nStandards:\n")
	for _, std := range append(append([]string{}, a.Standards...), a.RegionalCodes...) {
		fmt.Fprintf(&b, "- %s\n", std)
	}

	fmt.Fprintf(&b, "\nNotes: %s", a.Notes)
	return b.String()
}

// Aggregate summarizes a batch of analyses for the extracted-data view.
func (s *sketchUC) Aggregate(results []model.SketchAnalysis) map[string]any {
	if len(results) == 0 {
		return map[string]any{}
	}

	typeSet := make(map[string]struct{})
	var confSum float64
	var totalTime time.Duration
	for _, r := range results {
		typeSet[string(r.DocumentType)] = struct{}{}
		confSum += r.ConfidenceScore
		totalTime += r.ProcessingTime
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}

	return map[string]any{
		"total_sketches":        len(results),
		"document_types":        types,
		"confidence_avg":        confSum / float64(len(results)),
		"total_processing_time": totalTime.Seconds(),
		"detailed_results":      results,
	}
}

const defaultSystemPrompt = `You are an expert construction document analyst. Examine the drawing and extract structured data.

Return ONLY a valid JSON object with these fields:
- document_type: one of architectural, structural, MEP, electrical, mechanical, plumbing, civil, landscape, unknown
- project_phase: one of concept, schematic, design_development, construction_documents, tender, construction, unknown
- dimensions: array of {type, value, unit, location, confidence}
- materials: array of {name, category, grade, specification, quantity, unit, standard, confidence}
- specifications: array of strings
- components: array of {type, name, size, count, location, specification, material, confidence}
- quantities: object of measured quantities
- standards: array of referenced standards
- regional_codes: array of referenced building codes
- annotations: array of notable text annotations
- confidence_score: overall confidence 0-100
- notes: free-form observations

Do not include any text outside the JSON object.`
