// File: internal/usecase/orchestrator.go
package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/adapter"
	"bidforge/internal/infra/logging"
	"bidforge/internal/workflow"
)

// Stage names of the bid-processing topology.
const (
	StageClassifier     = "input_classifier"
	StageSketchAnalysis = "sketch_analysis"
	StageVectorStore    = "vector_store"
	StageAnalysis       = "analysis"
	StageDecision       = "decision"
	StageGeneration     = "generation"
	StageReview         = "review"
)

// Progress checkpoints reported after each stage.
var stageProgress = map[string]int{
	StageClassifier:     10,
	StageSketchAnalysis: 35,
	StageVectorStore:    50,
	StageAnalysis:       65,
	StageDecision:       75,
	StageGeneration:     90,
	StageReview:         95,
}

// Request is one bid-processing submission.
type Request struct {
	Text           string                 `json:"text"`
	ProjectContext string                 `json:"project_context,omitempty"`
	Images         []model.SketchImage    `json:"-"`
	SketchMeta     []model.SketchMetadata `json:"sketches,omitempty"`
}

// Response projects the final workflow state for API callers.
type Response struct {
	RequestID       string                 `json:"request_id"`
	Success         bool                   `json:"success"`
	HasSketches     bool                   `json:"has_sketches"`
	SketchCount     int                    `json:"sketch_count"`
	AnalysisResults []model.SketchAnalysis `json:"analysis_results,omitempty"`
	ExtractedData   map[string]any         `json:"extracted_data,omitempty"`
	VectorIDs       []string               `json:"vector_ids,omitempty"`
	Decision        string                 `json:"decision"`
	FinalResponse   string                 `json:"final_response,omitempty"`
	Messages        []workflow.Message     `json:"messages"`
	Error           string                 `json:"error,omitempty"`
}

// Compile-time check
var _ OrchestratorUseCase = (*orchestratorUC)(nil)

type OrchestratorUseCase interface {
	ProcessRequest(ctx context.Context, req Request, progress workflow.ProgressFunc) (*Response, error)
	TotalSteps() int
}

type orchestratorUC struct {
	sketch  SketchUseCase
	vectors adapter.VectorStore // nil disables persistence
	graph   *workflow.Graph
	log     *zerolog.Logger
}

// NewOrchestratorUseCase builds and compiles the reference topology. The
// returned usecase is reentrant.
func NewOrchestratorUseCase(sketch SketchUseCase, vectors adapter.VectorStore, maxHops int, log *zerolog.Logger) (*orchestratorUC, error) {
	o := &orchestratorUC{sketch: sketch, vectors: vectors, log: log}

	g := workflow.NewGraph(maxHops, log).
		AddStage(StageClassifier, o.classify).
		AddStage(StageSketchAnalysis, o.analyzeSketches).
		AddStage(StageVectorStore, o.storeVectors).
		AddStage(StageAnalysis, o.analyze).
		AddStage(StageDecision, o.decide).
		AddStage(StageGeneration, o.generate).
		AddStage(StageReview, o.review).
		SetEntry(StageClassifier).
		AddBranch(StageClassifier, routeFromClassifier, StageSketchAnalysis, StageAnalysis).
		AddEdge(StageSketchAnalysis, StageVectorStore).
		AddEdge(StageVectorStore, StageAnalysis).
		AddEdge(StageAnalysis, StageDecision).
		AddBranch(StageDecision, routeFromDecision, StageGeneration).
		AddEdge(StageGeneration, StageReview).
		AddEdge(StageReview, workflow.Terminal)

	if err := g.Compile(); err != nil {
		return nil, err
	}
	o.graph = g
	return o, nil
}

// TotalSteps is the stage count of the longest path through the topology.
func (o *orchestratorUC) TotalSteps() int { return 7 }

func (o *orchestratorUC) ProcessRequest(ctx context.Context, req Request, progress workflow.ProgressFunc) (*Response, error) {
	st := workflow.NewState(uuid.NewString())
	st.Text = req.Text
	st.ProjectContext = req.ProjectContext
	st.Images = req.Images
	st.SketchMeta = req.SketchMeta
	st.RequiresSketchAnalysis = len(req.Images) > 0
	st.SetProgress(progress)
	st.Append("user", "Process bid request "+st.RequestID)

	ctx = logging.WithRequestID(ctx, st.RequestID)
	defer logging.TraceDuration(logging.With(ctx, o.log), "process_request")()

	final, err := o.graph.Run(ctx, st)
	if err != nil {
		return nil, err
	}

	return &Response{
		RequestID:       final.RequestID,
		Success:         final.Err == "",
		HasSketches:     final.HasSketches,
		SketchCount:     final.SketchCount,
		AnalysisResults: final.AnalysisResults,
		ExtractedData:   final.Extracted,
		VectorIDs:       final.VectorIDs,
		Decision:        decisionOrUnknown(final.Decision),
		FinalResponse:   final.FinalResponse,
		Messages:        final.Messages,
		Error:           final.Err,
	}, nil
}

func decisionOrUnknown(d string) string {
	if d == "" {
		return "unknown"
	}
	return d
}

func routeFromClassifier(st *workflow.State) string {
	if st.HasSketches {
		return StageSketchAnalysis
	}
	return StageAnalysis
}

func routeFromDecision(st *workflow.State) string {
	if st.Decision == "generate" {
		return StageGeneration
	}
	return workflow.Terminal
}

// classify inspects the request for visual content. Any of the three
// signals routes the run through sketch analysis: attached images, sketch
// metadata, or the explicit flag.
func (o *orchestratorUC) classify(ctx context.Context, st *workflow.State) *workflow.State {
	hasSketches := false
	count := 0

	if len(st.Images) > 0 {
		hasSketches = true
		count = len(st.Images)
	}
	if len(st.SketchMeta) > 0 {
		hasSketches = true
		if len(st.SketchMeta) > count {
			count = len(st.SketchMeta)
		}
	}
	if st.RequiresSketchAnalysis {
		hasSketches = true
	}

	st.HasSketches = hasSketches
	st.SketchCount = count

	if hasSketches {
		st.Append("agent", fmt.Sprintf("Detected %d sketch(es). Routing to sketch analysis.", count))
		st.SetNext(StageSketchAnalysis)
	} else {
		st.Append("agent", "Text-only request. Routing to analysis.")
		st.SetNext(StageAnalysis)
	}
	st.Report(model.JobStatusProcessing, stageProgress[StageClassifier], StageClassifier)
	return st
}

func (o *orchestratorUC) analyzeSketches(ctx context.Context, st *workflow.State) *workflow.State {
	if len(st.Images) == 0 {
		st.Fail("no images found for sketch analysis")
		return st
	}

	results, warnings, err := o.sketch.AnalyzeAll(ctx, st.Images, st.SketchMeta, st.ProjectContext)
	if err != nil {
		st.Fail("sketch analysis: " + err.Error())
		return st
	}

	st.AnalysisResults = results
	st.Extracted = o.sketch.Aggregate(results)
	st.Embeddings = st.Embeddings[:0]
	for i := range results {
		st.Embeddings = append(st.Embeddings, o.sketch.ToEmbeddingText(&results[i]))
	}
	for _, w := range warnings {
		st.Append("agent", "Warning: "+w)
	}

	var confSum float64
	for _, r := range results {
		confSum += r.ConfidenceScore
	}
	st.Append("agent", fmt.Sprintf("Analyzed %d sketch(es) using %s. Average confidence: %.1f%%",
		len(results), o.sketch.Provider(), confSum/float64(len(results))))

	st.SetNext(StageVectorStore)
	st.Report(model.JobStatusProcessing, stageProgress[StageSketchAnalysis], StageSketchAnalysis)
	return st
}

func (o *orchestratorUC) storeVectors(ctx context.Context, st *workflow.State) *workflow.State {
	if o.vectors == nil || len(st.Embeddings) == 0 {
		st.Append("agent", "Vector storage skipped")
		st.Report(model.JobStatusProcessing, stageProgress[StageVectorStore], StageVectorStore)
		return st
	}

	docs := make([]adapter.Document, 0, len(st.Embeddings))
	for i, text := range st.Embeddings {
		meta := map[string]any{"request_id": st.RequestID}
		if i < len(st.AnalysisResults) {
			meta["sketch_id"] = st.AnalysisResults[i].SketchID
			meta["document_type"] = string(st.AnalysisResults[i].DocumentType)
		}
		docs = append(docs, adapter.Document{Content: text, Metadata: meta})
	}

	ids, err := o.vectors.AddDocuments(ctx, docs)
	if err != nil {
		// Persistence failure degrades the run, it does not kill it.
		o.log.Error().Str("request_id", st.RequestID).Err(err).Msg("vector storage failed")
		st.Append("agent", "Warning: vector storage failed: "+err.Error())
	} else {
		st.VectorIDs = ids
		for i := range st.AnalysisResults {
			if i < len(ids) {
				st.AnalysisResults[i].VectorIDs = []string{ids[i]}
			}
		}
		st.Append("agent", "Sketch data stored in vector database")
	}

	st.Report(model.JobStatusProcessing, stageProgress[StageVectorStore], StageVectorStore)
	return st
}

func (o *orchestratorUC) analyze(ctx context.Context, st *workflow.State) *workflow.State {
	if st.HasSketches {
		st.Append("agent", "Analyzing bid request with sketch data integrated")
	} else {
		st.Append("agent", "Analyzing text-only bid request")
	}
	st.AnalysisComplete = true
	st.Report(model.JobStatusProcessing, stageProgress[StageAnalysis], StageAnalysis)
	return st
}

// decide is the go/no-go gate. Empty requests are rejected; everything
// else proceeds to generation.
func (o *orchestratorUC) decide(ctx context.Context, st *workflow.State) *workflow.State {
	if st.Text == "" && !st.HasSketches {
		st.Decision = "reject"
		st.Append("agent", "Decision: Reject empty request")
	} else {
		st.Decision = "generate"
		st.Append("agent", "Decision: Proceed with bid")
	}
	st.Report(model.JobStatusProcessing, stageProgress[StageDecision], StageDecision)
	return st
}

func (o *orchestratorUC) generate(ctx context.Context, st *workflow.State) *workflow.State {
	if st.HasSketches {
		st.Append("agent", "Generating bid response using sketch analysis and request text")
		st.FinalResponse = fmt.Sprintf("Bid response draft for request %s incorporating %d analyzed sketch(es).",
			st.RequestID, len(st.AnalysisResults))
	} else {
		st.Append("agent", "Generating bid response from request text")
		st.FinalResponse = fmt.Sprintf("Bid response draft for request %s.", st.RequestID)
	}
	st.Report(model.JobStatusProcessing, stageProgress[StageGeneration], StageGeneration)
	return st
}

func (o *orchestratorUC) review(ctx context.Context, st *workflow.State) *workflow.State {
	st.Append("agent", "Quality review complete")
	st.Report(model.JobStatusProcessing, stageProgress[StageReview], StageReview)
	return st
}
