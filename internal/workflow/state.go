package workflow

import (
	"time"

	"bidforge/internal/domain/model"
)

// Terminal is the reserved routing target that ends a run.
const Terminal = "__end__"

// Message is one entry in the run's append-only status log.
type Message struct {
	Role    string    `json:"role"` // "user" | "agent"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ProgressFunc receives stage progress; the job service points it at the
// JobRegistry. It may be nil.
type ProgressFunc func(status model.JobStatus, percent int, step string)

// State is the value threaded through one run. It is owned by exactly one
// stage handler at a time and never shared between concurrent runs, so it
// carries no locking.
type State struct {
	RequestID string

	// Input
	Text           string
	ProjectContext string
	Images         []model.SketchImage
	SketchMeta     []model.SketchMetadata

	// RequiresSketchAnalysis is the explicit routing flag; the classifier
	// also derives routing from Images and SketchMeta.
	RequiresSketchAnalysis bool

	// Set by the classifier.
	HasSketches bool
	SketchCount int

	// Per-stage results.
	AnalysisResults  []model.SketchAnalysis
	Extracted        map[string]any
	Embeddings       []string
	VectorIDs        []string
	AnalysisComplete bool

	// Routing outcome of the decision stage: "generate" or "reject".
	Decision string

	FinalResponse string
	Messages      []Message

	// Err is the terminal error field. A non-empty value short-circuits the
	// run to Terminal after the current stage returns.
	Err string

	Retries int

	onProgress ProgressFunc
	next       string
}

func NewState(requestID string) *State {
	return &State{
		RequestID: requestID,
		Extracted: map[string]any{},
	}
}

// SetProgress installs the progress callback used by instrumented handlers.
func (s *State) SetProgress(fn ProgressFunc) { s.onProgress = fn }

// Report forwards progress to the registry callback, if any.
func (s *State) Report(status model.JobStatus, percent int, step string) {
	if s.onProgress != nil {
		s.onProgress(status, percent, step)
	}
}

// Append adds one message to the run log.
func (s *State) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, At: time.Now()})
}

// Fail records a terminal error. The first error wins.
func (s *State) Fail(msg string) {
	if s.Err == "" {
		s.Err = msg
	}
	s.SetNext(Terminal)
}

// SetNext declares the next-stage hint. Once the hint is Terminal it is
// sticky and further calls are ignored.
func (s *State) SetNext(stage string) {
	if s.next == Terminal {
		return
	}
	s.next = stage
}

// Next returns the current next-stage hint, or "" when none was declared.
func (s *State) Next() string { return s.next }
