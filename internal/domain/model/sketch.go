package model

import "time"

// DocumentType classifies a construction document.
type DocumentType string

const (
	DocumentArchitectural DocumentType = "architectural"
	DocumentStructural    DocumentType = "structural"
	DocumentMEP           DocumentType = "MEP"
	DocumentElectrical    DocumentType = "electrical"
	DocumentMechanical    DocumentType = "mechanical"
	DocumentPlumbing      DocumentType = "plumbing"
	DocumentCivil         DocumentType = "civil"
	DocumentLandscape     DocumentType = "landscape"
	DocumentUnknown       DocumentType = "unknown"
)

// ProjectPhase is the development phase a document belongs to.
type ProjectPhase string

const (
	PhaseConcept         ProjectPhase = "concept"
	PhaseSchematic       ProjectPhase = "schematic"
	PhaseDesignDev       ProjectPhase = "design_development"
	PhaseConstructionDoc ProjectPhase = "construction_documents"
	PhaseTender          ProjectPhase = "tender"
	PhaseConstruction    ProjectPhase = "construction"
	PhaseUnknown         ProjectPhase = "unknown"
)

// SketchImage is a decoded, analysis-ready image payload.
type SketchImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// SketchMetadata describes an uploaded sketch.
type SketchMetadata struct {
	SketchID   string    `json:"sketch_id"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	RFPID      string    `json:"rfp_id,omitempty"`
	ProjectID  string    `json:"project_id,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Dimension is one extracted dimension (wall length, room area, ...).
type Dimension struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Location   string  `json:"location,omitempty"`
	Reference  string  `json:"reference,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Material is one extracted material specification.
type Material struct {
	Name          string  `json:"name"`
	Category      string  `json:"category,omitempty"`
	Grade         string  `json:"grade,omitempty"`
	Specification string  `json:"specification,omitempty"`
	Quantity      float64 `json:"quantity,omitempty"`
	Unit          string  `json:"unit,omitempty"`
	Standard      string  `json:"standard,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Component is one extracted building component.
type Component struct {
	Type          string  `json:"type"`
	Name          string  `json:"name,omitempty"`
	Size          string  `json:"size,omitempty"`
	Count         int     `json:"count,omitempty"`
	Location      string  `json:"location,omitempty"`
	Specification string  `json:"specification,omitempty"`
	Material      string  `json:"material,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// SketchAnalysis is the structured output for one analyzed sketch.
type SketchAnalysis struct {
	SketchID     string       `json:"sketch_id"`
	DocumentType DocumentType `json:"document_type"`
	ProjectPhase ProjectPhase `json:"project_phase"`

	Dimensions     []Dimension    `json:"dimensions,omitempty"`
	Materials      []Material     `json:"materials,omitempty"`
	Specifications []string       `json:"specifications,omitempty"`
	Components     []Component    `json:"components,omitempty"`
	Quantities     map[string]any `json:"quantities,omitempty"`

	Standards     []string `json:"standards,omitempty"`
	RegionalCodes []string `json:"regional_codes,omitempty"`
	Annotations   []string `json:"annotations,omitempty"`

	ConfidenceScore float64       `json:"confidence_score"`
	ProcessingTime  time.Duration `json:"processing_time"`
	Notes           string        `json:"notes,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`

	VectorIDs  []string  `json:"vector_ids,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ClampConfidence forces the confidence score into [0,100].
func (a *SketchAnalysis) ClampConfidence() {
	if a.ConfidenceScore < 0 {
		a.ConfidenceScore = 0
	}
	if a.ConfidenceScore > 100 {
		a.ConfidenceScore = 100
	}
}
