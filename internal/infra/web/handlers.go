package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
	"bidforge/internal/infra/adapters/vision"
	"bidforge/internal/infra/imaging"
	"bidforge/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// analyzeRequest is the JSON body of the synchronous endpoint. Sketches
// arrive as multipart on the jobs endpoint; here only text is accepted.
type analyzeRequest struct {
	Text           string `json:"text"`
	ProjectContext string `json:"project_context,omitempty"`
}

// handleAnalyze runs a text-only request synchronously and returns the
// projected workflow result.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	resp, err := s.orch.ProcessRequest(r.Context(), usecase.Request{
		Text:           req.Text,
		ProjectContext: req.ProjectContext,
	}, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("synchronous analysis failed")
		http.Error(w, "Analysis failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	names := vision.Providers()
	out := make([]map[string]any, 0, len(names))
	for _, n := range names {
		info, ok := vision.Info(n)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"provider":      info.Provider,
			"default_model": info.DefaultModel,
			"models":        info.Models,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSubmitJob accepts a multipart form with a text field, an optional
// project_context field and any number of sketch files, and queues an
// asynchronous run.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
		return
	}

	req := usecase.Request{
		Text:           r.FormValue("text"),
		ProjectContext: r.FormValue("project_context"),
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["sketches"] {
			if !imaging.IsVisualFile(header.Filename) {
				http.Error(w, "Unsupported file type: "+header.Filename, http.StatusBadRequest)
				return
			}
			images, metas, err := s.readUpload(header)
			if err != nil {
				s.log.Warn().Str("filename", header.Filename).Err(err).Msg("rejected upload")
				http.Error(w, "Invalid file: "+header.Filename, http.StatusBadRequest)
				return
			}
			req.Images = append(req.Images, images...)
			req.SketchMeta = append(req.SketchMeta, metas...)
		}
	}

	if req.Text == "" && len(req.Images) == 0 {
		http.Error(w, "text or sketches required", http.StatusBadRequest)
		return
	}

	job, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			http.Error(w, "Queue is full, retry later", http.StatusServiceUnavailable)
			return
		}
		s.log.Error().Err(err).Msg("job submission failed")
		http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// readUpload turns one uploaded file into analysis-ready images. PDFs may
// expand into several images; raster formats map one to one.
func (s *Server) readUpload(header *multipart.FileHeader) ([]model.SketchImage, []model.SketchMetadata, error) {
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}

	contentType := imaging.DetectContentType(header.Header.Get("Content-Type"), data)

	var images []model.SketchImage
	if contentType == "application/pdf" {
		images, _, err = imaging.FromPDF(data, s.log)
		if err != nil {
			return nil, nil, err
		}
	} else {
		img, err := imaging.Optimize(data)
		if err != nil {
			return nil, nil, err
		}
		images = []model.SketchImage{img}
	}

	metas := make([]model.SketchMetadata, len(images))
	for i, img := range images {
		metas[i] = model.SketchMetadata{
			SketchID:   uuid.NewString(),
			Filename:   header.Filename,
			FileSize:   int64(len(data)),
			Format:     img.MIMEType,
			Width:      img.Width,
			Height:     img.Height,
			UploadedAt: time.Now(),
		}
	}
	return images, metas, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var filter *model.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.JobStatus(raw)
		switch status {
		case model.JobStatusPending, model.JobStatusProcessing,
			model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled:
			filter = &status
		default:
			http.Error(w, "Unknown status: "+raw, http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.jobs.List(r.Context(), filter))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.jobs.Get(r.Context(), id); errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	s.jobs.Cancel(r.Context(), id)
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	s.jobs.Delete(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
