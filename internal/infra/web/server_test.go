package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
	"bidforge/internal/usecase"
	"bidforge/internal/workflow"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type fakeOrchestrator struct {
	lastReq usecase.Request
	resp    *usecase.Response
	err     error
}

var _ usecase.OrchestratorUseCase = (*fakeOrchestrator)(nil)

func (f *fakeOrchestrator) ProcessRequest(ctx context.Context, req usecase.Request, progress workflow.ProgressFunc) (*usecase.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &usecase.Response{RequestID: "r1", Success: true, Decision: "generate"}, nil
}

func (f *fakeOrchestrator) TotalSteps() int { return 7 }

type fakeJobs struct {
	jobs      map[string]*model.Job
	lastReq   usecase.Request
	submitErr error
	cancelled []string
	deleted   []string
}

var _ usecase.JobUseCase = (*fakeJobs)(nil)

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*model.Job)}
}

func (f *fakeJobs) Submit(ctx context.Context, req usecase.Request) (*model.Job, error) {
	f.lastReq = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	job := &model.Job{ID: "job-1", Status: model.JobStatusPending, Kind: "bid_analysis"}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (*model.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) List(ctx context.Context, status *model.JobStatus) []*model.Job {
	out := make([]*model.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		if status != nil && j.Status != *status {
			continue
		}
		out = append(out, j)
	}
	return out
}

func (f *fakeJobs) Cancel(ctx context.Context, id string) {
	f.cancelled = append(f.cancelled, id)
	if j, ok := f.jobs[id]; ok && !j.Status.Terminal() {
		j.Status = model.JobStatusCancelled
	}
}

func (f *fakeJobs) Delete(ctx context.Context, id string) {
	f.deleted = append(f.deleted, id)
	delete(f.jobs, id)
}

func newTestServer(orch *fakeOrchestrator, jobs *fakeJobs) *httptest.Server {
	s := NewServer(orch, jobs, "secret-key", "0123456789abcdef0123456789abcdef", 8, nopLogger())
	return httptest.NewServer(s.Router())
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeOrchestrator{}, newFakeJobs())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_AnalyzeSync(t *testing.T) {
	t.Parallel()

	orch := &fakeOrchestrator{}
	ts := newTestServer(orch, newFakeJobs())
	defer ts.Close()

	body := strings.NewReader(`{"text":"Build a warehouse","project_context":"Dubai"}`)
	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", body)
	if err != nil {
		t.Fatalf("POST /analyze: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got usecase.Response
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Success || got.Decision != "generate" {
		t.Fatalf("unexpected response: %+v", got)
	}
	if orch.lastReq.ProjectContext != "Dubai" {
		t.Fatalf("project context not forwarded: %+v", orch.lastReq)
	}
}

func TestServer_AnalyzeRequiresText(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeOrchestrator{}, newFakeJobs())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /analyze: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestServer_SubmitJobMultipart(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	ts := newTestServer(&fakeOrchestrator{}, jobs)
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("text", "Two-storey residential")
	fw, err := mw.CreateFormFile("sketches", "plan.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(pngBytes(t)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/v1/jobs", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(jobs.lastReq.Images) != 1 {
		t.Fatalf("expected 1 decoded image, got %d", len(jobs.lastReq.Images))
	}
	if len(jobs.lastReq.SketchMeta) != 1 || jobs.lastReq.SketchMeta[0].Filename != "plan.png" {
		t.Fatalf("metadata not built: %+v", jobs.lastReq.SketchMeta)
	}
}

func TestServer_SubmitJobRejectsUnsupportedFile(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeOrchestrator{}, newFakeJobs())
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("sketches", "notes.txt")
	_, _ = fw.Write([]byte("not an image"))
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/v1/jobs", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_SubmitJobQueueFull(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	jobs.submitErr = domain.ErrQueueFull
	ts := newTestServer(&fakeOrchestrator{}, jobs)
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("text", "RFP")
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/v1/jobs", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestServer_GetJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	jobs.jobs["job-1"] = &model.Job{ID: "job-1", Status: model.JobStatusProcessing}
	ts := newTestServer(&fakeOrchestrator{}, jobs)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/jobs/job-1")
	if err != nil {
		t.Fatalf("GET /jobs/job-1: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/api/v1/jobs/missing")
	if err != nil {
		t.Fatalf("GET /jobs/missing: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp2.StatusCode)
	}
}

func TestServer_ListJobsFilterValidation(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeOrchestrator{}, newFakeJobs())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/jobs?status=bogus")
	if err != nil {
		t.Fatalf("GET /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus status, got %d", resp.StatusCode)
	}
}

func TestServer_CancelJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	jobs.jobs["job-1"] = &model.Job{ID: "job-1", Status: model.JobStatusProcessing}
	ts := newTestServer(&fakeOrchestrator{}, jobs)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/jobs/job-1/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(jobs.cancelled) != 1 || jobs.cancelled[0] != "job-1" {
		t.Fatalf("cancel not forwarded: %v", jobs.cancelled)
	}
}

func TestServer_DeleteJobRequiresAuth(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	jobs.jobs["job-1"] = &model.Job{ID: "job-1", Status: model.JobStatusCompleted}
	ts := newTestServer(&fakeOrchestrator{}, jobs)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/jobs/job-1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE without auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/jobs/job-1", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE with key: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if len(jobs.deleted) != 1 {
		t.Fatalf("delete not forwarded: %v", jobs.deleted)
	}
}

func TestServer_AdminLogin(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&fakeOrchestrator{}, newFakeJobs())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/admin/login", "application/json", strings.NewReader(`{"api_key":"wrong"}`))
	if err != nil {
		t.Fatalf("POST login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/v1/admin/login", "application/json", strings.NewReader(`{"api_key":"secret-key"}`))
	if err != nil {
		t.Fatalf("POST login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if out["token"] == "" {
		t.Fatalf("expected session token in response")
	}
}
