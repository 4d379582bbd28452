package registry

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/repository"
	"bidforge/internal/infra/metrics"
)

var _ repository.JobRegistry = (*InMemory)(nil)

// InMemory is the volatile reference JobRegistry. One registry-wide mutex
// serializes every mutating operation; records never leave the map except as
// copies.
type InMemory struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	log  *zerolog.Logger
	now  func() time.Time
}

func NewInMemory(log *zerolog.Logger) *InMemory {
	return &InMemory{
		jobs: make(map[string]*model.Job),
		log:  log,
		now:  time.Now,
	}
}

func (r *InMemory) Create(ctx context.Context, id, kind string, input map[string]any, totalSteps int) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = ulid.Make().String()
	}
	if _, ok := r.jobs[id]; ok {
		return nil, domain.ErrDuplicateJob
	}

	now := r.now()
	job := &model.Job{
		ID:         id,
		Status:     model.JobStatusPending,
		Kind:       kind,
		Input:      input,
		TotalSteps: totalSteps,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.jobs[id] = job
	r.log.Debug().Str("job_id", id).Str("job_type", kind).Msg("job created")
	return job.Clone(), nil
}

func (r *InMemory) Get(ctx context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *InMemory) UpdateProgress(ctx context.Context, id string, status model.JobStatus, percent int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = status
	job.UpdatedAt = r.now()
	if percent > job.ProgressPercent && percent <= 100 {
		job.ProgressPercent = percent
	}
	if step != "" {
		job.CurrentStep = step
	}
}

func (r *InMemory) Complete(ctx context.Context, id string, result map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	now := r.now()
	job.Status = model.JobStatusCompleted
	job.Result = result
	job.ProgressPercent = 100
	job.UpdatedAt = now
	job.CompletedAt = &now
	job.ProcessingTime = now.Sub(job.CreatedAt)
	metrics.IncJob(string(model.JobStatusCompleted))
}

func (r *InMemory) Fail(ctx context.Context, id, errorMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = errorMessage
	job.UpdatedAt = r.now()
	metrics.IncJob(string(model.JobStatusFailed))
}

func (r *InMemory) Cancel(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobStatusCancelled
	job.UpdatedAt = r.now()
	metrics.IncJob(string(model.JobStatusCancelled))
}

func (r *InMemory) Delete(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *InMemory) List(ctx context.Context, status *model.JobStatus) []*model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if status != nil && job.Status != *status {
			continue
		}
		out = append(out, job.Clone())
	}
	return out
}
