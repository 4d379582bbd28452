// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"bidforge/internal/domain/model"
	"bidforge/internal/domain/ports/repository"
	"bidforge/internal/infra/logging"
	"bidforge/internal/infra/metrics"
	"bidforge/internal/infra/worker"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// JobUseCase submits bid-processing runs as asynchronous jobs and exposes
// their lifecycle.
type JobUseCase interface {
	Submit(ctx context.Context, req Request) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, status *model.JobStatus) []*model.Job
	Cancel(ctx context.Context, id string)
	Delete(ctx context.Context, id string)
}

type jobUC struct {
	registry repository.JobRegistry
	orch     OrchestratorUseCase
	pool     *worker.Pool
	log      *zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewJobUseCase(registry repository.JobRegistry, orch OrchestratorUseCase, pool *worker.Pool, log *zerolog.Logger) *jobUC {
	return &jobUC{
		registry: registry,
		orch:     orch,
		pool:     pool,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit registers a PENDING job and queues the run. The job record moves
// through PROCESSING via the state's progress callback and reaches a
// terminal status exactly once.
func (j *jobUC) Submit(ctx context.Context, req Request) (*model.Job, error) {
	input := map[string]any{
		"text_length":  len(req.Text),
		"sketch_count": len(req.Images),
	}
	if req.ProjectContext != "" {
		input["project_context"] = req.ProjectContext
	}

	job, err := j.registry.Create(ctx, "", "bid_analysis", input, j.orch.TotalSteps())
	if err != nil {
		return nil, err
	}
	metrics.IncJobSubmitted()

	jobID := job.ID
	task := func(taskCtx context.Context) error {
		runCtx, cancel := context.WithCancel(logging.WithJobID(taskCtx, jobID))
		j.track(jobID, cancel)
		defer j.untrack(jobID)
		log := logging.With(runCtx, j.log)

		progress := func(status model.JobStatus, percent int, step string) {
			j.registry.UpdateProgress(runCtx, jobID, status, percent, step)
		}

		resp, err := j.orch.ProcessRequest(runCtx, req, progress)
		switch {
		case runCtx.Err() != nil:
			log.Info().Msg("job cancelled mid-run")
			j.registry.Cancel(context.Background(), jobID)
			return nil
		case err != nil:
			j.registry.Fail(context.Background(), jobID, err.Error())
			return err
		case !resp.Success:
			log.Warn().Str("error", resp.Error).Msg("job run failed")
			j.registry.Fail(context.Background(), jobID, resp.Error)
			return nil
		default:
			j.registry.Complete(context.Background(), jobID, map[string]any{
				"request_id":     resp.RequestID,
				"has_sketches":   resp.HasSketches,
				"sketch_count":   resp.SketchCount,
				"decision":       resp.Decision,
				"extracted_data": resp.ExtractedData,
				"vector_ids":     resp.VectorIDs,
				"final_response": resp.FinalResponse,
			})
			return nil
		}
	}

	if err := j.pool.Submit(task); err != nil {
		j.registry.Fail(ctx, jobID, err.Error())
		return nil, err
	}
	return job, nil
}

func (j *jobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return j.registry.Get(ctx, id)
}

func (j *jobUC) List(ctx context.Context, status *model.JobStatus) []*model.Job {
	return j.registry.List(ctx, status)
}

// Cancel marks the job cancelled and interrupts its run if one is in
// flight. Cancelling a terminal or unknown job is a no-op.
func (j *jobUC) Cancel(ctx context.Context, id string) {
	j.registry.Cancel(ctx, id)

	j.mu.Lock()
	cancel := j.cancels[id]
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *jobUC) Delete(ctx context.Context, id string) {
	j.Cancel(ctx, id)
	j.registry.Delete(ctx, id)
}

func (j *jobUC) track(id string, cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancels[id] = cancel
	j.mu.Unlock()
}

func (j *jobUC) untrack(id string) {
	j.mu.Lock()
	delete(j.cancels, id)
	j.mu.Unlock()
}
