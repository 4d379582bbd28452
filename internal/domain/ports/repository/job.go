package repository

import (
	"context"

	"bidforge/internal/domain/model"
)

// JobRegistry owns every Job record and all status transitions. The reference
// implementation is in-memory; a durable store can replace it behind this
// contract without touching the engine or the web layer.
//
// UpdateProgress, Complete, Fail and Cancel are silent no-ops when the job is
// absent or already terminal: callers may race completion and cancellation
// benignly.
type JobRegistry interface {
	Create(ctx context.Context, id, kind string, input map[string]any, totalSteps int) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	UpdateProgress(ctx context.Context, id string, status model.JobStatus, percent int, step string)
	Complete(ctx context.Context, id string, result map[string]any)
	Fail(ctx context.Context, id, errorMessage string)
	Cancel(ctx context.Context, id string)
	Delete(ctx context.Context, id string)
	List(ctx context.Context, status *model.JobStatus) []*model.Job
}
