package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"bidforge/internal/domain"
	"bidforge/internal/domain/model"
	"bidforge/internal/infra/registry"
	"bidforge/internal/infra/worker"
)

func newJobFixture(t *testing.T, sketch SketchUseCase) (*jobUC, func()) {
	t.Helper()

	orch, err := NewOrchestratorUseCase(sketch, nil, 0, nopLogger())
	if err != nil {
		t.Fatalf("NewOrchestratorUseCase returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(2, 8, nopLogger())
	pool.Start(ctx)

	reg := registry.NewInMemory(nopLogger())
	uc := NewJobUseCase(reg, orch, pool, nopLogger())
	return uc, func() {
		cancel()
		pool.Stop()
	}
}

// waitTerminal polls until the job leaves the non-terminal states.
func waitTerminal(t *testing.T, uc *jobUC, id string) *model.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := uc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", id)
	return nil
}

func TestJobUC_SubmitCompletes(t *testing.T) {
	t.Parallel()

	uc, stop := newJobFixture(t, &fakeSketchUC{})
	defer stop()

	job, err := uc.Submit(context.Background(), Request{Text: "Build a warehouse"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Fatalf("expected pending at submit, got %q", job.Status)
	}

	done := waitTerminal(t, uc, job.ID)
	if done.Status != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", done.Status, done.ErrorMessage)
	}
	if done.ProgressPercent != 100 {
		t.Fatalf("expected 100%%, got %d", done.ProgressPercent)
	}
	if done.Result["decision"] != "generate" {
		t.Fatalf("expected generate decision in result, got %v", done.Result)
	}
}

func TestJobUC_FailedRunMarksJobFailed(t *testing.T) {
	t.Parallel()

	uc, stop := newJobFixture(t, &fakeSketchUC{err: errors.New("provider down")})
	defer stop()

	job, err := uc.Submit(context.Background(), Request{Text: "RFP", Images: oneImage()})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	done := waitTerminal(t, uc, job.ID)
	if done.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %q", done.Status)
	}
	if done.ErrorMessage == "" {
		t.Fatalf("expected error message on failed job")
	}
}

func TestJobUC_CancelUnknownIsNoop(t *testing.T) {
	t.Parallel()

	uc, stop := newJobFixture(t, &fakeSketchUC{})
	defer stop()

	// Must not panic or create a record.
	uc.Cancel(context.Background(), "missing")
	if _, err := uc.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobUC_DeleteRemovesJob(t *testing.T) {
	t.Parallel()

	uc, stop := newJobFixture(t, &fakeSketchUC{})
	defer stop()

	job, err := uc.Submit(context.Background(), Request{Text: "RFP"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitTerminal(t, uc, job.ID)

	uc.Delete(context.Background(), job.ID)
	if _, err := uc.Get(context.Background(), job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestJobUC_ListByStatus(t *testing.T) {
	t.Parallel()

	uc, stop := newJobFixture(t, &fakeSketchUC{})
	defer stop()

	a, _ := uc.Submit(context.Background(), Request{Text: "first"})
	b, _ := uc.Submit(context.Background(), Request{Text: "second"})
	waitTerminal(t, uc, a.ID)
	waitTerminal(t, uc, b.ID)

	completed := model.JobStatusCompleted
	if got := uc.List(context.Background(), &completed); len(got) != 2 {
		t.Fatalf("expected 2 completed jobs, got %d", len(got))
	}
	failed := model.JobStatusFailed
	if got := uc.List(context.Background(), &failed); len(got) != 0 {
		t.Fatalf("expected no failed jobs, got %d", len(got))
	}
}
