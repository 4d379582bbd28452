package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is absorbing: once a job reaches
// completed, failed or cancelled no further transition is applied.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job tracks one asynchronous unit of work. Result and ErrorMessage are
// mutually exclusive and both empty until the job reaches a terminal status.
type Job struct {
	ID           string         `json:"job_id"`
	Status       JobStatus      `json:"status"`
	Kind         string         `json:"job_type"`
	Input        map[string]any `json:"input_data,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`

	ProgressPercent int    `json:"progress_percent"`
	CurrentStep     string `json:"current_step,omitempty"`
	TotalSteps      int    `json:"total_steps,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ProcessingTime is completed - created, set once on completion.
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
}

// Clone returns a copy safe to hand outside the registry. The input and
// result maps are shallow-copied; callers must not mutate nested values.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Input != nil {
		cp.Input = make(map[string]any, len(j.Input))
		for k, v := range j.Input {
			cp.Input[k] = v
		}
	}
	if j.Result != nil {
		cp.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			cp.Result[k] = v
		}
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
