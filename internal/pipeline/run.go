package pipeline

import (
	"fmt"
	"strings"

	"vibedocs/internal/documents"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobGenerating JobStatus = "generating"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// DocumentJob tracks one document within a run.
type DocumentJob struct {
	Key        documents.Key
	Status     JobStatus
	Content    string
	Error      string
	RetryCount int
}

type RunState string

const (
	RunNotStarted          RunState = "not_started"
	RunStreaming           RunState = "streaming"
	RunCompleted           RunState = "completed"
	RunCompletedWithErrors RunState = "completed_with_errors"
)

// Run is the server-side record of one streaming session. It lives only for
// the duration of the stream.
type Run struct {
	Jobs        []*DocumentJob
	TotalSteps  int
	CurrentStep int
	State       RunState

	skipped int
	byKey   map[documents.Key]*DocumentJob
}

// NewRun lays out jobs for keys. Keys present in seeded start completed and
// do not count toward TotalSteps; step numbering continues after them.
func NewRun(keys []documents.Key, seeded map[documents.Key]string) *Run {
	r := &Run{State: RunNotStarted, byKey: map[documents.Key]*DocumentJob{}}
	for _, k := range keys {
		job := &DocumentJob{Key: k, Status: JobPending}
		if content, ok := seeded[k]; ok {
			job.Status = JobCompleted
			job.Content = content
			r.skipped++
		} else {
			r.TotalSteps++
		}
		r.Jobs = append(r.Jobs, job)
		r.byKey[k] = job
	}
	r.CurrentStep = r.skipped
	return r
}

// Skipped is the number of jobs seeded as completed.
func (r *Run) Skipped() int { return r.skipped }

// Pending returns the jobs still to dispatch, in order.
func (r *Run) Pending() []*DocumentJob {
	var out []*DocumentJob
	for _, j := range r.Jobs {
		if j.Status == JobPending {
			out = append(out, j)
		}
	}
	return out
}

// Begin moves a pending job to generating and advances the step counter.
func (r *Run) Begin(k documents.Key) (int, error) {
	job, ok := r.byKey[k]
	if !ok {
		return 0, fmt.Errorf("unknown document %q", k)
	}
	if job.Status != JobPending {
		return 0, fmt.Errorf("document %q is %s, not pending", k, job.Status)
	}
	job.Status = JobGenerating
	r.State = RunStreaming
	r.CurrentStep++
	return r.CurrentStep, nil
}

func (r *Run) settle(k documents.Key) (*DocumentJob, error) {
	job, ok := r.byKey[k]
	if !ok {
		return nil, fmt.Errorf("unknown document %q", k)
	}
	if job.Status != JobGenerating {
		return nil, fmt.Errorf("document %q is %s, not generating", k, job.Status)
	}
	return job, nil
}

func (r *Run) Complete(k documents.Key, content string, retries int) error {
	job, err := r.settle(k)
	if err != nil {
		return err
	}
	job.Status, job.Content, job.Error, job.RetryCount = JobCompleted, content, "", retries
	return nil
}

func (r *Run) Fail(k documents.Key, reason, fallback string, retries int) error {
	job, err := r.settle(k)
	if err != nil {
		return err
	}
	job.Status, job.Content, job.Error, job.RetryCount = JobError, fallback, strings.TrimSpace(reason), retries
	return nil
}

// Finish fixes the terminal state once every job has settled.
func (r *Run) Finish() RunState {
	r.State = RunCompleted
	if len(r.Failed()) > 0 {
		r.State = RunCompletedWithErrors
	}
	return r.State
}

// Failed returns the keys in error, in run order.
func (r *Run) Failed() []documents.Key {
	var out []documents.Key
	for _, j := range r.Jobs {
		if j.Status == JobError {
			out = append(out, j.Key)
		}
	}
	return out
}

// Documents returns content for every job, including fallbacks for failed ones.
func (r *Run) Documents() map[documents.Key]string {
	out := make(map[documents.Key]string, len(r.Jobs))
	for _, j := range r.Jobs {
		out[j.Key] = j.Content
	}
	return out
}
