// Package jobs runs ingestion-and-annotation batches in the background
// so a slow oracle never blocks the interactive layer. Completion is
// observable through job records rather than silent.
package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tickerpulse/internal/annotate"
	"tickerpulse/internal/domain"
	"tickerpulse/internal/observability"
	"tickerpulse/internal/source"
)

// State is the lifecycle state of one ingestion job.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job tracks one background ingestion for a group.
type Job struct {
	ID         string    `json:"id"`
	Group      string    `json:"group"`
	SourceID   string    `json:"source_id"`
	State      State     `json:"state"`
	Records    int       `json:"records"`
	Messages   int       `json:"messages"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Runner executes ingestion jobs. Jobs for the same group are
// serialized so a reset never interleaves with a concurrent insert.
type Runner struct {
	annotator *annotate.Annotator
	source    source.MessageSource
	logger    *log.Logger

	mu         sync.Mutex
	jobs       map[string]*Job
	groupLocks map[string]*sync.Mutex
	wg         sync.WaitGroup
}

// Options contains configuration for creating a Runner.
type Options struct {
	Annotator *annotate.Annotator
	Source    source.MessageSource
	Logger    *log.Logger
}

// NewRunner creates a job runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		annotator:  opts.Annotator,
		source:     opts.Source,
		logger:     logger,
		jobs:       make(map[string]*Job),
		groupLocks: make(map[string]*sync.Mutex),
	}
}

// Start schedules an ingestion job and returns it immediately in the
// pending state. The batch runs on its own goroutine.
func (r *Runner) Start(ctx context.Context, group, sourceID string, limit int, reset bool) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Group:     group,
		SourceID:  sourceID,
		State:     StatePending,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	lock := r.groupLocks[group]
	if lock == nil {
		lock = &sync.Mutex{}
		r.groupLocks[group] = lock
	}
	r.mu.Unlock()

	observability.RecordJobStarted()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		lock.Lock()
		defer lock.Unlock()
		r.run(ctx, job, limit, reset)
	}()

	return job
}

// Get returns a copy of the job with the given ID.
func (r *Runner) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all known jobs.
func (r *Runner) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, *job)
	}
	return result
}

// Wait blocks until all running jobs finish. For shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, job *Job, limit int, reset bool) {
	r.setState(job, StateRunning)

	messages, err := r.source.FetchMessages(ctx, job.SourceID, limit)
	if err != nil {
		// Source entirely unreachable: fail the job explicitly so the
		// caller can tell it apart from a group with no messages.
		if errors.Is(err, source.ErrSourceUnavailable) {
			r.fail(job, "message source unavailable")
			return
		}
		r.fail(job, err.Error())
		return
	}

	r.setMessages(job, len(messages))
	observability.RecordMessagesFetched(len(messages))

	records, err := r.annotator.Annotate(ctx, messages, job.Group, reset)
	if err != nil {
		r.fail(job, err.Error())
		return
	}

	r.finish(job, records)
	r.logger.Printf("job %s for group %s done: %d records", job.ID, job.Group, len(records))
}

func (r *Runner) setState(job *Job, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.State = state
}

func (r *Runner) setMessages(job *Job, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.Messages = n
}

func (r *Runner) fail(job *Job, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.State = StateFailed
	job.Error = msg
	job.FinishedAt = time.Now().UTC()
	observability.RecordJobFinished(string(StateFailed))
}

func (r *Runner) finish(job *Job, records []*domain.AnnotatedRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.State = StateDone
	job.Records = len(records)
	job.FinishedAt = time.Now().UTC()
	observability.RecordJobFinished(string(StateDone))
}
