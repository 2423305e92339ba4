// Package jobs runs long editor actions, such as the video build, in the
// background.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned when every worker is occupied
var ErrBusy = errors.New("another job is already running")

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Task is the work of a job; its output is kept for the status endpoint
type Task func(ctx context.Context) (string, error)

// Runner executes tasks on a fixed size ants pool. Submitting while all
// workers are busy fails instead of queueing.
type Runner struct {
	pool *ants.Pool
	ctx  context.Context

	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	wg   sync.WaitGroup
}

func NewRunner(ctx context.Context, workers int) (*Runner, error) {
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Runner{
		pool: pool,
		ctx:  ctx,
		jobs: make(map[uuid.UUID]*Job),
	}, nil
}

func (r *Runner) Submit(kind string, task Task) (Job, error) {
	job := &Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"job":  job.ID,
		"kind": kind,
	})

	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()

		output, err := task(r.ctx)
		r.finish(job.ID, output, err)

		if err != nil {
			log.WithError(err).Error("Job failed")
			return
		}
		log.Info("Job finished")
	})
	if err != nil {
		r.wg.Done()
		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()

		if errors.Is(err, ants.ErrPoolOverload) {
			return Job{}, ErrBusy
		}
		return Job{}, fmt.Errorf("failed to submit job: %w", err)
	}

	log.Info("Job started")
	return r.snapshot(job), nil
}

func (r *Runner) finish(id uuid.UUID, output string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job := r.jobs[id]
	now := time.Now()
	job.FinishedAt = &now
	job.Output = output
	job.Status = StatusSucceeded
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	}
}

func (r *Runner) Get(id uuid.UUID) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (r *Runner) snapshot(job *Job) Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *job
}

// Wait blocks until all submitted jobs are done
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close waits up to timeout for running jobs, then releases the pool
func (r *Runner) Close(timeout time.Duration) error {
	return r.pool.ReleaseTimeout(timeout)
}
