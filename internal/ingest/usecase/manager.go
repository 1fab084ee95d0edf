package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/ingest/event"
	"github.com/shandysiswandi/goingest/internal/pkg/pkglog"
)

// Sink receives job status updates.
type Sink = event.Sink

// JobRegistry holds the status of jobs owned by this process.
type JobRegistry interface {
	Put(ctx context.Context, job entity.UploadJob) error
	Get(ctx context.Context, jobID string) (entity.UploadJob, error)
	Update(ctx context.Context, jobID string, fn func(job *entity.UploadJob)) (entity.UploadJob, error)
	Delete(ctx context.Context, jobID string)
	ListActive(ctx context.Context) []entity.UploadJob
}

type Broadcaster interface {
	Subscribe(jobID string, sink event.Sink) func()
	Publish(job entity.UploadJob)
	Forget(jobID string)
}

// Runner schedules background work without blocking the caller.
type Runner interface {
	Queue(ctx context.Context, f func(ctx context.Context) error)
}

// Task is the body of a job. It reports through p and returns the error that
// fails the job, or nil on success.
type Task func(ctx context.Context, p *Progress) error

type JobManagerDependency struct {
	Registry JobRegistry
	Events   Broadcaster
	Runner   Runner
	Clock    Clock
	RootCtx  context.Context
	// Retention keeps terminal jobs readable before they are removed.
	Retention time.Duration
}

// JobManager starts jobs and owns their lifecycle: every job ends completed
// or failed, is announced, cleaned up and then removed from the registry.
type JobManager struct {
	registry  JobRegistry
	events    Broadcaster
	runner    Runner
	clock     Clock
	rootCtx   context.Context
	retention time.Duration
}

func NewJobManager(dep JobManagerDependency) *JobManager {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &JobManager{
		registry:  dep.Registry,
		events:    dep.Events,
		runner:    dep.Runner,
		clock:     clock,
		rootCtx:   root,
		retention: dep.Retention,
	}
}

// Start registers job as processing and runs task in the background.
// cleanup runs after the terminal status is published, whatever the outcome.
func (m *JobManager) Start(ctx context.Context, job entity.UploadJob, task Task, cleanup func(ctx context.Context)) error {
	if m.registry == nil || m.events == nil || m.runner == nil {
		return errors.New("job manager is missing a dependency")
	}

	now := m.clock.Now()
	job.Status = entity.JobStatusProcessing
	job.Progress = 0
	job.TotalRows = 0
	job.ProcessedRows = 0
	job.Error = ""
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := m.registry.Put(ctx, job); err != nil {
		return err
	}
	m.events.Publish(job)

	// The runner skips work whose context is already done. Jobs must always
	// reach a terminal status, so the task sees cancellation instead.
	m.runner.Queue(context.WithoutCancel(m.rootCtx), func(context.Context) error {
		m.run(pkglog.SetJobID(m.rootCtx, job.ID), job.ID, task, cleanup)
		return nil
	})

	return nil
}

func (m *JobManager) run(ctx context.Context, jobID string, task Task, cleanup func(ctx context.Context)) {
	var err error
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic occurred in upload job", "panic", rvr, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", rvr)
		}

		m.finish(ctx, jobID, err)
		if cleanup != nil {
			cleanup(ctx)
		}
		m.reap(ctx, jobID)
	}()

	slog.InfoContext(ctx, "upload job started")
	err = task(ctx, &Progress{m: m, jobID: jobID})
}

func (m *JobManager) finish(ctx context.Context, jobID string, cause error) {
	job, err := m.update(ctx, jobID, func(job *entity.UploadJob) {
		if cause != nil {
			job.Status = entity.JobStatusFailed
			job.Error = cause.Error()
			return
		}
		job.Status = entity.JobStatusCompleted
		job.Progress = 100
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record upload job outcome", "error", err)
		return
	}

	if cause != nil {
		slog.ErrorContext(ctx, "upload job failed", "error", cause, "processed_rows", job.ProcessedRows, "total_rows", job.TotalRows)
		return
	}
	slog.InfoContext(ctx, "upload job completed", "processed_rows", job.ProcessedRows, "total_rows", job.TotalRows)
}

func (m *JobManager) reap(ctx context.Context, jobID string) {
	ctx = context.WithoutCancel(ctx)
	remove := func() {
		m.registry.Delete(ctx, jobID)
		m.events.Forget(jobID)
	}

	if m.retention <= 0 {
		remove()
		return
	}
	time.AfterFunc(m.retention, remove)
}

// update applies fn to a processing job and publishes the result. Terminal
// jobs are left as they are, and progress never moves backwards.
func (m *JobManager) update(ctx context.Context, jobID string, fn func(job *entity.UploadJob)) (entity.UploadJob, error) {
	now := m.clock.Now()
	changed := false

	job, err := m.registry.Update(ctx, jobID, func(job *entity.UploadJob) {
		if job.Status.Terminal() {
			return
		}

		prev := job.Progress
		fn(job)
		if job.Progress < prev {
			job.Progress = prev
		}
		job.UpdatedAt = now
		changed = true
	})
	if err != nil {
		return entity.UploadJob{}, err
	}

	if changed {
		m.events.Publish(job)
	}
	return job, nil
}

// Get returns the job snapshot.
func (m *JobManager) Get(ctx context.Context, jobID string) (entity.UploadJob, error) {
	return m.registry.Get(ctx, jobID)
}

// ListActive returns jobs still processing.
func (m *JobManager) ListActive(ctx context.Context) []entity.UploadJob {
	return m.registry.ListActive(ctx)
}

// Watch subscribes sink to jobID. The sink first receives the current status.
func (m *JobManager) Watch(ctx context.Context, jobID string, sink Sink) (func(), error) {
	unsubscribe := m.events.Subscribe(jobID, sink)
	if _, err := m.registry.Get(ctx, jobID); err != nil {
		unsubscribe()
		return nil, err
	}
	return unsubscribe, nil
}

// ActiveFiles returns the staged files still owned by processing jobs.
func (m *JobManager) ActiveFiles(ctx context.Context) map[string]struct{} {
	files := make(map[string]struct{})
	for _, job := range m.registry.ListActive(ctx) {
		if job.FilePath != "" {
			files[job.FilePath] = struct{}{}
		}
	}
	return files
}

// Progress is the handle a running task uses to report its state.
type Progress struct {
	m     *JobManager
	jobID string
}

// JobID returns the id of the job being run.
func (p *Progress) JobID() string {
	return p.jobID
}

// Update mutates the job and broadcasts the new status.
func (p *Progress) Update(ctx context.Context, fn func(job *entity.UploadJob)) error {
	_, err := p.m.update(ctx, p.jobID, fn)
	return err
}

// percent is floor(done*100/total), 0 when total is 0 and at most 100.
func percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(min(done*100/total, 100))
}
