package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/ingest/event"
	"github.com/shandysiswandi/goingest/internal/ingest/store"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgroutine"
)

func newTestManager(runner Runner) (*JobManager, *store.Registry, *event.Broadcaster) {
	registry := store.NewRegistry()
	events := event.NewBroadcaster()
	m := NewJobManager(JobManagerDependency{
		Registry: registry,
		Events:   events,
		Runner:   runner,
		RootCtx:  context.Background(),
	})
	return m, registry, events
}

func TestWatchStartsFromCurrentProgress(t *testing.T) {
	runner := pkgroutine.NewManager(2)
	m, _, _ := newTestManager(runner)
	ctx := context.Background()

	reached := make(chan struct{})
	release := make(chan struct{})
	task := func(ctx context.Context, p *Progress) error {
		if err := p.Update(ctx, func(job *entity.UploadJob) { job.TotalRows = 10 }); err != nil {
			return err
		}
		if err := p.Update(ctx, func(job *entity.UploadJob) { job.ProcessedRows = 5; job.Progress = 50 }); err != nil {
			return err
		}
		close(reached)
		<-release
		return nil
	}

	if err := m.Start(ctx, entity.UploadJob{ID: "job-1"}, task, nil); err != nil {
		t.Fatalf("Start() err = %v", err)
	}

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("task did not reach 50%")
	}

	rec := &recorder{}
	unsubscribe, err := m.Watch(ctx, "job-1", rec)
	if err != nil {
		t.Fatalf("Watch() err = %v", err)
	}
	defer unsubscribe()

	jobs := rec.all()
	if len(jobs) != 1 || jobs[0].Progress != 50 {
		t.Fatalf("Watch() initial events = %+v, want one at 50%%", jobs)
	}

	close(release)
	if err := runner.Wait(); err != nil {
		t.Fatalf("Wait() err = %v", err)
	}

	last := rec.last(t)
	if last.Status != entity.JobStatusCompleted || last.Progress != 100 {
		t.Fatalf("final status = %+v", last)
	}
}

func TestJobPanicMarksFailed(t *testing.T) {
	m, registry, events := newTestManager(syncRunner{})
	ctx := context.Background()

	rec := &recorder{}
	unsubscribe := events.Subscribe("job-1", rec)
	defer unsubscribe()

	cleaned := false
	err := m.Start(ctx, entity.UploadJob{ID: "job-1"}, func(context.Context, *Progress) error {
		panic("boom")
	}, func(context.Context) { cleaned = true })
	if err != nil {
		t.Fatalf("Start() err = %v", err)
	}

	last := rec.last(t)
	if last.Status != entity.JobStatusFailed || !strings.Contains(last.Error, "boom") {
		t.Fatalf("final status = %+v", last)
	}
	if !cleaned {
		t.Fatalf("cleanup did not run")
	}
	if _, err := registry.Get(ctx, "job-1"); err == nil {
		t.Fatalf("job still registered after failure")
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	m, _, events := newTestManager(syncRunner{})
	ctx := context.Background()

	rec := &recorder{}
	unsubscribe := events.Subscribe("job-1", rec)
	defer unsubscribe()

	err := m.Start(ctx, entity.UploadJob{ID: "job-1"}, func(ctx context.Context, p *Progress) error {
		_ = p.Update(ctx, func(job *entity.UploadJob) { job.Progress = 60 })
		_ = p.Update(ctx, func(job *entity.UploadJob) { job.Progress = 30 })
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Start() err = %v", err)
	}

	jobs := rec.all()
	if got := jobs[2].Progress; got != 60 {
		t.Fatalf("progress after regression = %d, want 60", got)
	}
}

func TestTerminalJobIsFrozen(t *testing.T) {
	m, registry, _ := newTestManager(syncRunner{})
	ctx := context.Background()

	if err := registry.Put(ctx, entity.UploadJob{ID: "job-1", Status: entity.JobStatusFailed, Progress: 40}); err != nil {
		t.Fatalf("Put() err = %v", err)
	}

	job, err := m.update(ctx, "job-1", func(job *entity.UploadJob) {
		job.Status = entity.JobStatusCompleted
		job.Progress = 100
	})
	if err != nil {
		t.Fatalf("update() err = %v", err)
	}
	if job.Status != entity.JobStatusFailed || job.Progress != 40 {
		t.Fatalf("terminal job changed: %+v", job)
	}
}

func TestCanceledRootStillFinishesJob(t *testing.T) {
	root, cancel := context.WithCancel(context.Background())
	cancel()

	runner := pkgroutine.NewManager(1)
	registry := store.NewRegistry()
	m := NewJobManager(JobManagerDependency{
		Registry:  registry,
		Events:    event.NewBroadcaster(),
		Runner:    runner,
		RootCtx:   root,
		Retention: time.Minute,
	})

	cleaned := false
	task := func(ctx context.Context, p *Progress) error {
		return ctx.Err()
	}
	if err := m.Start(context.Background(), entity.UploadJob{ID: "job-1"}, task, func(context.Context) { cleaned = true }); err != nil {
		t.Fatalf("Start() err = %v", err)
	}
	if err := runner.Wait(); err != nil {
		t.Fatalf("Wait() err = %v", err)
	}

	job, err := registry.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if job.Status != entity.JobStatusFailed || !strings.Contains(job.Error, "canceled") {
		t.Fatalf("job = %+v, want failed with cancellation", job)
	}
	if !cleaned {
		t.Fatal("cleanup did not run")
	}
}

// blockingDataset holds CreateRows until release is closed.
type blockingDataset struct {
	*store.MemoryDataset
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *blockingDataset) CreateRows(ctx context.Context, rows []entity.Row) error {
	d.once.Do(func() { close(d.entered) })
	<-d.release
	return d.MemoryDataset.CreateRows(ctx, rows)
}

func TestUploadReturnsWhileRunnerIsFull(t *testing.T) {
	ds := &blockingDataset{
		MemoryDataset: store.NewMemoryDataset(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	runner := pkgroutine.NewManager(1)
	f := newFixture(t, ds, runner, time.Minute)
	ctx := context.Background()
	content := "status\nactive\ninactive\n"

	f.upload(t, content, entity.UploadConfig{Overwrite: true})
	select {
	case <-ds.entered:
	case <-time.After(time.Second):
		t.Fatal("first job never reached the write pass")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		staged, err := f.uc.Stage(ctx, "second.csv", strings.NewReader(content))
		if err != nil {
			t.Errorf("Stage() err = %v", err)
			return
		}
		if _, err := f.uc.Upload(ctx, staged, entity.UploadConfig{Overwrite: true}); err != nil {
			t.Errorf("Upload() err = %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		close(ds.release)
		t.Fatal("Upload() blocked while the runner was full")
	}

	queued, err := f.registry.Get(ctx, "job-2")
	if err != nil {
		t.Fatalf("Get(job-2) err = %v", err)
	}
	if queued.Status != entity.JobStatusProcessing || queued.Progress != 0 {
		t.Fatalf("queued job = %+v, want processing at 0%%", queued)
	}

	close(ds.release)
	if err := runner.Wait(); err != nil {
		t.Fatalf("Wait() err = %v", err)
	}

	for _, id := range []string{"job-1", "job-2"} {
		job, err := f.registry.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) err = %v", id, err)
		}
		if job.Status != entity.JobStatusCompleted {
			t.Fatalf("%s status = %s, want completed", id, job.Status)
		}
	}
}

func TestStartRequiresDependencies(t *testing.T) {
	m := NewJobManager(JobManagerDependency{})
	if err := m.Start(context.Background(), entity.UploadJob{ID: "x"}, nil, nil); err == nil {
		t.Fatalf("Start() expected error without dependencies")
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int64
		want        int
	}{
		{done: 0, total: 0, want: 0},
		{done: 5, total: 0, want: 0},
		{done: 1, total: 3, want: 33},
		{done: 3, total: 3, want: 100},
		{done: 4, total: 3, want: 100},
	}

	for _, tt := range tests {
		if got := percent(tt.done, tt.total); got != tt.want {
			t.Fatalf("percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}
