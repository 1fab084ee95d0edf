package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

// Registry keeps upload jobs in memory. Nothing survives a restart.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*jobRecord
}

type jobRecord struct {
	mu  sync.RWMutex
	job entity.UploadJob
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*jobRecord),
	}
}

func (r *Registry) Put(ctx context.Context, job entity.UploadJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return pkgerror.NewBusiness("upload job already exists", pkgerror.CodeConflict)
	}

	r.jobs[job.ID] = &jobRecord{job: job}

	return nil
}

func (r *Registry) Get(ctx context.Context, jobID string) (entity.UploadJob, error) {
	rec, err := r.get(jobID)
	if err != nil {
		return entity.UploadJob{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.job, nil
}

// Update applies fn to the stored job and returns the result.
func (r *Registry) Update(ctx context.Context, jobID string, fn func(job *entity.UploadJob)) (entity.UploadJob, error) {
	rec, err := r.get(jobID)
	if err != nil {
		return entity.UploadJob{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.job)

	return rec.job, nil
}

func (r *Registry) Delete(ctx context.Context, jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

// ListActive returns the processing jobs, oldest first.
func (r *Registry) ListActive(ctx context.Context) []entity.UploadJob {
	r.mu.RLock()
	recs := make([]*jobRecord, 0, len(r.jobs))
	for _, rec := range r.jobs {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	jobs := make([]entity.UploadJob, 0, len(recs))
	for _, rec := range recs {
		rec.mu.RLock()
		job := rec.job
		rec.mu.RUnlock()

		if !job.Status.Terminal() {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs
}

func (r *Registry) get(jobID string) (*jobRecord, error) {
	r.mu.RLock()
	rec, ok := r.jobs[jobID]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
