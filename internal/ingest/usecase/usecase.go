package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goingest/internal/pkg/pkguid"
)

// DatasetStore is the destination of ingested rows and their metadata.
type DatasetStore interface {
	CreateRows(ctx context.Context, rows []entity.Row) error
	DeleteAllRows(ctx context.Context) (int64, error)
	CountRows(ctx context.Context) (int64, error)
	FindOneRow(ctx context.Context) (entity.Row, error)
	ListRows(ctx context.Context, q entity.RowQuery) ([]entity.Row, int, error)

	FindFilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error)
	SaveFilteringOptions(ctx context.Context, set entity.FilteringOptionSet) error
	DeleteFilteringOptions(ctx context.Context) error

	TopValues(ctx context.Context, limit int) ([]entity.ValueCount, error)
	ReplacePopularSearches(ctx context.Context, entries []entity.PopularSearchEntry) error
	ListPopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error)
}

type Clock interface {
	Now() time.Time
}

// Config holds the ingestion tunables.
type Config struct {
	TempDir      string
	BatchSize    int
	SampleRate   float64
	SampleCap    int
	WarmupRows   int
	PopularLimit int
	UniqueScale  float64
	OrphanMaxAge time.Duration
	MaxPageSize  int
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = 100
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 0.1
	}
	if c.SampleCap < 1 {
		c.SampleCap = 1000
	}
	if c.WarmupRows < 0 {
		c.WarmupRows = 0
	}
	if c.PopularLimit < 1 {
		c.PopularLimit = 5
	}
	if c.UniqueScale <= 0 {
		c.UniqueScale = 5
	}
	if c.OrphanMaxAge <= 0 {
		c.OrphanMaxAge = time.Hour
	}
	if c.MaxPageSize < 1 {
		c.MaxPageSize = 100
	}
	return c
}

type Dependency struct {
	Config  Config
	Dataset DatasetStore
	Jobs    *JobManager
	Clock   Clock
	// JobID names jobs; RowID names rows and staged files.
	JobID  pkguid.StringID
	RowID  pkguid.StringID
	Random func() float64
}

type Usecase struct {
	cfg        Config
	dataset    DatasetStore
	jobs       *JobManager
	clock      Clock
	jobID      pkguid.StringID
	rowID      pkguid.StringID
	random     func() float64
	classifier Classifier
}

func New(dep Dependency) *Usecase {
	cfg := dep.Config.withDefaults()

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	rowID := dep.RowID
	if rowID == nil {
		rowID = pkguid.NewUUID()
	}

	return &Usecase{
		cfg:     cfg,
		dataset: dep.Dataset,
		jobs:    dep.Jobs,
		clock:   clock,
		jobID:   dep.JobID,
		rowID:   rowID,
		random:  dep.Random,
		classifier: NewClassifier(ClassifierConfig{
			UniqueScale: cfg.UniqueScale,
			SampleRate:  cfg.SampleRate,
			SampleCap:   cfg.SampleCap,
		}),
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Job returns the current snapshot of a job.
func (u *Usecase) Job(ctx context.Context, jobID string) (entity.UploadJob, error) {
	if jobID == "" {
		return entity.UploadJob{}, pkgerror.NewInvalidInput(errors.New("job_id is required"))
	}

	job, err := u.jobs.Get(ctx, jobID)
	if err != nil {
		return entity.UploadJob{}, mapJobErr(err)
	}
	return job, nil
}

// ActiveJobs lists jobs still processing.
func (u *Usecase) ActiveJobs(ctx context.Context) []entity.UploadJob {
	return u.jobs.ListActive(ctx)
}

// Watch subscribes sink to a job's status changes.
func (u *Usecase) Watch(ctx context.Context, jobID string, sink Sink) (func(), error) {
	if jobID == "" {
		return nil, pkgerror.NewInvalidInput(errors.New("job_id is required"))
	}

	unsubscribe, err := u.jobs.Watch(ctx, jobID, sink)
	if err != nil {
		return nil, mapJobErr(err)
	}
	return unsubscribe, nil
}

// Fields returns the destination column names of one existing row.
func (u *Usecase) Fields(ctx context.Context) ([]string, error) {
	row, err := u.dataset.FindOneRow(ctx)
	if pkgerror.IsNotFound(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, normalizeErr(err)
	}
	return row.Columns(), nil
}

// FilteringOptions returns the persisted option set, empty when none exists.
func (u *Usecase) FilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error) {
	set, err := u.dataset.FindFilteringOptions(ctx)
	if pkgerror.IsNotFound(err) {
		return entity.FilteringOptionSet{Title: entity.FilteringOptionsTitle, Options: []entity.FilteringOption{}}, nil
	}
	if err != nil {
		return entity.FilteringOptionSet{}, normalizeErr(err)
	}
	return set, nil
}

func (u *Usecase) PopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error) {
	entries, err := u.dataset.ListPopularSearches(ctx)
	if err != nil {
		return nil, normalizeErr(err)
	}
	return entries, nil
}

// Rows pages through the dataset. Select columns filter by exact value,
// every other column by substring.
func (u *Usecase) Rows(ctx context.Context, in RowsInput) (RowsResult, error) {
	if in.Page < 1 || in.PageSize < 1 {
		return RowsResult{}, pkgerror.NewInvalidInput(errors.New("invalid pagination"))
	}
	if in.PageSize > u.cfg.MaxPageSize {
		return RowsResult{}, pkgerror.NewInvalidInput(errors.New("page_size too large"))
	}
	if in.Page-1 > math.MaxInt/in.PageSize {
		return RowsResult{}, pkgerror.NewInvalidInput(errors.New("page out of range"))
	}

	q := entity.RowQuery{Page: in.Page, PageSize: in.PageSize}
	if len(in.Filters) > 0 {
		set, err := u.FilteringOptions(ctx)
		if err != nil {
			return RowsResult{}, err
		}
		for _, column := range in.filterColumns() {
			mode := entity.MatchContains
			if opt, ok := set.Lookup(column); ok && opt.Type == entity.FilterTypeSelect {
				mode = entity.MatchExact
			}
			q.Filters = append(q.Filters, entity.ColumnFilter{Column: column, Value: in.Filters[column], Mode: mode})
		}
	}

	rows, total, err := u.dataset.ListRows(ctx, q)
	if err != nil {
		return RowsResult{}, normalizeErr(err)
	}

	return RowsResult{
		Rows:     rows,
		Page:     in.Page,
		PageSize: in.PageSize,
		Total:    total,
	}, nil
}

func mapJobErr(err error) error {
	if pkgerror.IsNotFound(err) {
		return pkgerror.NewBusiness("upload job not found", pkgerror.CodeNotFound)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
