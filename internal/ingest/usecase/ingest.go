package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/shandysiswandi/goingest/internal/ingest/csvstream"
	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

// Upload starts ingesting a staged file and returns as soon as the job is
// registered. The job owns the staged file from here on.
func (u *Usecase) Upload(ctx context.Context, staged entity.StagedFile, cfg entity.UploadConfig) (UploadResult, error) {
	if u.dataset == nil || u.jobs == nil || u.jobID == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	if staged.Path == "" {
		return UploadResult{}, pkgerror.NewInvalidInput(errors.New("file is required"))
	}

	job := entity.UploadJob{
		ID:        u.jobID.Generate(),
		Overwrite: cfg.Overwrite,
		FileName:  staged.Name,
		FilePath:  staged.Path,
	}

	task := func(ctx context.Context, p *Progress) error {
		return u.ingest(ctx, p, staged.Path, cfg)
	}
	cleanup := func(ctx context.Context) {
		u.Discard(ctx, staged)
	}

	if err := u.jobs.Start(ctx, job, task, cleanup); err != nil {
		return UploadResult{}, normalizeErr(err)
	}

	return UploadResult{JobID: job.ID}, nil
}

// ingest runs both passes over the file at path.
func (u *Usecase) ingest(ctx context.Context, p *Progress, path string, cfg entity.UploadConfig) error {
	mapper := newColumnMapper(cfg)

	total, options, err := u.analyze(ctx, path, mapper)
	if err != nil {
		return err
	}
	if err := p.Update(ctx, func(job *entity.UploadJob) { job.TotalRows = total }); err != nil {
		return err
	}
	slog.InfoContext(ctx, "upload job pass 1 done", "total_rows", total, "columns", len(options))

	if err := u.saveFilteringOptions(ctx, cfg.Overwrite, options); err != nil {
		return err
	}

	if err := u.write(ctx, p, path, mapper, total); err != nil {
		return err
	}

	if err := u.RecomputePopularSearches(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to recompute popular searches", "error", err)
	}

	return nil
}

// analyze is pass 1: it counts rows and classifies the sampled columns.
func (u *Usecase) analyze(ctx context.Context, path string, mapper columnMapper) (int64, []entity.FilteringOption, error) {
	sampler := NewSampler(SamplerConfig{
		Rate:       u.cfg.SampleRate,
		Cap:        u.cfg.SampleCap,
		WarmupRows: u.cfg.WarmupRows,
	}, u.random)

	var total int64
	err := u.scan(ctx, path, func(rec csvstream.Record) error {
		total++
		if !sampler.SampleRow() {
			return nil
		}

		for _, f := range rec.Fields {
			if column, ok := mapper.destination(f.Name); ok {
				sampler.Observe(column, f.Value)
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}

	return total, u.classifier.ClassifyAll(sampler.Stats(), total), nil
}

// saveFilteringOptions replaces the dataset when overwriting and otherwise
// merges the new options into the stored set.
func (u *Usecase) saveFilteringOptions(ctx context.Context, overwrite bool, options []entity.FilteringOption) error {
	set := entity.FilteringOptionSet{Title: entity.FilteringOptionsTitle}

	if overwrite {
		deleted, err := u.dataset.DeleteAllRows(ctx)
		if err != nil {
			return &StorageError{Op: "delete rows", Err: err}
		}
		if err := u.dataset.DeleteFilteringOptions(ctx); err != nil {
			return &StorageError{Op: "delete filtering options", Err: err}
		}
		slog.InfoContext(ctx, "dataset cleared for overwrite", "deleted_rows", deleted)
	} else {
		existing, err := u.dataset.FindFilteringOptions(ctx)
		if err != nil && !pkgerror.IsNotFound(err) {
			return &StorageError{Op: "find filtering options", Err: err}
		}
		if err == nil {
			set = existing
		}
	}

	set = set.Merge(options)
	set.Title = entity.FilteringOptionsTitle
	set.UpdatedAt = u.clock.Now()

	if err := u.dataset.SaveFilteringOptions(ctx, set); err != nil {
		return &StorageError{Op: "save filtering options", Err: err}
	}
	return nil
}

// write is pass 2: it maps every row and persists them in batches.
func (u *Usecase) write(ctx context.Context, p *Progress, path string, mapper columnMapper, total int64) error {
	var processed int64
	batch := make([]entity.Row, 0, u.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := u.dataset.CreateRows(ctx, batch); err != nil {
			return &StorageError{Op: "create rows", Err: err}
		}

		processed += int64(len(batch))
		batch = make([]entity.Row, 0, u.cfg.BatchSize)

		return p.Update(ctx, func(job *entity.UploadJob) {
			job.ProcessedRows = processed
			job.Progress = percent(processed, total)
		})
	}

	err := u.scan(ctx, path, func(rec csvstream.Record) error {
		components := mapper.components(rec)
		if len(components) == 0 {
			return nil
		}

		batch = append(batch, entity.Row{ID: u.rowID.Generate(), Components: components})
		if len(batch) < u.cfg.BatchSize {
			return nil
		}
		return flush()
	})
	if err != nil {
		return err
	}

	return flush()
}

func (u *Usecase) scan(ctx context.Context, path string, fn func(rec csvstream.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &FileSystemError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return csvstream.Stream(ctx, f, csvstream.Options{TrimSpace: true}, fn)
}

// columnMapper turns source columns into destination columns. In identity
// mode every source column keeps its name.
type columnMapper struct {
	identity bool
	mapping  map[string]string
}

// newColumnMapper maps 1:1 when overwriting or when no mapping is given.
// Otherwise only columns mapped to a non-empty destination are kept.
func newColumnMapper(cfg entity.UploadConfig) columnMapper {
	if cfg.Overwrite || len(cfg.FieldMapping) == 0 {
		return columnMapper{identity: true}
	}

	mapping := make(map[string]string, len(cfg.FieldMapping))
	for src, dst := range cfg.FieldMapping {
		if dst == nil {
			continue
		}
		if name := strings.TrimSpace(*dst); name != "" {
			mapping[strings.TrimSpace(src)] = name
		}
	}
	return columnMapper{mapping: mapping}
}

func (c columnMapper) destination(column string) (string, bool) {
	if c.identity {
		return column, true
	}
	dst, ok := c.mapping[column]
	return dst, ok
}

// components builds the header components of rec, skipping empty cells.
func (c columnMapper) components(rec csvstream.Record) []entity.HeaderComponent {
	out := make([]entity.HeaderComponent, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		if f.Value == "" {
			continue
		}
		if column, ok := c.destination(f.Name); ok {
			out = append(out, entity.HeaderComponent{ColumnName: column, Value: f.Value})
		}
	}
	return out
}
