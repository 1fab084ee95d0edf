package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/shandysiswandi/goingest/internal/ingest/event"
	"github.com/shandysiswandi/goingest/internal/ingest/inbound"
	"github.com/shandysiswandi/goingest/internal/ingest/store"
	"github.com/shandysiswandi/goingest/internal/ingest/usecase"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgcron"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goingest/internal/pkg/pkguid"
)

const sweepJobName = "sweep-orphaned-uploads"

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	// DB is nil when storage.driver is memory.
	DB        *sqlx.DB
	Scheduler *pkgcron.Scheduler
	ID        pkguid.StringID
}

func New(dep Dependency) (func(context.Context) error, error) {
	if dep.Config == nil || dep.Router == nil || dep.Goroutine == nil {
		return nil, errors.New("ingest: missing dependency")
	}
	if dep.Context == nil {
		dep.Context = context.Background()
	}
	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	var dataset usecase.DatasetStore
	if dep.DB != nil {
		dataset = store.NewSQLDataset(dep.DB)
	} else {
		dataset = store.NewMemoryDataset()
	}

	jobIDs, err := pkguid.NewSnowflakeString()
	if err != nil {
		return nil, err
	}

	jobs := usecase.NewJobManager(usecase.JobManagerDependency{
		Registry:  store.NewRegistry(),
		Events:    event.NewBroadcaster(),
		Runner:    dep.Goroutine,
		RootCtx:   dep.Context,
		Retention: dep.Config.GetDuration("jobs.retention"),
	})

	cfg := dep.Config
	uc := usecase.New(usecase.Dependency{
		Config: usecase.Config{
			TempDir:      cfg.GetString("upload.temp_dir"),
			BatchSize:    int(cfg.GetInt("ingest.batch_size")),
			SampleRate:   cfg.GetFloat("ingest.sample_rate"),
			SampleCap:    int(cfg.GetInt("ingest.sample_cap")),
			WarmupRows:   int(cfg.GetInt("ingest.warmup_rows")),
			PopularLimit: int(cfg.GetInt("ingest.popular_limit")),
			UniqueScale:  cfg.GetFloat("ingest.unique_scale"),
			OrphanMaxAge: cfg.GetDuration("upload.orphan_max_age"),
		},
		Dataset: dataset,
		Jobs:    jobs,
		JobID:   jobIDs,
		RowID:   dep.ID,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, inbound.Options{
		MaxConfigBytes: cfg.GetInt("upload.max_config_bytes"),
		KeepAlive:      cfg.GetDuration("sse.keepalive"),
	})

	sweep := func() {
		if _, err := uc.SweepOrphans(dep.Context); err != nil {
			slog.ErrorContext(dep.Context, "failed to sweep orphaned uploads", "error", err)
		}
	}
	sweep()

	if dep.Scheduler != nil {
		if schedule := cfg.GetString("upload.sweep_schedule"); schedule != "" {
			if err := dep.Scheduler.AddJob(sweepJobName, schedule, sweep); err != nil {
				return nil, err
			}
		}
	}

	return nil, nil
}
