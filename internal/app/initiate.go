package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"
	"github.com/shandysiswandi/goingest/internal/ingest/store"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgcron"
	"github.com/shandysiswandi/goingest/internal/pkg/pkglog"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goingest/internal/pkg/pkguid"
)

// ConfigPath returns path when set, otherwise the container or local default.
func ConfigPath(path string) string {
	if path != "" {
		return path
	}
	if os.Getenv("LOCAL") == "true" {
		return "./config/config.yaml"
	}
	return "/config/config.yaml"
}

func (a *App) initConfig() {
	cfg, err := pkgconfig.NewViper(ConfigPath(a.configPath))
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("tz"))

	pkglog.InitLogging(cfg.GetString("log.level"))

	a.config = cfg
}

func (a *App) initLibraries() {
	maxJobs := int(a.config.GetInt("jobs.max_concurrent"))
	if maxJobs < 1 {
		maxJobs = 100
	}

	a.goroutine = pkgroutine.NewManager(maxJobs)
	a.uuid = pkguid.NewUUID()
	a.scheduler = pkgcron.New()
}

func (a *App) initResources() {
	driver := a.config.GetString("storage.driver")
	if driver == "" || driver == store.DriverMemory {
		slog.Warn("dataset storage is in memory, data is lost on restart")
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	db, err := store.Open(ctx, driver, a.config.GetString("storage.dsn"))
	if err != nil {
		slog.Error("failed to open database", "driver", driver, "error", err)
		os.Exit(1)
	}

	if a.config.GetBool("storage.auto_migrate") {
		if err := store.Migrate(ctx, db, driver); err != nil {
			slog.Error("failed to migrate database", "driver", driver, "error", err)
			os.Exit(1)
		}
	}

	a.db = db
}

func (a *App) initHTTPServer() {
	a.router = pkgrouter.NewRouter(a.uuid)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// No WriteTimeout: progress streams stay open until the job ends.
	a.httpServer = &http.Server{
		Addr:              a.config.GetString("server.address.http"),
		Handler:           corsHandler.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

//nolint:unparam // is always nil
func (a *App) initClosers() {
	if a.closerFn == nil {
		a.closerFn = map[string]func(context.Context) error{}
	}

	a.closerFn["HTTP Server"] = func(ctx context.Context) error {
		return a.httpServer.Shutdown(ctx)
	}
	a.closerFn["Config"] = func(context.Context) error {
		return a.config.Close()
	}
	if a.db != nil {
		a.closerFn["Database"] = func(context.Context) error {
			return a.db.Close()
		}
	}
}

// Migrate applies the dataset schema for the configured driver and returns.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := pkgconfig.NewViper(ConfigPath(configPath))
	if err != nil {
		return err
	}
	defer cfg.Close()

	pkglog.InitLogging(cfg.GetString("log.level"))

	driver := cfg.GetString("storage.driver")
	if driver == "" || driver == store.DriverMemory {
		slog.InfoContext(ctx, "nothing to migrate", "driver", store.DriverMemory)
		return nil
	}

	db, err := store.Open(ctx, driver, cfg.GetString("storage.dsn"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(ctx, db, driver); err != nil {
		return err
	}

	slog.InfoContext(ctx, "database migrated", "driver", driver)
	return nil
}
