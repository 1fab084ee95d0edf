package app

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgconfig"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgcron"
	"github.com/shandysiswandi/goingest/internal/pkg/pkglog"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgroutine"
	"github.com/shandysiswandi/goingest/internal/pkg/pkguid"
)

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	configPath string
	config     pkgconfig.Config

	// libraries
	uuid      pkguid.StringID
	goroutine *pkgroutine.Manager
	scheduler *pkgcron.Scheduler

	// resources
	db *sqlx.DB

	// server
	router     *pkgrouter.Router
	httpServer *http.Server

	//
	closerFn map[string]func(context.Context) error
}

// New builds the application. An empty configPath falls back to the
// default location.
func New(configPath string) *App {
	pkglog.InitLogging("info")

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:        ctx,
		cancel:     cancel,
		configPath: configPath,
	}

	app.initConfig()
	app.initLibraries()
	app.initResources()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
