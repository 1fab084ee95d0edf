package inbound

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/ingest/usecase"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
)

type uc interface {
	Stage(ctx context.Context, name string, r io.Reader) (entity.StagedFile, error)
	Discard(ctx context.Context, staged entity.StagedFile)
	Upload(ctx context.Context, staged entity.StagedFile, cfg entity.UploadConfig) (usecase.UploadResult, error)

	Job(ctx context.Context, jobID string) (entity.UploadJob, error)
	ActiveJobs(ctx context.Context) []entity.UploadJob
	Watch(ctx context.Context, jobID string, sink usecase.Sink) (func(), error)

	Fields(ctx context.Context) ([]string, error)
	FilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error)
	PopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error)
	Rows(ctx context.Context, in usecase.RowsInput) (usecase.RowsResult, error)
}

type Options struct {
	// MaxConfigBytes bounds the JSON config part of an upload.
	MaxConfigBytes int64
	// KeepAlive is the interval between comment frames on progress streams.
	KeepAlive time.Duration
}

func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, opt Options) {
	if opt.MaxConfigBytes < 1 {
		opt.MaxConfigBytes = 1 << 20
	}
	if opt.KeepAlive <= 0 {
		opt.KeepAlive = 15 * time.Second
	}

	end := &HTTPEndpoint{uc: uc, maxConfigBytes: opt.MaxConfigBytes}
	stream := &StreamEndpoint{uc: uc, keepAlive: opt.KeepAlive}

	r.POST("/uploads", end.Upload) // multipart: file + config
	r.GET("/uploads", end.ActiveUploads)
	r.GET("/uploads/:id", end.UploadStatus)
	r.Handle(http.MethodGet, "/uploads/:id/events", http.HandlerFunc(stream.Events))

	r.GET("/fields", end.Fields)
	r.GET("/filtering-options", end.FilteringOptions)
	r.GET("/popular-searches", end.PopularSearches)
	r.GET("/rows", end.Rows) // ?page=&page_size=&filter.<column>=
}
