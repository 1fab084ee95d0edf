package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/ingest/usecase"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgrouter"
)

const filterParamPrefix = "filter."

type HTTPEndpoint struct {
	uc             uc
	maxConfigBytes int64
}

// Upload stages the file part, reads the config part and starts a job.
// Parts may come in either order.
func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	reader, err := multipartReader(r)
	if err != nil {
		return nil, err
	}

	var (
		staged    entity.StagedFile
		hasFile   bool
		cfg       entity.UploadConfig
		hasConfig bool
	)
	discard := func() {
		if hasFile {
			h.uc.Discard(ctx, staged)
		}
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			discard()
			return nil, pkgerror.NewInvalidFormat()
		}

		switch part.FormName() {
		case "file":
			if hasFile {
				_ = part.Close()
				discard()
				return nil, pkgerror.NewInvalidInput(errors.New("only one file is allowed"))
			}
			staged, err = h.uc.Stage(ctx, part.FileName(), part)
			_ = part.Close()
			if err != nil {
				return nil, err
			}
			hasFile = true

		case "config":
			cfg, err = h.readConfig(part)
			_ = part.Close()
			if err != nil {
				discard()
				return nil, err
			}
			hasConfig = true

		default:
			_ = part.Close()
		}
	}

	if !hasFile {
		return nil, pkgerror.NewInvalidInput(errors.New("file is required"))
	}
	if !hasConfig {
		discard()
		return nil, pkgerror.NewInvalidInput(errors.New("config is required"))
	}

	result, err := h.uc.Upload(ctx, staged, cfg)
	if err != nil {
		discard()
		return nil, err
	}

	return UploadResponse{JobID: result.JobID}, nil
}

func (h *HTTPEndpoint) ActiveUploads(ctx context.Context, r *http.Request) (any, error) {
	jobs := h.uc.ActiveJobs(ctx)

	out := make([]UploadJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toHTTPJob(job))
	}

	return ActiveUploadsResponse{Jobs: out}, nil
}

func (h *HTTPEndpoint) UploadStatus(ctx context.Context, r *http.Request) (any, error) {
	job, err := h.uc.Job(ctx, strings.TrimSpace(pkgrouter.GetParam(ctx, "id")))
	if err != nil {
		return nil, err
	}

	return toHTTPJob(job), nil
}

func (h *HTTPEndpoint) Fields(ctx context.Context, r *http.Request) (any, error) {
	fields, err := h.uc.Fields(ctx)
	if err != nil {
		return nil, err
	}

	return FieldsResponse{Fields: fields}, nil
}

func (h *HTTPEndpoint) FilteringOptions(ctx context.Context, r *http.Request) (any, error) {
	set, err := h.uc.FilteringOptions(ctx)
	if err != nil {
		return nil, err
	}

	resp := FilteringOptionsResponse{Title: set.Title, Options: set.Options}
	if !set.UpdatedAt.IsZero() {
		resp.UpdatedAt = &set.UpdatedAt
	}
	if resp.Options == nil {
		resp.Options = []entity.FilteringOption{}
	}

	return resp, nil
}

func (h *HTTPEndpoint) PopularSearches(ctx context.Context, r *http.Request) (any, error) {
	entries, err := h.uc.PopularSearches(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PopularSearch, 0, len(entries))
	for _, e := range entries {
		out = append(out, PopularSearch{
			Term:       e.Term,
			ColumnName: e.ColumnName,
			Order:      e.Order,
			Hits:       e.Hits,
			IsActive:   e.IsActive,
		})
	}

	return PopularSearchesResponse{Searches: out}, nil
}

func (h *HTTPEndpoint) Rows(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()

	page, pageSize, err := parsePagination(query.Get("page"), query.Get("page_size"))
	if err != nil {
		return nil, err
	}

	filters := make(map[string]string)
	for key, values := range query {
		column, ok := strings.CutPrefix(key, filterParamPrefix)
		if !ok || column == "" || len(values) == 0 {
			continue
		}
		if value := strings.TrimSpace(values[0]); value != "" {
			filters[column] = value
		}
	}

	result, err := h.uc.Rows(ctx, usecase.RowsInput{Page: page, PageSize: pageSize, Filters: filters})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, Row{ID: row.ID, Components: row.Components})
	}

	return RowsResponse{
		Rows:     rows,
		page:     result.Page,
		pageSize: result.PageSize,
		total:    result.Total,
	}, nil
}

func (h *HTTPEndpoint) readConfig(part *multipart.Part) (entity.UploadConfig, error) {
	raw, err := io.ReadAll(io.LimitReader(part, h.maxConfigBytes+1))
	if err != nil {
		return entity.UploadConfig{}, pkgerror.NewInvalidFormat()
	}
	if int64(len(raw)) > h.maxConfigBytes {
		return entity.UploadConfig{}, pkgerror.NewInvalidInput(errors.New("config is too large"))
	}

	var cfg entity.UploadConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return entity.UploadConfig{}, pkgerror.NewInvalidInput(fmt.Errorf("config is not valid JSON: %w", err))
	}

	return cfg, nil
}

func multipartReader(r *http.Request) (*multipart.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "multipart/form-data") {
		return nil, pkgerror.NewInvalidInput(errors.New("multipart/form-data body is required"))
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, pkgerror.NewInvalidFormat()
	}
	return reader, nil
}

func parsePagination(pageRaw, sizeRaw string) (int, int, error) {
	page := 1
	pageSize := 20

	if pageRaw != "" {
		value, err := strconv.Atoi(pageRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page"))
		}
		page = value
	}

	if sizeRaw != "" {
		value, err := strconv.Atoi(sizeRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page_size"))
		}
		if value > 100 {
			value = 100
		}
		pageSize = value
	}

	return page, pageSize, nil
}
