package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

type UploadJob struct {
	ID            string           `json:"id"`
	Status        entity.JobStatus `json:"status"`
	Progress      int              `json:"progress"`
	TotalRows     int64            `json:"totalRows"`
	ProcessedRows int64            `json:"processedRows"`
	Error         string           `json:"error,omitempty"`
	Overwrite     bool             `json:"overwrite"`
	FileName      string           `json:"fileName,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type UploadResponse struct {
	JobID string `json:"jobId"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusAccepted
}

func (UploadResponse) Message() string {
	return "upload accepted"
}

type ActiveUploadsResponse struct {
	Jobs []UploadJob `json:"jobs"`
}

type FieldsResponse struct {
	Fields []string `json:"fields"`
}

type FilteringOptionsResponse struct {
	Title     string                   `json:"title"`
	Options   []entity.FilteringOption `json:"options"`
	UpdatedAt *time.Time               `json:"updatedAt,omitempty"`
}

type PopularSearch struct {
	Term       string `json:"term"`
	ColumnName string `json:"columnName"`
	Order      int    `json:"order"`
	Hits       int64  `json:"hits"`
	IsActive   bool   `json:"isActive"`
}

type PopularSearchesResponse struct {
	Searches []PopularSearch `json:"searches"`
}

type Row struct {
	ID         string                   `json:"id"`
	Components []entity.HeaderComponent `json:"components"`
}

type RowsResponse struct {
	Rows     []Row `json:"rows"`
	page     int
	pageSize int
	total    int
}

func (r RowsResponse) Meta() map[string]any {
	return map[string]any{
		"page":      r.page,
		"page_size": r.pageSize,
		"total":     r.total,
	}
}

func toHTTPJob(job entity.UploadJob) UploadJob {
	return UploadJob{
		ID:            job.ID,
		Status:        job.Status,
		Progress:      job.Progress,
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		Error:         job.Error,
		Overwrite:     job.Overwrite,
		FileName:      job.FileName,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
