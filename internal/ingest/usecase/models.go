package usecase

import (
	"sort"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

type UploadResult struct {
	JobID string
}

type RowsInput struct {
	Page     int
	PageSize int
	// Filters maps a column name to the value it must match.
	Filters map[string]string
}

func (in RowsInput) filterColumns() []string {
	cols := make([]string, 0, len(in.Filters))
	for col, v := range in.Filters {
		if v == "" {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

type RowsResult struct {
	Rows     []entity.Row
	Page     int
	PageSize int
	Total    int
}
