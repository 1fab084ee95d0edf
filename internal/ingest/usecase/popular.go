package usecase

import (
	"context"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
)

// RecomputePopularSearches replaces the popular search list with the most
// frequent (value, column) pairs of the whole dataset.
func (u *Usecase) RecomputePopularSearches(ctx context.Context) error {
	counts, err := u.dataset.TopValues(ctx, u.cfg.PopularLimit)
	if err != nil {
		return &AggregationError{Err: err}
	}

	entries := make([]entity.PopularSearchEntry, 0, len(counts))
	for i, c := range counts {
		entries = append(entries, entity.PopularSearchEntry{
			Term:       c.Value,
			ColumnName: c.ColumnName,
			Order:      i,
			Hits:       c.Count,
			IsActive:   true,
		})
	}

	if err := u.dataset.ReplacePopularSearches(ctx, entries); err != nil {
		return &AggregationError{Err: err}
	}
	return nil
}
