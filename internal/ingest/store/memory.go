package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

// MemoryDataset is a dataset store held in process memory.
type MemoryDataset struct {
	mu      sync.RWMutex
	rows    []entity.Row
	options *entity.FilteringOptionSet
	popular []entity.PopularSearchEntry
}

func NewMemoryDataset() *MemoryDataset {
	return &MemoryDataset{}
}

func (s *MemoryDataset) CreateRows(ctx context.Context, rows []entity.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		s.rows = append(s.rows, cloneRow(row))
	}

	return nil
}

func (s *MemoryDataset) DeleteAllRows(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.rows))
	s.rows = nil

	return n, nil
}

func (s *MemoryDataset) CountRows(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.rows)), nil
}

func (s *MemoryDataset) FindOneRow(ctx context.Context) (entity.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rows) == 0 {
		return entity.Row{}, pkgerror.ErrNotFound
	}

	return cloneRow(s.rows[0]), nil
}

func (s *MemoryDataset) ListRows(ctx context.Context, q entity.RowQuery) ([]entity.Row, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	start := q.Offset()
	end := start + q.PageSize
	items := make([]entity.Row, 0, q.PageSize)

	for _, row := range s.rows {
		if !matchesAll(row, q.Filters) {
			continue
		}

		if total >= start && total < end {
			items = append(items, cloneRow(row))
		}
		total++
	}

	return items, total, nil
}

func (s *MemoryDataset) FindFilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.options == nil {
		return entity.FilteringOptionSet{}, pkgerror.ErrNotFound
	}

	set := *s.options
	set.Options = append([]entity.FilteringOption(nil), s.options.Options...)
	return set, nil
}

func (s *MemoryDataset) SaveFilteringOptions(ctx context.Context, set entity.FilteringOptionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set.Options = append([]entity.FilteringOption(nil), set.Options...)
	s.options = &set

	return nil
}

func (s *MemoryDataset) DeleteFilteringOptions(ctx context.Context) error {
	s.mu.Lock()
	s.options = nil
	s.mu.Unlock()

	return nil
}

func (s *MemoryDataset) TopValues(ctx context.Context, limit int) ([]entity.ValueCount, error) {
	type key struct{ value, column string }

	s.mu.RLock()
	counts := make(map[key]int64)
	for _, row := range s.rows {
		for _, c := range row.Components {
			if c.Value == "" {
				continue
			}
			counts[key{c.Value, c.ColumnName}]++
		}
	}
	s.mu.RUnlock()

	out := make([]entity.ValueCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, entity.ValueCount{Value: k.value, ColumnName: k.column, Count: n})
	}
	sortValueCounts(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDataset) ReplacePopularSearches(ctx context.Context, entries []entity.PopularSearchEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.popular = append([]entity.PopularSearchEntry(nil), entries...)

	return nil
}

func (s *MemoryDataset) ListPopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]entity.PopularSearchEntry{}, s.popular...)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })

	return out, nil
}

// sortValueCounts orders by count descending, then value and column.
func sortValueCounts(vc []entity.ValueCount) {
	sort.Slice(vc, func(i, j int) bool {
		if vc[i].Count != vc[j].Count {
			return vc[i].Count > vc[j].Count
		}
		if vc[i].Value != vc[j].Value {
			return vc[i].Value < vc[j].Value
		}
		return vc[i].ColumnName < vc[j].ColumnName
	})
}

func matchesAll(row entity.Row, filters []entity.ColumnFilter) bool {
	for _, f := range filters {
		if !matches(row, f) {
			return false
		}
	}
	return true
}

func matches(row entity.Row, f entity.ColumnFilter) bool {
	for _, c := range row.Components {
		if c.ColumnName != f.Column {
			continue
		}
		switch f.Mode {
		case entity.MatchExact:
			if c.Value == f.Value {
				return true
			}
		default:
			if strings.Contains(strings.ToLower(c.Value), strings.ToLower(f.Value)) {
				return true
			}
		}
	}
	return false
}

func cloneRow(row entity.Row) entity.Row {
	row.Components = append([]entity.HeaderComponent(nil), row.Components...)
	return row
}
