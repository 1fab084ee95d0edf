package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

type dataset interface {
	CreateRows(ctx context.Context, rows []entity.Row) error
	DeleteAllRows(ctx context.Context) (int64, error)
	CountRows(ctx context.Context) (int64, error)
	FindOneRow(ctx context.Context) (entity.Row, error)
	ListRows(ctx context.Context, q entity.RowQuery) ([]entity.Row, int, error)
	FindFilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error)
	SaveFilteringOptions(ctx context.Context, set entity.FilteringOptionSet) error
	DeleteFilteringOptions(ctx context.Context) error
	TopValues(ctx context.Context, limit int) ([]entity.ValueCount, error)
	ReplacePopularSearches(ctx context.Context, entries []entity.PopularSearchEntry) error
	ListPopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error)
}

func newSQLiteDataset(t *testing.T) *SQLDataset {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "dataset.db"))
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(ctx, db, DriverSQLite); err != nil {
		t.Fatalf("Migrate() err = %v", err)
	}
	return NewSQLDataset(db)
}

func datasets(t *testing.T) map[string]dataset {
	return map[string]dataset{
		"memory": NewMemoryDataset(),
		"sqlite": newSQLiteDataset(t),
	}
}

func row(id string, kv ...string) entity.Row {
	r := entity.Row{ID: id}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Components = append(r.Components, entity.HeaderComponent{ColumnName: kv[i], Value: kv[i+1]})
	}
	return r
}

func seed(t *testing.T, ds dataset) {
	t.Helper()

	err := ds.CreateRows(context.Background(), []entity.Row{
		row("r1", "city", "Paris", "status", "active"),
		row("r2", "city", "Rome", "status", "inactive"),
		row("r3", "city", "Paris", "status", "active"),
		row("r4", "city", "Berlin", "status", "active"),
	})
	if err != nil {
		t.Fatalf("CreateRows() err = %v", err)
	}
}

func TestDataset_RowsLifecycle(t *testing.T) {
	for name, ds := range datasets(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := ds.FindOneRow(ctx); !errors.Is(err, pkgerror.ErrNotFound) {
				t.Fatalf("FindOneRow() on empty err = %v, want ErrNotFound", err)
			}

			seed(t, ds)

			n, err := ds.CountRows(ctx)
			if err != nil || n != 4 {
				t.Fatalf("CountRows() = %d, %v; want 4", n, err)
			}

			first, err := ds.FindOneRow(ctx)
			if err != nil {
				t.Fatalf("FindOneRow() err = %v", err)
			}
			if !reflect.DeepEqual(first.Columns(), []string{"city", "status"}) {
				t.Fatalf("FindOneRow() columns = %v", first.Columns())
			}

			deleted, err := ds.DeleteAllRows(ctx)
			if err != nil || deleted != 4 {
				t.Fatalf("DeleteAllRows() = %d, %v; want 4", deleted, err)
			}
			if n, _ := ds.CountRows(ctx); n != 0 {
				t.Fatalf("CountRows() after delete = %d", n)
			}
		})
	}
}

func TestDataset_ListRows(t *testing.T) {
	for name, ds := range datasets(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, ds)

			rows, total, err := ds.ListRows(ctx, entity.RowQuery{Page: 2, PageSize: 3})
			if err != nil {
				t.Fatalf("ListRows() err = %v", err)
			}
			if total != 4 || len(rows) != 1 || rows[0].ID != "r4" {
				t.Fatalf("ListRows() page 2 = %d rows (total %d)", len(rows), total)
			}

			rows, total, err = ds.ListRows(ctx, entity.RowQuery{
				Page:     1,
				PageSize: 10,
				Filters: []entity.ColumnFilter{
					{Column: "status", Value: "active", Mode: entity.MatchExact},
					{Column: "city", Value: "par", Mode: entity.MatchContains},
				},
			})
			if err != nil {
				t.Fatalf("ListRows() filtered err = %v", err)
			}
			if total != 2 || len(rows) != 2 || rows[0].ID != "r1" || rows[1].ID != "r3" {
				t.Fatalf("ListRows() filtered = %+v (total %d)", rows, total)
			}

			_, total, err = ds.ListRows(ctx, entity.RowQuery{
				Page:     1,
				PageSize: 10,
				Filters:  []entity.ColumnFilter{{Column: "city", Value: "100%", Mode: entity.MatchContains}},
			})
			if err != nil || total != 0 {
				t.Fatalf("ListRows() wildcard literal = %d, %v; want 0", total, err)
			}
		})
	}
}

func TestDataset_FilteringOptions(t *testing.T) {
	for name, ds := range datasets(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := ds.FindFilteringOptions(ctx); !errors.Is(err, pkgerror.ErrNotFound) {
				t.Fatalf("FindFilteringOptions() err = %v, want ErrNotFound", err)
			}

			set := entity.FilteringOptionSet{
				Title: entity.FilteringOptionsTitle,
				Options: []entity.FilteringOption{
					{Key: "city", Type: entity.FilterTypeSearch},
					{Key: "status", Type: entity.FilterTypeSelect, Options: []string{"active", "inactive"}},
				},
				UpdatedAt: time.Unix(1700000000, 0).UTC(),
			}
			if err := ds.SaveFilteringOptions(ctx, set); err != nil {
				t.Fatalf("SaveFilteringOptions() err = %v", err)
			}

			set.Options = set.Options[1:]
			if err := ds.SaveFilteringOptions(ctx, set); err != nil {
				t.Fatalf("SaveFilteringOptions() second err = %v", err)
			}

			got, err := ds.FindFilteringOptions(ctx)
			if err != nil {
				t.Fatalf("FindFilteringOptions() err = %v", err)
			}
			if !reflect.DeepEqual(got.Options, set.Options) {
				t.Fatalf("FindFilteringOptions() = %+v, want %+v", got.Options, set.Options)
			}
			if !got.UpdatedAt.Equal(set.UpdatedAt) {
				t.Fatalf("FindFilteringOptions() updatedAt = %v", got.UpdatedAt)
			}

			if err := ds.DeleteFilteringOptions(ctx); err != nil {
				t.Fatalf("DeleteFilteringOptions() err = %v", err)
			}
			if _, err := ds.FindFilteringOptions(ctx); !errors.Is(err, pkgerror.ErrNotFound) {
				t.Fatalf("FindFilteringOptions() after delete err = %v", err)
			}
		})
	}
}

func TestDataset_TopValuesAndPopularSearches(t *testing.T) {
	for name, ds := range datasets(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, ds)

			top, err := ds.TopValues(ctx, 3)
			if err != nil {
				t.Fatalf("TopValues() err = %v", err)
			}
			want := []entity.ValueCount{
				{Value: "active", ColumnName: "status", Count: 3},
				{Value: "Paris", ColumnName: "city", Count: 2},
				{Value: "Berlin", ColumnName: "city", Count: 1},
			}
			if !reflect.DeepEqual(top, want) {
				t.Fatalf("TopValues() = %+v, want %+v", top, want)
			}

			entries := []entity.PopularSearchEntry{
				{Term: "active", ColumnName: "status", Order: 0, Hits: 3, IsActive: true},
				{Term: "Paris", ColumnName: "city", Order: 1, Hits: 2, IsActive: true},
			}
			if err := ds.ReplacePopularSearches(ctx, entries); err != nil {
				t.Fatalf("ReplacePopularSearches() err = %v", err)
			}
			if err := ds.ReplacePopularSearches(ctx, entries[:1]); err != nil {
				t.Fatalf("ReplacePopularSearches() second err = %v", err)
			}

			got, err := ds.ListPopularSearches(ctx)
			if err != nil {
				t.Fatalf("ListPopularSearches() err = %v", err)
			}
			if !reflect.DeepEqual(got, entries[:1]) {
				t.Fatalf("ListPopularSearches() = %+v, want %+v", got, entries[:1])
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Fatalf("Open() expected error for unsupported driver")
	}
}
