package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shandysiswandi/goingest/internal/ingest/entity"
	"github.com/shandysiswandi/goingest/internal/pkg/pkgerror"
)

// componentsPerInsert keeps multi-row inserts under the bind parameter
// limits of sqlite and postgres.
const componentsPerInsert = 1000

type rowRecord struct {
	ID        string `db:"id"`
	CreatedAt int64  `db:"created_at"`
	Ordinal   int    `db:"ordinal"`
}

type componentRecord struct {
	RowID      string `db:"row_id"`
	Idx        int    `db:"idx"`
	ColumnName string `db:"column_name"`
	Value      string `db:"value"`
}

type filteringOptionsRecord struct {
	Title     string `db:"title"`
	Options   string `db:"options"`
	UpdatedAt int64  `db:"updated_at"`
}

type popularSearchRecord struct {
	SortOrder  int    `db:"sort_order"`
	Term       string `db:"term"`
	ColumnName string `db:"column_name"`
	Hits       int64  `db:"hits"`
	IsActive   bool   `db:"is_active"`
}

type valueCountRecord struct {
	Value      string `db:"value"`
	ColumnName string `db:"column_name"`
	Hits       int64  `db:"hits"`
}

// SQLDataset stores the dataset in sqlite or postgres.
type SQLDataset struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLDataset(db *sqlx.DB) *SQLDataset {
	return &SQLDataset{db: db, now: time.Now}
}

// CreateRows inserts one batch in a single transaction.
func (s *SQLDataset) CreateRows(ctx context.Context, rows []entity.Row) error {
	if len(rows) == 0 {
		return nil
	}

	createdAt := s.now().UnixNano()
	rowRecs := make([]rowRecord, 0, len(rows))
	var compRecs []componentRecord
	for i, row := range rows {
		rowRecs = append(rowRecs, rowRecord{ID: row.ID, CreatedAt: createdAt, Ordinal: i})
		for j, c := range row.Components {
			compRecs = append(compRecs, componentRecord{RowID: row.ID, Idx: j, ColumnName: c.ColumnName, Value: c.Value})
		}
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO dataset_rows (id, created_at, ordinal) VALUES (:id, :created_at, :ordinal)`,
			rowRecs); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}

		for start := 0; start < len(compRecs); start += componentsPerInsert {
			end := min(start+componentsPerInsert, len(compRecs))
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO dataset_row_components (row_id, idx, column_name, value) VALUES (:row_id, :idx, :column_name, :value)`,
				compRecs[start:end]); err != nil {
				return fmt.Errorf("insert components: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLDataset) DeleteAllRows(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_row_components`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows`)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *SQLDataset) CountRows(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM dataset_rows`); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLDataset) FindOneRow(ctx context.Context) (entity.Row, error) {
	var id string
	err := s.db.GetContext(ctx, &id, `SELECT id FROM dataset_rows ORDER BY created_at, ordinal, id LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Row{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.Row{}, err
	}

	rows, err := s.loadRows(ctx, []string{id})
	if err != nil {
		return entity.Row{}, err
	}
	return rows[0], nil
}

func (s *SQLDataset) ListRows(ctx context.Context, q entity.RowQuery) ([]entity.Row, int, error) {
	where, args := filterClause(q.Filters)

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(`SELECT COUNT(*) FROM dataset_rows`+where), args...); err != nil {
		return nil, 0, err
	}
	if total == 0 || q.Offset() >= total {
		return []entity.Row{}, total, nil
	}

	var ids []string
	pageArgs := append(append([]any{}, args...), q.PageSize, q.Offset())
	query := s.db.Rebind(`SELECT id FROM dataset_rows` + where + ` ORDER BY created_at, ordinal, id LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &ids, query, pageArgs...); err != nil {
		return nil, 0, err
	}

	rows, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *SQLDataset) FindFilteringOptions(ctx context.Context) (entity.FilteringOptionSet, error) {
	var rec filteringOptionsRecord
	err := s.db.GetContext(ctx, &rec,
		s.db.Rebind(`SELECT title, options, updated_at FROM filtering_options WHERE title = ?`),
		entity.FilteringOptionsTitle)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.FilteringOptionSet{}, pkgerror.ErrNotFound
	}
	if err != nil {
		return entity.FilteringOptionSet{}, err
	}

	set := entity.FilteringOptionSet{Title: rec.Title, UpdatedAt: time.Unix(0, rec.UpdatedAt).UTC()}
	if err := json.Unmarshal([]byte(rec.Options), &set.Options); err != nil {
		return entity.FilteringOptionSet{}, fmt.Errorf("decode filtering options: %w", err)
	}
	return set, nil
}

func (s *SQLDataset) SaveFilteringOptions(ctx context.Context, set entity.FilteringOptionSet) error {
	if set.Options == nil {
		set.Options = []entity.FilteringOption{}
	}
	raw, err := json.Marshal(set.Options)
	if err != nil {
		return fmt.Errorf("encode filtering options: %w", err)
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO filtering_options (title, options, updated_at)
		VALUES (:title, :options, :updated_at)
		ON CONFLICT (title) DO UPDATE SET options = excluded.options, updated_at = excluded.updated_at`,
		filteringOptionsRecord{Title: entity.FilteringOptionsTitle, Options: string(raw), UpdatedAt: set.UpdatedAt.UnixNano()})
	return err
}

func (s *SQLDataset) DeleteFilteringOptions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM filtering_options WHERE title = ?`), entity.FilteringOptionsTitle)
	return err
}

// TopValues counts identical (value, column) pairs across the dataset.
func (s *SQLDataset) TopValues(ctx context.Context, limit int) ([]entity.ValueCount, error) {
	var recs []valueCountRecord
	err := s.db.SelectContext(ctx, &recs, s.db.Rebind(`
		SELECT value, column_name, COUNT(*) AS hits
		FROM dataset_row_components
		WHERE value <> ''
		GROUP BY value, column_name
		ORDER BY hits DESC, value, column_name
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}

	out := make([]entity.ValueCount, 0, len(recs))
	for _, r := range recs {
		out = append(out, entity.ValueCount{Value: r.Value, ColumnName: r.ColumnName, Count: r.Hits})
	}
	return out, nil
}

func (s *SQLDataset) ReplacePopularSearches(ctx context.Context, entries []entity.PopularSearchEntry) error {
	recs := make([]popularSearchRecord, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, popularSearchRecord{
			SortOrder:  e.Order,
			Term:       e.Term,
			ColumnName: e.ColumnName,
			Hits:       e.Hits,
			IsActive:   e.IsActive,
		})
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM popular_searches`); err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO popular_searches (sort_order, term, column_name, hits, is_active)
			VALUES (:sort_order, :term, :column_name, :hits, :is_active)`, recs)
		return err
	})
}

func (s *SQLDataset) ListPopularSearches(ctx context.Context) ([]entity.PopularSearchEntry, error) {
	var recs []popularSearchRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT sort_order, term, column_name, hits, is_active FROM popular_searches ORDER BY sort_order`)
	if err != nil {
		return nil, err
	}

	out := make([]entity.PopularSearchEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, entity.PopularSearchEntry{
			Term:       r.Term,
			ColumnName: r.ColumnName,
			Order:      r.SortOrder,
			Hits:       r.Hits,
			IsActive:   r.IsActive,
		})
	}
	return out, nil
}

// loadRows returns the rows of ids with their components, in ids order.
func (s *SQLDataset) loadRows(ctx context.Context, ids []string) ([]entity.Row, error) {
	query, args, err := sqlx.In(`
		SELECT row_id, idx, column_name, value
		FROM dataset_row_components
		WHERE row_id IN (?)
		ORDER BY row_id, idx`, ids)
	if err != nil {
		return nil, err
	}

	var recs []componentRecord
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	byID := make(map[string][]entity.HeaderComponent, len(ids))
	for _, r := range recs {
		byID[r.RowID] = append(byID[r.RowID], entity.HeaderComponent{ColumnName: r.ColumnName, Value: r.Value})
	}

	rows := make([]entity.Row, 0, len(ids))
	for _, id := range ids {
		comps := byID[id]
		if comps == nil {
			comps = []entity.HeaderComponent{}
		}
		rows = append(rows, entity.Row{ID: id, Components: comps})
	}
	return rows, nil
}

func (s *SQLDataset) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// filterClause renders row filters as a WHERE clause with ? placeholders.
func filterClause(filters []entity.ColumnFilter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	conds := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters)*2)
	for _, f := range filters {
		if f.Mode == entity.MatchExact {
			conds = append(conds, `id IN (SELECT row_id FROM dataset_row_components WHERE column_name = ? AND value = ?)`)
			args = append(args, f.Column, f.Value)
			continue
		}
		conds = append(conds, `id IN (SELECT row_id FROM dataset_row_components WHERE column_name = ? AND LOWER(value) LIKE ? ESCAPE '!')`)
		args = append(args, f.Column, "%"+escapeLike(strings.ToLower(f.Value))+"%")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
