package entity

// HeaderComponent is one (column, value) pair of a destination row.
type HeaderComponent struct {
	ColumnName string `json:"columnName"`
	Value      string `json:"value"`
}

// Row is a destination row: an ordered list of header components.
type Row struct {
	ID         string            `json:"id"`
	Components []HeaderComponent `json:"components"`
}

// Columns returns the column names of r in order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r.Components))
	for _, c := range r.Components {
		cols = append(cols, c.ColumnName)
	}
	return cols
}

// ColumnFilter restricts browsing to rows whose column matches Value.
type ColumnFilter struct {
	Column string
	Value  string
	Mode   MatchMode
}

// RowQuery describes one page of the dataset browse.
type RowQuery struct {
	Filters  []ColumnFilter
	Page     int
	PageSize int
}

// Offset returns the zero-based index of the first row on the page.
func (q RowQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}
