package entity

// PopularSearchEntry is one suggested search term.
type PopularSearchEntry struct {
	Term       string `json:"term"`
	ColumnName string `json:"columnName"`
	Order      int    `json:"order"`
	Hits       int64  `json:"hits"`
	IsActive   bool   `json:"isActive"`
}

// ValueCount is a raw frequency row from the dataset aggregation.
type ValueCount struct {
	Value      string
	ColumnName string
	Count      int64
}
