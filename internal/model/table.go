package model

import (
	"github.com/rotisserie/eris"
)

// ErrMissingColumn is returned when a table lacks a required column.
var ErrMissingColumn = eris.New("model: column not found")

// Table is a tabular dataset loaded from a flat file. Every cell is held in
// string form; numeric source values are rendered to text when loaded.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows. A nil table has no rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table is nil or has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Index returns the position of column, or -1 if absent.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(column string) bool {
	return t.Index(column) >= 0
}

// Cell returns the value at row i for column, or "" when either is absent or
// the row is shorter than the header.
func (t *Table) Cell(i int, column string) string {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= t.Len() {
		return ""
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}

// FilterIn returns a new table holding only the rows whose column value is one
// of ids. Source row order is preserved.
func (t *Table) FilterIn(column string, ids []CustomerID) (*Table, error) {
	idx := t.Index(column)
	if idx < 0 {
		name := ""
		if t != nil {
			name = t.Name
		}
		return nil, eris.Wrapf(ErrMissingColumn, "table %q has no column %q", name, column)
	}

	set := IDSet(ids)
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, 0),
	}
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		if _, ok := set[CustomerID(row[idx])]; ok {
			out.Rows = append(out.Rows, append([]string(nil), row...))
		}
	}
	return out, nil
}

// CustomerIDs returns the distinct values of column in row order.
func (t *Table) CustomerIDs(column string) []CustomerID {
	var ids []CustomerID
	for i := range t.Len() {
		ids = append(ids, CustomerID(t.Cell(i, column)))
	}
	return UniqueIDs(ids)
}

// Records returns each row as a column → value map.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, 0, t.Len())
	for i := range t.Len() {
		rec := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			rec[c] = t.Cell(i, c)
		}
		out = append(out, rec)
	}
	return out
}
