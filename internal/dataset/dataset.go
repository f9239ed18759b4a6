// Package dataset provides the in-memory tabular value the validator runs
// against. A file is always loaded whole before validation starts.
package dataset

import (
	"fmt"
	"strings"
)

// Dataset is an ordered set of named columns over rows of cells.
// Cells are whatever the reader produced: strings for delimited and Excel
// files, strings/float64/bool/nil for JSON.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates a dataset. Short rows are padded with nil cells, long rows are
// truncated to the column count.
func New(columns []string, rows [][]any) *Dataset {
	d := &Dataset{
		columns: append([]string(nil), columns...),
	}
	d.rows = make([][]any, 0, len(rows))
	for _, row := range rows {
		normalized := make([]any, len(columns))
		copy(normalized, row)
		d.rows = append(d.rows, normalized)
	}
	d.reindex()
	return d
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.columns))
	for i, c := range d.columns {
		if _, exists := d.index[c]; !exists {
			d.index[c] = i
		}
	}
}

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// HasColumn reports whether the dataset has a column named name.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns a copy of the cells of the named column.
func (d *Dataset) Column(name string) ([]any, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	out := make([]any, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, true
}

// Value returns the cell at the given row and column, or nil when either is
// out of range.
func (d *Dataset) Value(row int, column string) any {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.rows) {
		return nil
	}
	return d.rows[row][i]
}

// Row returns the given row keyed by column name.
func (d *Dataset) Row(row int) (map[string]any, error) {
	if row < 0 || row >= len(d.rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", row, len(d.rows))
	}
	out := make(map[string]any, len(d.columns))
	for i, c := range d.columns {
		out[c] = d.rows[row][i]
	}
	return out, nil
}

// CleanColumnNames trims header names and collapses internal runs of
// whitespace to a single space.
func (d *Dataset) CleanColumnNames() {
	for i, c := range d.columns {
		d.columns[i] = strings.Join(strings.Fields(c), " ")
	}
	d.reindex()
}

// MapColumn returns a copy of d with fn applied to every cell of the named
// column. d itself is left untouched.
func (d *Dataset) MapColumn(name string, fn func(any) (any, error)) (*Dataset, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	out := New(d.columns, d.rows)
	for r, row := range out.rows {
		v, err := fn(row[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		row[i] = v
	}
	return out, nil
}
