// Package table implements the in-memory text table shared by the record stores.
package table

import (
	"fmt"
)

// Table is an ordered set of rows of text cells with a named header row.
// It is not safe for concurrent use.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// New builds a Table from a header and data rows. Short rows are padded, a
// row wider than the header widens it with unnamed columns, and duplicate
// header names resolve to their first occurrence.
func New(header []string, rows [][]string) *Table {
	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}
	t := &Table{
		header: make([]string, width),
		index:  make(map[string]int, len(header)),
	}
	copy(t.header, header)
	for i, h := range header {
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	t.rows = make([][]string, len(rows))
	for i, r := range rows {
		t.rows[i] = t.pad(r)
	}
	return t
}

func (t *Table) pad(r []string) []string {
	row := make([]string, len(t.header))
	copy(row, r)
	return row
}

// Header returns a copy of the header row.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Value returns the cell text and whether the column exists.
func (t *Table) Value(row int, column string) (string, bool) {
	col, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.rows) {
		return "", false
	}
	return t.rows[row][col], true
}

// Column returns the zero-based position of the named column.
func (t *Table) Column(name string) (int, bool) {
	col, ok := t.index[name]
	return col, ok
}

// At returns the cell at row and column position, or "" when out of range.
func (t *Table) At(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.header) {
		return ""
	}
	return t.rows[row][col]
}

// Set writes one cell.
func (t *Table) Set(row int, column, value string) error {
	col, ok := t.index[column]
	if !ok {
		return fmt.Errorf("unknown column %q", column)
	}
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", row, len(t.rows))
	}
	t.rows[row][col] = value
	return nil
}

// EnsureColumn appends an empty column when name is absent.
func (t *Table) EnsureColumn(name string) {
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = len(t.header)
	t.header = append(t.header, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
}

// Rows returns a deep copy of the data rows.
func (t *Table) Rows() [][]string {
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
