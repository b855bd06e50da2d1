// Package xlsx implements a record store backed by an Excel workbook.
package xlsx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/store/table"
)

// headerRow marks a header cell in the change set.
const headerRow = -1

type cell struct {
	row, col int
}

// Store keeps one worksheet in memory as text. Save patches only the cells
// changed since the last save into the workbook on disk. Untouched cells are
// never rewritten.
type Store struct {
	*table.Table
	path    string
	sheet   string
	changed map[cell]struct{}
}

// Open loads the named sheet (or the first sheet when empty) from path.
// Values are read raw so numeric identifiers keep their digits.
func Open(path, sheet string) (*Store, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %v: %w", path, err, enrich.ErrStore)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %v: %w", sheet, err, enrich.ErrStore)
	}
	var header []string
	var data [][]string
	if len(rows) > 0 {
		header = rows[0]
		data = rows[1:]
	}
	return &Store{
		Table:   table.New(header, data),
		path:    path,
		sheet:   sheet,
		changed: make(map[cell]struct{}),
	}, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

// EnsureColumn appends name after the widest row when it is absent.
func (s *Store) EnsureColumn(name string) {
	if _, ok := s.Column(name); ok {
		return
	}
	s.Table.EnsureColumn(name)
	col, _ := s.Column(name)
	s.changed[cell{row: headerRow, col: col}] = struct{}{}
}

// Set writes one cell and marks it for the next Save.
func (s *Store) Set(row int, column, value string) error {
	if err := s.Table.Set(row, column, value); err != nil {
		return err
	}
	col, _ := s.Column(column)
	s.changed[cell{row: row, col: col}] = struct{}{}
	return nil
}

// Save applies the pending changes to a copy of the workbook and renames it
// over path. Without changes the file is left as is.
func (s *Store) Save() error {
	if len(s.changed) == 0 {
		return nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("reopen workbook %s: %v: %w", s.path, err, enrich.ErrStore)
	}
	defer f.Close() //nolint:errcheck // written through WriteTo

	header := s.Header()
	for c := range s.changed {
		name, err := excelize.CoordinatesToCellName(c.col+1, c.row+2)
		if err != nil {
			return fmt.Errorf("cell name: %v: %w", err, enrich.ErrStore)
		}
		value := s.At(c.row, c.col)
		if c.row == headerRow {
			value = header[c.col]
		}
		if err := f.SetCellStr(s.sheet, name, value); err != nil {
			return fmt.Errorf("write cell %s: %v: %w", name, err, enrich.ErrStore)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".enricher-*"+filepath.Ext(s.path))
	if err != nil {
		return fmt.Errorf("create temp workbook: %v: %w", err, enrich.ErrStore)
	}
	tmpName := tmp.Name()
	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write workbook: %v: %w", err, enrich.ErrStore)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close workbook: %v: %w", err, enrich.ErrStore)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace workbook %s: %v: %w", s.path, err, enrich.ErrStore)
	}
	clear(s.changed)
	return nil
}

var _ enrich.RecordStore = (*Store)(nil)
