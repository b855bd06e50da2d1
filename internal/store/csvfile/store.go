// Package csvfile implements a record store backed by a CSV file.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/store/table"
)

// Store keeps a CSV file in memory and rewrites it on Save.
type Store struct {
	*table.Table
	path string
}

// Open loads path; the first record is the header row.
func Open(path string) (*Store, error) {
	f, err := os.Open(path) // #nosec G304 -- operator supplied table path.
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %v: %w", path, err, enrich.ErrStore)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %v: %w", path, err, enrich.ErrStore)
	}
	var header []string
	var data [][]string
	if len(records) > 0 {
		header = records[0]
		data = records[1:]
	}
	return &Store{Table: table.New(header, data), path: path}, nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the whole table to a temporary file and renames it over path.
func (s *Store) Save() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".enricher-*.csv")
	if err != nil {
		return fmt.Errorf("create temp csv: %v: %w", err, enrich.ErrStore)
	}
	tmpName := tmp.Name()
	w := csv.NewWriter(tmp)
	err = w.Write(s.Header())
	if err == nil {
		err = w.WriteAll(s.Rows())
	}
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write csv: %v: %w", err, enrich.ErrStore)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close csv: %v: %w", err, enrich.ErrStore)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace csv %s: %v: %w", s.path, err, enrich.ErrStore)
	}
	return nil
}
