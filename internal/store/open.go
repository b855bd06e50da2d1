// Package store opens the record store matching a table file's format.
package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/store/csvfile"
	"github.com/JakeFAU/pqrd-enricher/internal/store/xlsx"
)

// Open loads path with the store implied by its extension.
func Open(path, sheet string) (enrich.RecordStore, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return xlsx.Open(path, sheet)
	case ".csv":
		return csvfile.Open(path)
	default:
		return nil, fmt.Errorf("unsupported table format %q: %w", ext, enrich.ErrConfiguration)
	}
}
