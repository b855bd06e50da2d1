// Package pending selects the records that still need enrichment.
package pending

import (
	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

// DefaultLimit caps the work items selected per run.
const DefaultLimit = 500

// Selection is the ordered work for one run.
type Selection struct {
	Items []enrich.WorkItem
	// Skipped lists pending rows whose identifier is empty or "nan".
	Skipped []int
	// TotalPending counts valid pending rows before the limit is applied.
	TotalPending int
}

// Select scans store in row order. A row is pending until it carries a
// Seguimiento or an attempted stamp. limit <= 0 uses DefaultLimit.
func Select(store enrich.RecordStore, cols enrich.Columns, limit int) (Selection, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	idColumn, err := cols.ResolveID(store.Header())
	if err != nil {
		return Selection{}, err
	}

	var sel Selection
	for row := 0; row < store.Len(); row++ {
		seguimiento, _ := store.Value(row, cols.Seguimiento)
		attempted, _ := store.Value(row, cols.Attempted)
		if cols.Complete(seguimiento, attempted) {
			continue
		}
		raw, _ := store.Value(row, idColumn)
		id, ok := enrich.NormalizeID(raw)
		if !ok {
			sel.Skipped = append(sel.Skipped, row)
			continue
		}
		sel.TotalPending++
		if len(sel.Items) < limit {
			sel.Items = append(sel.Items, enrich.WorkItem{Row: row, ID: id})
		}
	}
	return sel, nil
}
