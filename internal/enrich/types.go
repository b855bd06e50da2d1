package enrich

import (
	"fmt"
	"strings"
	"time"
)

// Default column names written by the pipeline.
const (
	DefaultMotivosColumn     = "Motivos"
	DefaultMotivos2Column    = "Motivos2"
	DefaultSeguimientoColumn = "Seguimiento"
	DefaultExpedienteColumn  = "Expediente"
	DefaultAttemptedColumn   = "Enriquecido"

	// DefaultIDIndex is the zero-based position of the identifier column
	// when no identifier header name is configured.
	DefaultIDIndex = 5
)

// Columns names the table columns read and written by the pipeline.
type Columns struct {
	// ID is the header of the identifier column. When empty, IDIndex is used.
	ID          string `mapstructure:"id"`
	IDIndex     int    `mapstructure:"id_index" validate:"gte=0"`
	Motivos     string `mapstructure:"motivos" validate:"required"`
	Motivos2    string `mapstructure:"motivos2" validate:"required"`
	Seguimiento string `mapstructure:"seguimiento" validate:"required"`
	Expediente  string `mapstructure:"expediente" validate:"required"`
	// Attempted receives the time a record was last enriched. A stamped record
	// is complete even when every extracted field came back empty. Empty
	// disables stamping, leaving Seguimiento as the only completion signal.
	Attempted string `mapstructure:"attempted"`
}

// DefaultColumns returns the column layout of the portal export workbook.
func DefaultColumns() Columns {
	return Columns{
		IDIndex:     DefaultIDIndex,
		Motivos:     DefaultMotivosColumn,
		Motivos2:    DefaultMotivos2Column,
		Seguimiento: DefaultSeguimientoColumn,
		Expediente:  DefaultExpedienteColumn,
		Attempted:   DefaultAttemptedColumn,
	}
}

// Enrichment lists the columns populated for every processed record.
func (c Columns) Enrichment() []string {
	cols := []string{c.Motivos, c.Motivos2, c.Seguimiento, c.Expediente}
	if c.Attempted != "" {
		cols = append(cols, c.Attempted)
	}
	return cols
}

// Complete reports whether a row with the given completion cells needs no
// further enrichment.
func (c Columns) Complete(seguimiento, attempted string) bool {
	return strings.TrimSpace(seguimiento) != "" || (c.Attempted != "" && strings.TrimSpace(attempted) != "")
}

// ResolveID returns the header name of the identifier column for the given header row.
func (c Columns) ResolveID(header []string) (string, error) {
	if c.ID != "" {
		for _, h := range header {
			if h == c.ID {
				return c.ID, nil
			}
		}
		return "", fmt.Errorf("identifier column %q not found: %w", c.ID, ErrStore)
	}
	if c.IDIndex < 0 || c.IDIndex >= len(header) {
		return "", fmt.Errorf("identifier column index %d out of range (%d columns): %w", c.IDIndex, len(header), ErrStore)
	}
	return header[c.IDIndex], nil
}

// WorkItem references one pending record by row position and normalized identifier.
type WorkItem struct {
	Row int
	ID  string
}

// Result is the structured data extracted from one record's detail view.
// Every field may legitimately be empty.
type Result struct {
	Motivos     string
	Motivos2    string
	Seguimiento string
	Links       []string
}

// Expediente renders the attachment links as stored in the table.
func (r Result) Expediente() string {
	return strings.Join(r.Links, "\n")
}

// Fields maps the result onto the configured enrichment columns, stamping
// the attempted column with at when one is configured.
func (r Result) Fields(cols Columns, at time.Time) Fields {
	fields := Fields{
		cols.Motivos:     r.Motivos,
		cols.Motivos2:    r.Motivos2,
		cols.Seguimiento: r.Seguimiento,
		cols.Expediente:  r.Expediente(),
	}
	if cols.Attempted != "" {
		fields[cols.Attempted] = at.UTC().Format(time.RFC3339)
	}
	return fields
}

// Fields is a set of column values written to one row as a group.
type Fields map[string]string

// Credentials authenticate the portal session.
type Credentials struct {
	Username string
	Password string
}

// Validate reports missing credential fields as a configuration error.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("portal credentials missing %s: %w", strings.Join(missing, " and "), ErrConfiguration)
	}
	return nil
}

// Outcome records the result of retrieving one attachment link.
type Outcome struct {
	Link string
	Path string
	URI  string
	Err  error
}

// OK reports whether the attachment was stored.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// State is a pipeline lifecycle state.
type State string

// Pipeline lifecycle states.
const (
	StateInit          State = "INIT"
	StateAuthenticated State = "AUTHENTICATED"
	StateRunning       State = "RUNNING"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
	StateCanceled      State = "CANCELED"
)

// Summary aggregates the counters reported at the end of a run.
type Summary struct {
	RunID              string
	State              State
	Pending            int
	Selected           int
	Skipped            int
	Processed          int
	Failed             int
	Attachments        int
	AttachmentFailures int
	Flushes            int
	Duration           time.Duration
}
