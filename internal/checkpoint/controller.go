// Package checkpoint applies record updates to the table and persists it at a fixed cadence.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/metrics"
)

// DefaultCadence is the number of attempted records between saves.
const DefaultCadence = 20

// Config controls the flush cadence and snapshot archiving.
type Config struct {
	Cadence int
	// RunID namespaces archived snapshots.
	RunID         string
	ArchivePrefix string
}

// filePather is implemented by stores backed by a single file.
type filePather interface {
	Path() string
}

// Controller is the only writer of the record store during a run.
type Controller struct {
	cfg     Config
	store   enrich.RecordStore
	archive enrich.BlobStore
	logger  *zap.Logger

	dirty   bool
	flushes int
}

// New constructs a Controller. archive may be nil.
func New(cfg Config, store enrich.RecordStore, archive enrich.BlobStore, logger *zap.Logger) *Controller {
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "checkpoints"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, store: store, archive: archive, logger: logger.Named("checkpoint")}
}

// RecordUpdate writes every field of one record. Nothing is written unless
// the row and all columns exist.
func (c *Controller) RecordUpdate(row int, fields enrich.Fields) error {
	if row < 0 || row >= c.store.Len() {
		return fmt.Errorf("row %d out of range [0,%d): %w", row, c.store.Len(), enrich.ErrStore)
	}
	columns := make([]string, 0, len(fields))
	for col := range fields {
		if _, ok := c.store.Value(row, col); !ok {
			return fmt.Errorf("unknown column %q: %w", col, enrich.ErrStore)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)
	for _, col := range columns {
		if err := c.store.Set(row, col, fields[col]); err != nil {
			return fmt.Errorf("set row %d column %q: %w: %w", row, col, enrich.ErrStore, err)
		}
	}
	c.dirty = true
	return nil
}

// MaybeFlush saves the table when n is a positive multiple of the cadence.
func (c *Controller) MaybeFlush(ctx context.Context, n int) (bool, error) {
	if n <= 0 || n%c.cfg.Cadence != 0 {
		return false, nil
	}
	if err := c.flush(ctx); err != nil {
		return false, err
	}
	c.logger.Info("checkpoint saved", zap.Int("attempted", n))
	return true, nil
}

// FinalFlush saves the table if anything changed since the last save.
func (c *Controller) FinalFlush(ctx context.Context) error {
	if !c.dirty {
		c.logger.Debug("final flush skipped, table unchanged")
		return nil
	}
	if err := c.flush(ctx); err != nil {
		return err
	}
	c.logger.Info("final checkpoint saved", zap.Int("flushes", c.flushes))
	return nil
}

// Flushes returns the number of successful saves.
func (c *Controller) Flushes() int {
	return c.flushes
}

// Dirty reports whether updates are pending a save.
func (c *Controller) Dirty() bool {
	return c.dirty
}

func (c *Controller) flush(ctx context.Context) error {
	if err := c.store.Save(); err != nil {
		if errors.Is(err, enrich.ErrStore) {
			return fmt.Errorf("save table: %w", err)
		}
		return fmt.Errorf("save table: %w: %w", enrich.ErrStore, err)
	}
	c.dirty = false
	c.flushes++
	metrics.ObserveFlush()
	c.archiveSnapshot(ctx)
	return nil
}

func (c *Controller) archiveSnapshot(ctx context.Context) {
	if c.archive == nil {
		return
	}
	fp, ok := c.store.(filePather)
	if !ok {
		return
	}
	src := fp.Path()
	fh, err := os.Open(src) // #nosec G304 -- configured table path.
	if err != nil {
		c.logger.Warn("snapshot archive skipped", zap.String("path", src), zap.Error(err))
		return
	}
	defer fh.Close() //nolint:errcheck // read-only

	key := path.Join(c.cfg.ArchivePrefix, c.cfg.RunID, fmt.Sprintf("%03d-%s", c.flushes, filepath.Base(src)))
	uri, err := c.archive.PutObject(ctx, key, "application/octet-stream", fh)
	if err != nil {
		c.logger.Warn("snapshot archive failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("snapshot archived", zap.String("uri", uri))
}
