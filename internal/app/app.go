// Package app wires configuration into the long-lived services of a run.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/attachment"
	"github.com/JakeFAU/pqrd-enricher/internal/browser/chromedp"
	"github.com/JakeFAU/pqrd-enricher/internal/clock/system"
	"github.com/JakeFAU/pqrd-enricher/internal/config"
	"github.com/JakeFAU/pqrd-enricher/internal/downloader"
	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/extract"
	"github.com/JakeFAU/pqrd-enricher/internal/hash/sha256"
	"github.com/JakeFAU/pqrd-enricher/internal/id/uuid"
	"github.com/JakeFAU/pqrd-enricher/internal/pipeline"
	"github.com/JakeFAU/pqrd-enricher/internal/policy/ratelimit"
	"github.com/JakeFAU/pqrd-enricher/internal/session"
	"github.com/JakeFAU/pqrd-enricher/internal/storage/gcs"
	"github.com/JakeFAU/pqrd-enricher/internal/storage/local"
	"github.com/JakeFAU/pqrd-enricher/internal/store"
)

// fallbackNameSize is the digest length used for attachments without a file name.
const fallbackNameSize = 16

// Options override collaborators, mainly for tests.
type Options struct {
	// DriverFactory replaces headless Chrome.
	DriverFactory enrich.DriverFactory
	// Limit overrides run.batch_size when > 0.
	Limit  int
	DryRun bool
}

// App holds the services shared by the commands.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   enrich.RecordStore
	archive enrich.BlobStore
	closers []func() error
}

// New loads the record store and the optional archive. Nothing touches the
// network except a GCS archive client.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	rs, err := store.Open(cfg.Store.Path, cfg.Store.Sheet)
	if err != nil {
		return nil, err
	}
	a.store = rs
	logger.Info("record store loaded", zap.String("path", cfg.Store.Path), zap.Int("rows", rs.Len()))

	if err := a.openArchive(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) openArchive(ctx context.Context) error {
	switch a.cfg.Archive.Backend {
	case "", config.ArchiveNone:
		return nil
	case config.ArchiveLocal:
		bs, err := local.New(local.Config{Dir: a.cfg.Archive.Dir})
		if err != nil {
			return fmt.Errorf("open local archive: %w", err)
		}
		a.archive = bs
		a.logger.Info("archiving to local directory", zap.String("dir", a.cfg.Archive.Dir))
	case config.ArchiveGCS:
		bs, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Archive.Bucket, Prefix: a.cfg.Archive.Prefix})
		if err != nil {
			return fmt.Errorf("open gcs archive: %w", err)
		}
		a.archive = bs
		a.closers = append(a.closers, bs.Close)
		a.logger.Info("archiving to GCS", zap.String("bucket", a.cfg.Archive.Bucket))
	default:
		return fmt.Errorf("unknown archive backend %q: %w", a.cfg.Archive.Backend, enrich.ErrConfiguration)
	}
	return nil
}

// Store returns the loaded record store.
func (a *App) Store() enrich.RecordStore {
	return a.store
}

// Archive returns the configured blob store, or nil.
func (a *App) Archive() enrich.BlobStore {
	return a.archive
}

// Pipeline assembles a pipeline over the loaded store.
func (a *App) Pipeline(opts Options) *pipeline.Pipeline {
	cfg := a.cfg
	factory := opts.DriverFactory
	if factory == nil {
		factory = chromedp.NewFactory(chromedp.Config{
			Headless:      cfg.Browser.Headless,
			UserAgent:     cfg.Browser.UserAgent,
			ActionTimeout: cfg.Browser.ActionTimeout,
			BlockImages:   cfg.Browser.BlockImages,
			WindowWidth:   cfg.Browser.WindowWidth,
			WindowHeight:  cfg.Browser.WindowHeight,
			ExecPath:      cfg.Browser.ExecPath,
		}, a.logger)
	}
	sessions := session.NewManager(session.Config{
		BaseURL:        cfg.Portal.BaseURL,
		LoginPath:      cfg.Portal.LoginPath,
		LandingPath:    cfg.Portal.LandingPath,
		LoginTimeout:   cfg.Browser.LoginTimeout,
		PollInterval:   cfg.Browser.PollInterval,
		DiagnosticPath: cfg.Run.DiagnosticPath,
	}, factory, a.logger)
	extractor := extract.New(extract.Config{
		BaseURL:           cfg.Portal.BaseURL,
		DetailPath:        cfg.Portal.DetailPath,
		AttachmentPattern: cfg.Portal.AttachmentPattern,
		SettleTimeout:     cfg.Browser.SettleTimeout,
		PollInterval:      cfg.Browser.PollInterval,
	}, ratelimit.New(ratelimit.Config{PerSecond: cfg.Browser.NavigationQPS, Burst: 1}), a.logger)
	dl := downloader.New(downloader.Config{
		Timeout:            cfg.Attachments.Timeout,
		InsecureSkipVerify: cfg.Attachments.InsecureSkipVerify,
		UserAgent:          cfg.Browser.UserAgent,
	}, a.logger)
	fetcher := attachment.NewFetcher(attachment.Config{
		Dir:         cfg.Attachments.Dir,
		Concurrency: cfg.Attachments.Concurrency,
	}, dl, sha256.NewTruncated(fallbackNameSize), a.archive, a.logger)

	limit := cfg.Run.BatchSize
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	return pipeline.New(pipeline.Config{
		Columns:                cfg.Columns,
		Credentials:            cfg.Portal.Credentials(),
		Limit:                  limit,
		CheckpointEvery:        cfg.Run.CheckpointEvery,
		MaxConsecutiveFailures: cfg.Run.MaxConsecutiveFailures,
		DiagnosticPath:         cfg.Run.DiagnosticPath,
		DryRun:                 opts.DryRun,
	}, pipeline.Deps{
		Store:     a.store,
		Sessions:  sessions,
		Extractor: extractor,
		Fetcher:   fetcher,
		Cookies:   dl,
		Archive:   a.archive,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    a.logger,
	})
}

// Close releases clients opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
