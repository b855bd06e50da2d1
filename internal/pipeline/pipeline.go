// Package pipeline runs one enrichment pass over the record store.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/checkpoint"
	"github.com/JakeFAU/pqrd-enricher/internal/clock/system"
	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/id/uuid"
	"github.com/JakeFAU/pqrd-enricher/internal/metrics"
	"github.com/JakeFAU/pqrd-enricher/internal/pending"
	"github.com/JakeFAU/pqrd-enricher/internal/session"
)

// DefaultMaxConsecutiveFailures aborts a run whose browser stopped producing pages.
const DefaultMaxConsecutiveFailures = 10

// Authenticator opens the portal session.
type Authenticator interface {
	Authenticate(ctx context.Context, creds enrich.Credentials) (*session.Session, error)
}

// Extractor reads one record's detail view.
type Extractor interface {
	Extract(ctx context.Context, driver enrich.PageDriver, item enrich.WorkItem) (enrich.Result, error)
}

// Fetcher downloads a record's attachments.
type Fetcher interface {
	FetchAll(ctx context.Context, id string, links []string) []enrich.Outcome
}

// Config controls one run.
type Config struct {
	Columns     enrich.Columns
	Credentials enrich.Credentials
	// Limit caps the records attempted; <= 0 uses pending.DefaultLimit.
	Limit           int
	CheckpointEvery int
	// MaxConsecutiveFailures turns a streak of extraction errors into a
	// session failure. Negative disables the check.
	MaxConsecutiveFailures int
	// DiagnosticPath receives a screenshot when the run fails.
	DiagnosticPath string
	// DryRun extracts without downloading attachments or writing the table.
	DryRun bool
}

// Deps are the collaborators of a Pipeline. Archive and Cookies may be nil.
type Deps struct {
	Store     enrich.RecordStore
	Sessions  Authenticator
	Extractor Extractor
	Fetcher   Fetcher
	Cookies   enrich.CookieSetter
	Archive   enrich.BlobStore
	Clock     enrich.Clock
	IDs       enrich.IDGenerator
	Logger    *zap.Logger
}

// Pipeline sequences authentication, selection, extraction, and checkpointing.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New constructs a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, log: logger.Named("pipeline")}
}

// run carries the mutable state of one Run call.
type run struct {
	summary enrich.Summary
	log     *zap.Logger
	ctrl    *checkpoint.Controller
	sess    *session.Session
}

// Run executes one pass. The returned summary is populated on every path.
func (p *Pipeline) Run(ctx context.Context) (enrich.Summary, error) {
	start := p.deps.Clock.Now()
	r := &run{summary: enrich.Summary{State: enrich.StateInit}}
	if id, err := p.deps.IDs.NewID(); err == nil {
		r.summary.RunID = id
	}
	r.log = p.log.With(zap.String("run_id", r.summary.RunID))

	err := p.execute(ctx, r)
	switch {
	case err == nil:
		r.summary.State = enrich.StateCompleted
	case enrich.IsFatal(err):
		r.summary.State = enrich.StateFailed
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.summary.State = enrich.StateCanceled
	default:
		r.summary.State = enrich.StateFailed
	}
	finished := p.deps.Clock.Now()
	r.summary.Duration = finished.Sub(start)
	metrics.ObserveRun(string(r.summary.State), finished)
	p.logSummary(r, err)
	return r.summary, err
}

func (p *Pipeline) execute(ctx context.Context, r *run) (err error) {
	if err := p.cfg.Credentials.Validate(); err != nil {
		return err
	}
	store := p.deps.Store
	for _, col := range p.cfg.Columns.Enrichment() {
		store.EnsureColumn(col)
	}
	sel, err := pending.Select(store, p.cfg.Columns, p.cfg.Limit)
	if err != nil {
		return err
	}
	r.summary.Pending = sel.TotalPending
	r.summary.Selected = len(sel.Items)
	r.summary.Skipped = len(sel.Skipped)
	metrics.SetPending(sel.TotalPending)
	for _, row := range sel.Skipped {
		r.log.Warn("record skipped, identifier missing", zap.Int("row", row))
		metrics.ObserveRecord(metrics.OutcomeSkipped)
	}
	r.log.Info("pending records selected",
		zap.Int("pending", sel.TotalPending),
		zap.Int("selected", len(sel.Items)),
		zap.Int("skipped", len(sel.Skipped)),
	)
	if len(sel.Items) == 0 {
		return nil
	}

	r.ctrl = checkpoint.New(checkpoint.Config{Cadence: p.cfg.CheckpointEvery, RunID: r.summary.RunID}, store, p.deps.Archive, r.log)
	r.sess, err = p.deps.Sessions.Authenticate(ctx, p.cfg.Credentials)
	if err != nil {
		return err
	}
	r.summary.State = enrich.StateAuthenticated
	defer func() { err = p.cleanup(ctx, r, err) }()

	p.shareCookies(ctx, r)
	r.summary.State = enrich.StateRunning
	return p.process(ctx, r, sel.Items)
}

func (p *Pipeline) process(ctx context.Context, r *run, items []enrich.WorkItem) error {
	total := len(items)
	streak := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted before record %d: %w", i+1, err)
		}
		attempted := i + 1
		log := r.log.With(zap.Int("row", item.Row), zap.String("nurc", item.ID))
		log.Info(fmt.Sprintf("processing %d of %d", attempted, total))

		res, err := p.deps.Extractor.Extract(ctx, r.sess.Driver(), item)
		switch {
		case err == nil:
			streak = 0
			if err := p.apply(ctx, r, log, item, res); err != nil {
				return err
			}
		case ctx.Err() != nil:
			return fmt.Errorf("run interrupted at record %d: %w", attempted, ctx.Err())
		case enrich.IsFatal(err):
			return err
		default:
			streak++
			r.summary.Failed++
			metrics.ObserveRecord(metrics.OutcomeFailed)
			log.Warn("record failed, left pending", zap.Error(err))
			if p.cfg.MaxConsecutiveFailures > 0 && streak >= p.cfg.MaxConsecutiveFailures {
				return fmt.Errorf("%d consecutive records failed: %w: %w", streak, enrich.ErrSession, err)
			}
		}

		if p.cfg.DryRun {
			continue
		}
		if _, err := r.ctrl.MaybeFlush(ctx, attempted); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) apply(ctx context.Context, r *run, log *zap.Logger, item enrich.WorkItem, res enrich.Result) error {
	if p.cfg.DryRun {
		r.summary.Processed++
		log.Info("dry run extraction",
			zap.String("motivos", res.Motivos),
			zap.String("motivos2", res.Motivos2),
			zap.String("seguimiento", res.Seguimiento),
			zap.Strings("links", res.Links),
		)
		return nil
	}
	var outcomes []enrich.Outcome
	if p.deps.Fetcher != nil {
		outcomes = p.deps.Fetcher.FetchAll(ctx, item.ID, res.Links)
	}
	for _, o := range outcomes {
		if o.OK() {
			r.summary.Attachments++
		} else {
			r.summary.AttachmentFailures++
		}
	}
	if err := r.ctrl.RecordUpdate(item.Row, res.Fields(p.cfg.Columns, p.deps.Clock.Now())); err != nil {
		return err
	}
	r.summary.Processed++
	metrics.ObserveRecord(metrics.OutcomeCompleted)
	log.Debug("record enriched", zap.Int("links", len(res.Links)))
	return nil
}

// shareCookies hands the browser session to the attachment downloader.
func (p *Pipeline) shareCookies(ctx context.Context, r *run) {
	if p.deps.Cookies == nil {
		return
	}
	cookies, err := r.sess.Driver().Cookies(ctx)
	if err != nil {
		r.log.Warn("session cookies unavailable for downloads", zap.Error(err))
		return
	}
	p.deps.Cookies.SetCookies(cookies)
}

// cleanup runs on every exit path once a session exists: final flush,
// diagnostic screenshot on failure, then session release.
func (p *Pipeline) cleanup(ctx context.Context, r *run, runErr error) error {
	bg := context.WithoutCancel(ctx)
	if !p.cfg.DryRun {
		if err := r.ctrl.FinalFlush(bg); err != nil {
			r.log.Error("final flush failed", zap.Error(err))
			runErr = errors.Join(runErr, err)
		}
	}
	r.summary.Flushes = r.ctrl.Flushes()
	if runErr != nil && enrich.IsFatal(runErr) && p.cfg.DiagnosticPath != "" {
		if err := r.sess.Driver().Screenshot(bg, p.cfg.DiagnosticPath); err != nil {
			r.log.Warn("diagnostic screenshot failed", zap.Error(err))
		} else {
			r.log.Info("diagnostic screenshot saved", zap.String("path", p.cfg.DiagnosticPath))
		}
	}
	if err := r.sess.Close(); err != nil {
		r.log.Warn("session release failed", zap.Error(err))
	}
	return runErr
}

func (p *Pipeline) logSummary(r *run, err error) {
	s := r.summary
	fields := []zap.Field{
		zap.String("state", string(s.State)),
		zap.Int("pending", s.Pending),
		zap.Int("selected", s.Selected),
		zap.Int("skipped", s.Skipped),
		zap.Int("processed", s.Processed),
		zap.Int("failed", s.Failed),
		zap.Int("attachments", s.Attachments),
		zap.Int("attachment_failures", s.AttachmentFailures),
		zap.Int("flushes", s.Flushes),
		zap.Duration("duration", s.Duration),
	}
	if err != nil {
		r.log.Error("run finished", append(fields, zap.Error(err))...)
		return
	}
	r.log.Info("run finished", fields...)
}
