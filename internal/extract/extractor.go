// Package extract reads the enrichment fields from a record's detail view.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/metrics"
)

// Defaults for the detail view.
const (
	DefaultDetailPath        = "/gestion/supervisar/{id}"
	DefaultAttachmentPattern = "anex-download"
	DefaultSettleTimeout     = 6 * time.Second
	DefaultPollInterval      = 250 * time.Millisecond

	idPlaceholder = "{id}"
	emptyMarker   = "No hay datos"
	rowSeparator  = "\n---\n"
)

// Pacer gates navigations.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls detail view addressing and the render wait.
type Config struct {
	BaseURL string
	// DetailPath is appended to BaseURL; {id} is replaced by the escaped identifier.
	DetailPath        string
	AttachmentPattern string
	SettleTimeout     time.Duration
	PollInterval      time.Duration
}

// Extractor turns one work item into a Result.
type Extractor struct {
	cfg    Config
	pacer  Pacer
	logger *zap.Logger
}

// New constructs an Extractor. pacer may be nil.
func New(cfg Config, pacer Pacer, logger *zap.Logger) *Extractor {
	if cfg.DetailPath == "" {
		cfg.DetailPath = DefaultDetailPath
	}
	if cfg.AttachmentPattern == "" {
		cfg.AttachmentPattern = DefaultAttachmentPattern
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, pacer: pacer, logger: logger.Named("extract")}
}

// DetailURL returns the detail view address for id.
func (e *Extractor) DetailURL(id string) string {
	return e.cfg.BaseURL + strings.ReplaceAll(e.cfg.DetailPath, idPlaceholder, url.PathEscape(id))
}

// Extract navigates to the item's detail view and reads its fields.
// Driver failures wrap enrich.ErrExtraction; a dead browser wraps enrich.ErrSession.
func (e *Extractor) Extract(ctx context.Context, driver enrich.PageDriver, item enrich.WorkItem) (enrich.Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveExtraction(time.Since(start)) }()

	target := e.DetailURL(item.ID)
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx, target); err != nil {
			return enrich.Result{}, err
		}
	}
	if err := driver.Navigate(ctx, target); err != nil {
		return enrich.Result{}, wrap(ctx, "navigate", err)
	}
	ready, err := driver.WaitUntil(ctx, ReadyQuery, e.cfg.SettleTimeout, e.cfg.PollInterval)
	if err != nil {
		return enrich.Result{}, wrap(ctx, "wait for detail view", err)
	}
	if !ready {
		e.logger.Debug("detail view settled without content", zap.String("nurc", item.ID))
	}

	var res enrich.Result
	if err := driver.Evaluate(ctx, MotivosQuery, &res.Motivos); err != nil {
		return enrich.Result{}, wrap(ctx, "motivos", err)
	}
	if err := driver.Evaluate(ctx, Motivos2Query, &res.Motivos2); err != nil {
		return enrich.Result{}, wrap(ctx, "motivos2", err)
	}
	var rows [][]string
	if err := driver.Evaluate(ctx, RowsQuery, &rows); err != nil {
		return enrich.Result{}, wrap(ctx, "seguimiento", err)
	}
	res.Seguimiento = FormatSeguimiento(rows)
	var anchors []Anchor
	if err := driver.Evaluate(ctx, LinksQuery, &anchors); err != nil {
		return enrich.Result{}, wrap(ctx, "links", err)
	}
	res.Links = SelectLinks(anchors, e.cfg.AttachmentPattern)
	res.Motivos = strings.TrimSpace(res.Motivos)
	res.Motivos2 = strings.TrimSpace(res.Motivos2)
	return res, nil
}

func wrap(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil || errors.Is(err, enrich.ErrSession) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, enrich.ErrExtraction, err)
}

// FormatSeguimiento renders the tracking table rows as "[date] actor: note"
// entries. A first row reporting no data yields an empty block; rows with
// fewer than four cells are ignored.
func FormatSeguimiento(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	if strings.Contains(strings.Join(rows[0], " "), emptyMarker) {
		return ""
	}
	entries := make([]string, 0, len(rows))
	for _, cells := range rows {
		if len(cells) < 4 {
			continue
		}
		entries = append(entries, fmt.Sprintf("[%s] %s: %s",
			strings.TrimSpace(cells[0]), strings.TrimSpace(cells[2]), strings.TrimSpace(cells[3])))
	}
	return strings.Join(entries, rowSeparator)
}

// Anchor is one link found on the detail view.
type Anchor struct {
	Href string `json:"href"`
	// Listed marks anchors inside the attachment name column.
	Listed bool `json:"listed"`
}

// SelectLinks keeps listed anchors and anchors whose href contains pattern,
// dropping duplicates and keeping first-seen order.
func SelectLinks(anchors []Anchor, pattern string) []string {
	seen := make(map[string]struct{}, len(anchors))
	var out []string
	for _, a := range anchors {
		href := strings.TrimSpace(a.Href)
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		if !a.Listed && (pattern == "" || !strings.Contains(href, pattern)) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	return out
}
