// Package attachment downloads the files linked from a record's detail view.
package attachment

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
	"github.com/JakeFAU/pqrd-enricher/internal/metrics"
)

const (
	defaultConcurrency = 4
	maxNameLength      = 180
)

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

// Config controls where attachments land.
type Config struct {
	Dir         string
	Concurrency int
	// ArchivePrefix is the object prefix used when mirroring to a BlobStore.
	ArchivePrefix string
}

// Fetcher stores every link of a record below Dir/{id}.
type Fetcher struct {
	cfg        Config
	downloader enrich.Downloader
	hasher     enrich.Hasher
	archive    enrich.BlobStore
	logger     *zap.Logger
}

// NewFetcher constructs a Fetcher. archive may be nil.
func NewFetcher(cfg Config, downloader enrich.Downloader, hasher enrich.Hasher, archive enrich.BlobStore, logger *zap.Logger) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "attachments"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:        cfg,
		downloader: downloader,
		hasher:     hasher,
		archive:    archive,
		logger:     logger.Named("attachment"),
	}
}

// FetchAll downloads links in parallel. The outcomes share the order of links;
// a failed link never prevents the others from being fetched.
func (f *Fetcher) FetchAll(ctx context.Context, id string, links []string) []enrich.Outcome {
	out := make([]enrich.Outcome, len(links))
	if len(links) == 0 {
		return out
	}
	dir := filepath.Join(f.cfg.Dir, SafeName(id))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		for i, link := range links {
			out[i] = enrich.Outcome{Link: link, Err: fmt.Errorf("create %s: %w: %w", dir, enrich.ErrAttachment, err)}
			metrics.ObserveAttachment(false)
		}
		f.logger.Error("attachment directory unavailable", zap.String("nurc", id), zap.Error(err))
		return out
	}

	names := f.fileNames(links)
	var g errgroup.Group
	g.SetLimit(f.cfg.Concurrency)
	for i, link := range links {
		g.Go(func() error {
			out[i] = f.fetch(ctx, id, link, filepath.Join(dir, names[i]))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (f *Fetcher) fetch(ctx context.Context, id, link, dest string) enrich.Outcome {
	o := enrich.Outcome{Link: link, Path: dest}
	if err := f.downloader.Download(ctx, link, dest); err != nil {
		o.Err = fmt.Errorf("download %s: %w: %w", link, enrich.ErrAttachment, err)
		f.logger.Warn("attachment failed", zap.String("nurc", id), zap.String("url", link), zap.Error(err))
		metrics.ObserveAttachment(false)
		return o
	}
	metrics.ObserveAttachment(true)
	if f.archive != nil {
		uri, err := f.mirror(ctx, id, dest)
		if err != nil {
			f.logger.Warn("attachment mirror failed", zap.String("nurc", id), zap.String("path", dest), zap.Error(err))
		}
		o.URI = uri
	}
	return o
}

func (f *Fetcher) mirror(ctx context.Context, id, file string) (string, error) {
	fh, err := os.Open(file) // #nosec G304 -- path built from the attachment directory.
	if err != nil {
		return "", err
	}
	defer fh.Close() //nolint:errcheck // read-only
	key := path.Join(f.cfg.ArchivePrefix, SafeName(id), filepath.Base(file))
	return f.archive.PutObject(ctx, key, mime.TypeByExtension(filepath.Ext(file)), fh)
}

// fileNames derives one local name per link, suffixing collisions.
func (f *Fetcher) fileNames(links []string) []string {
	names := make([]string, len(links))
	used := make(map[string]int, len(links))
	for i, link := range links {
		name := FileName(link)
		if name == "" {
			name = f.fallbackName(link)
		}
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		used[name]++
		names[i] = name
	}
	return names
}

func (f *Fetcher) fallbackName(link string) string {
	if f.hasher != nil {
		if digest, err := f.hasher.Hash([]byte(link)); err == nil && digest != "" {
			return digest
		}
	}
	return "attachment"
}

// FileName returns the sanitized, unescaped final path segment of link,
// or "" when the URL carries no usable name.
func FileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	seg := path.Base(u.EscapedPath())
	if seg == "/" || seg == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	return SafeName(seg)
}

// SafeName strips path separators and unusual characters from name.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(strings.TrimSpace(name), ".")
	if len(name) > maxNameLength {
		name = strings.ToValidUTF8(name[:maxNameLength], "")
	}
	return name
}
