// Package downloader fetches attachment files over HTTP.
package downloader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

const defaultTimeout = 15 * time.Second

// Config controls the HTTP client.
type Config struct {
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	UserAgent          string
}

// Client downloads files with a shared resty client.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
	mu     sync.Mutex
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("downloader")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("user-agent", cfg.UserAgent)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled for attachment downloads")
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // operator opt-in
	}
	client.OnError(func(req *resty.Request, err error) {
		logger.Debug("request failed", zap.String("method", req.Method), zap.String("url", req.URL), zap.Error(err))
	})
	return &Client{http: client, logger: logger}
}

// SetCookies attaches browser session cookies to every later request.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.http.SetCookies(cookies)
}

// Download streams url into path through a temp file in the same directory.
// Non-2xx responses are errors and leave path untouched.
func (c *Client) Download(ctx context.Context, url, path string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	body := res.RawBody()
	defer body.Close() //nolint:errcheck // read-only body

	if !res.IsSuccess() {
		return fmt.Errorf("get %s: unexpected status %d", url, res.StatusCode())
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	c.logger.Debug("downloaded", zap.String("url", url), zap.String("path", path), zap.Int64("bytes", n))
	return nil
}

var (
	_ enrich.Downloader   = (*Client)(nil)
	_ enrich.CookieSetter = (*Client)(nil)
)
