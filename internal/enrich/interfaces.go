package enrich

import (
	"context"
	"io"
	"net/http"
	"time"
)

// PageDriver controls one rendered browsing context.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs a JavaScript expression and decodes its JSON result into out.
	Evaluate(ctx context.Context, expr string, out any) error
	// WaitUntil polls a JavaScript predicate until it is truthy or timeout elapses.
	// A timeout is reported as false with a nil error.
	WaitUntil(ctx context.Context, predicate string, timeout, interval time.Duration) (bool, error)
	SendKeys(ctx context.Context, selector, value string) error
	Location(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Close() error
}

// DriverFactory opens a new browsing context.
type DriverFactory func(ctx context.Context) (PageDriver, error)

// RecordStore is an ordered table of text cells addressed by row and column name.
type RecordStore interface {
	Header() []string
	Len() int
	// Value returns the cell text and whether the column exists.
	Value(row int, column string) (string, bool)
	Set(row int, column, value string) error
	// EnsureColumn appends an empty column when name is absent.
	EnsureColumn(name string)
	Save() error
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	Download(ctx context.Context, url, path string) error
}

// CookieSetter is implemented by downloaders that can reuse the browser session.
type CookieSetter interface {
	SetCookies(cookies []*http.Cookie)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Hasher computes digests used for fallback file names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
