// Package fake provides a scriptable enrich.PageDriver for tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

// Driver records every call and delegates behavior to optional hooks.
// Results returned by EvaluateFunc are JSON round-tripped into the caller's out value.
type Driver struct {
	NavigateFunc func(url string) error
	EvaluateFunc func(location, expr string) (any, error)
	WaitFunc     func(location, predicate string) (bool, error)
	SendKeysFunc func(selector, value string) error
	CookieJar    []*http.Cookie

	mu          sync.Mutex
	location    string
	navigations []string
	typed       map[string]string
	screenshots []string
	closed      int
}

// NewDriver returns a Driver with no hooks; every call succeeds.
func NewDriver() *Driver {
	return &Driver{typed: map[string]string{}}
}

// Factory returns an enrich.DriverFactory handing out d, counting calls in opened.
func (d *Driver) Factory(opened *int) enrich.DriverFactory {
	return func(context.Context) (enrich.PageDriver, error) {
		if opened != nil {
			*opened++
		}
		return d, nil
	}
}

// Navigate records url and makes it the current location.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.navigations = append(d.navigations, url)
	d.mu.Unlock()
	if d.NavigateFunc != nil {
		if err := d.NavigateFunc(url); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.location = url
	d.mu.Unlock()
	return nil
}

// Evaluate delegates to EvaluateFunc; without one the result is left untouched.
func (d *Driver) Evaluate(ctx context.Context, expr string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.EvaluateFunc == nil {
		return nil
	}
	v, err := d.EvaluateFunc(d.currentLocation(), expr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal fake result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// WaitUntil delegates to WaitFunc; without one the predicate holds immediately.
func (d *Driver) WaitUntil(ctx context.Context, predicate string, _, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if d.WaitFunc == nil {
		return true, nil
	}
	return d.WaitFunc(d.currentLocation(), predicate)
}

// SendKeys records the typed value per selector.
func (d *Driver) SendKeys(_ context.Context, selector, value string) error {
	if d.SendKeysFunc != nil {
		if err := d.SendKeysFunc(selector, value); err != nil {
			return err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.typed == nil {
		d.typed = map[string]string{}
	}
	d.typed[selector] = value
	return nil
}

// SetLocation moves the fake tab without recording a navigation.
func (d *Driver) SetLocation(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.location = url
}

// Location returns the current location.
func (d *Driver) Location(context.Context) (string, error) {
	return d.currentLocation(), nil
}

// Screenshot writes a placeholder file and records path.
func (d *Driver) Screenshot(_ context.Context, path string) error {
	d.mu.Lock()
	d.screenshots = append(d.screenshots, path)
	d.mu.Unlock()
	if err := os.WriteFile(path, []byte("fake-png"), 0o600); err != nil {
		return fmt.Errorf("write fake screenshot: %w", err)
	}
	return nil
}

// Cookies returns CookieJar.
func (d *Driver) Cookies(context.Context) ([]*http.Cookie, error) {
	return d.CookieJar, nil
}

// Close counts calls.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// Navigations returns every URL passed to Navigate.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Typed returns the value last typed into selector.
func (d *Driver) Typed(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed[selector]
}

// Screenshots returns the paths of captured screenshots.
func (d *Driver) Screenshots() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.screenshots...)
}

// Closed returns how many times Close was called.
func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) currentLocation() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location
}

var _ enrich.PageDriver = (*Driver)(nil)
