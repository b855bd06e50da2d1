// Package session acquires an authenticated portal browsing context.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pqrd-enricher/internal/enrich"
)

// Login form selectors rendered by the portal.
const (
	UserSelector     = "#user"
	PasswordSelector = "#password"
	SubmitLabel      = "INGRESAR"
)

const (
	defaultLoginPath    = "/login"
	defaultLandingPath  = "/inicio"
	defaultLoginTimeout = 20 * time.Second
	defaultPollInterval = 250 * time.Millisecond
)

// clickSubmit presses the first button whose label contains SubmitLabel.
var clickSubmit = fmt.Sprintf(`(() => {
  const btn = Array.from(document.querySelectorAll('button')).find(b => (b.innerText || '').includes(%q));
  if (!btn) { return false; }
  btn.click();
  return true;
})()`, SubmitLabel)

// Config controls where and how long the login flow runs.
type Config struct {
	BaseURL      string
	LoginPath    string
	LandingPath  string
	LoginTimeout time.Duration
	PollInterval time.Duration
	// DiagnosticPath receives a screenshot when login fails. Empty disables it.
	DiagnosticPath string
}

// Manager opens drivers and logs them in.
type Manager struct {
	cfg     Config
	factory enrich.DriverFactory
	logger  *zap.Logger
}

// NewManager constructs a Manager, applying defaults for unset fields.
func NewManager(cfg Config, factory enrich.DriverFactory, logger *zap.Logger) *Manager {
	if cfg.LoginPath == "" {
		cfg.LoginPath = defaultLoginPath
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = defaultLandingPath
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = defaultLoginTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, factory: factory, logger: logger.Named("session")}
}

// Authenticate validates creds, opens a driver and completes the login form.
// Missing credentials fail before the driver factory is called.
func (m *Manager) Authenticate(ctx context.Context, creds enrich.Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if m.factory == nil {
		return nil, fmt.Errorf("no page driver factory configured: %w", enrich.ErrConfiguration)
	}
	driver, err := m.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page driver: %w: %w", enrich.ErrSession, err)
	}
	if err := m.login(ctx, driver, creds); err != nil {
		m.diagnose(ctx, driver)
		if cerr := driver.Close(); cerr != nil {
			m.logger.Warn("close driver after failed login", zap.Error(cerr))
		}
		return nil, err
	}
	m.logger.Info("authenticated", zap.String("user", creds.Username))
	return &Session{driver: driver, logger: m.logger}, nil
}

func (m *Manager) login(ctx context.Context, driver enrich.PageDriver, creds enrich.Credentials) error {
	loginURL := m.cfg.BaseURL + m.cfg.LoginPath
	m.logger.Debug("opening login page", zap.String("url", loginURL))
	if err := driver.Navigate(ctx, loginURL); err != nil {
		return authError("navigate to login page", err)
	}
	ready, err := driver.WaitUntil(ctx, fmt.Sprintf("document.querySelector(%q)", UserSelector), m.cfg.LoginTimeout, m.cfg.PollInterval)
	if err != nil {
		return authError("wait for login form", err)
	}
	if !ready {
		return fmt.Errorf("login form not rendered within %s: %w", m.cfg.LoginTimeout, enrich.ErrAuthentication)
	}
	if err := driver.SendKeys(ctx, UserSelector, creds.Username); err != nil {
		return authError("fill username", err)
	}
	if err := driver.SendKeys(ctx, PasswordSelector, creds.Password); err != nil {
		return authError("fill password", err)
	}
	var clicked bool
	if err := driver.Evaluate(ctx, clickSubmit, &clicked); err != nil {
		return authError("submit login form", err)
	}
	if !clicked {
		return fmt.Errorf("login button %q not found: %w", SubmitLabel, enrich.ErrAuthentication)
	}

	landed, err := enrich.Poll(ctx, m.cfg.LoginTimeout, m.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		loc, err := driver.Location(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(loc, m.cfg.LandingPath), nil
	})
	if err != nil {
		return authError("wait for landing page", err)
	}
	if !landed {
		return fmt.Errorf("landing page %s not reached within %s: %w", m.cfg.LandingPath, m.cfg.LoginTimeout, enrich.ErrAuthentication)
	}
	return nil
}

func (m *Manager) diagnose(ctx context.Context, driver enrich.PageDriver) {
	if m.cfg.DiagnosticPath == "" {
		return
	}
	if err := driver.Screenshot(context.WithoutCancel(ctx), m.cfg.DiagnosticPath); err != nil {
		m.logger.Warn("login diagnostic screenshot failed", zap.Error(err))
		return
	}
	m.logger.Info("login diagnostic screenshot saved", zap.String("path", m.cfg.DiagnosticPath))
}

func authError(step string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, enrich.ErrAuthentication, err)
}

// Session is an authenticated browsing context. It owns its driver.
type Session struct {
	driver    enrich.PageDriver
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// Driver returns the authenticated page driver.
func (s *Session) Driver() enrich.PageDriver {
	return s.driver
}

// Close releases the driver. Subsequent calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.driver.Close()
		s.logger.Debug("session released")
	})
	return s.closeErr
}
