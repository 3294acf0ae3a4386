// Package browser owns the shared headless Chrome process: lazily launched
// on first demand, torn down after an idle period with no sessions, and
// transparently re-created by the next acquisition. Every scrape attempt
// runs inside its own Session and must close it on every exit path.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// ErrBinaryNotFound means no compatible browser binary could be located.
// Fatal environment misconfiguration — never retried, surfaced distinctly
// from scrape failures.
var ErrBinaryNotFound = errors.New("browser: no compatible browser binary found")

// ErrClosed is returned by Acquire after the manager has been shut down.
var ErrClosed = errors.New("browser: manager is closed")

// Config configures the Manager.
type Config struct {
	// Bin overrides browser binary discovery. Empty = search well-known
	// locations via the launcher.
	Bin string

	// IdleShutdown is how long the browser process survives with no
	// active sessions before being torn down. Default: 2m.
	IdleShutdown time.Duration

	// BlockedResources lists resource types blocked per session to cut
	// load time. Default: images, media, fonts. Markup and styling are
	// never blocked — extraction needs them.
	BlockedResources []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.IdleShutdown <= 0 {
		c.IdleShutdown = 2 * time.Minute
	}
	if c.BlockedResources == nil {
		c.BlockedResources = []string{"images", "media", "fonts"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// process bundles a connected browser with its teardown.
type process struct {
	browser *rod.Browser
	stop    func()
}

// Manager manages the singleton browser process and hands out Sessions.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	proc   *process
	idle   *time.Timer
	active int
	closed bool

	// Injection points for tests; production values set by NewManager.
	launch  func(ctx context.Context, bin string) (*process, error)
	newPage func(b *rod.Browser) (*rod.Page, error)
}

// NewManager creates a Manager. The browser is not launched until the
// first Acquire.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:     cfg,
		launch:  launchProcess,
		newPage: func(b *rod.Browser) (*rod.Page, error) { return stealth.Page(b) },
	}
}

// BinaryPath resolves the browser binary without launching anything.
// Returns ErrBinaryNotFound when discovery fails and no override is set.
func (m *Manager) BinaryPath() (string, error) {
	if m.cfg.Bin != "" {
		return m.cfg.Bin, nil
	}
	if path, has := launcher.LookPath(); has {
		return path, nil
	}
	return "", ErrBinaryNotFound
}

// Session is an isolated page owned by exactly one in-flight scrape
// attempt. Never shared; destroyed unconditionally via Close.
type Session struct {
	Page *rod.Page

	mgr  *Manager
	once sync.Once
}

// Acquire returns a Session backed by the shared browser, launching the
// process if it is not running. The idle timer is disarmed while any
// session is active.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	bin, err := m.BinaryPath()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
	if m.proc == nil {
		p, err := m.launch(ctx, bin)
		if err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		m.proc = p
		m.cfg.Logger.Info("browser: launched", "bin", bin)
	}
	b := m.proc.browser
	m.active++
	m.mu.Unlock()

	page, err := m.newPage(b)
	if err != nil {
		m.release()
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	if page != nil && len(m.cfg.BlockedResources) > 0 {
		blockResources(page, m.cfg.BlockedResources, m.cfg.Logger)
	}
	return &Session{Page: page, mgr: m}, nil
}

// Close destroys the session's page and returns the browser to idle
// bookkeeping. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.Page != nil {
			if err := s.Page.Close(); err != nil {
				s.mgr.cfg.Logger.Debug("browser: page close", "error", err)
			}
		}
		s.mgr.release()
	})
}

func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if m.active == 0 && !m.closed && m.proc != nil {
		if m.idle != nil {
			m.idle.Stop()
		}
		m.idle = time.AfterFunc(m.cfg.IdleShutdown, m.idleShutdown)
	}
}

// idleShutdown fires from the timer. A session acquired between expiry and
// lock acquisition wins: the browser stays up.
func (m *Manager) idleShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 || m.proc == nil || m.closed {
		return
	}
	m.cfg.Logger.Info("browser: idle shutdown", "after", m.cfg.IdleShutdown)
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	if m.proc != nil {
		m.proc.stop()
		m.proc = nil
	}
}

// Close tears the browser down. The manager cannot be reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
	m.teardownLocked()
}

// launchProcess starts Chrome and connects to it. Launch-and-connect is
// retried once: a cold start occasionally loses the devtools socket race.
func launchProcess(ctx context.Context, bin string) (*process, error) {
	var p *process
	err := retry.Do(
		func() error {
			l := launcher.New().
				Bin(bin).
				Headless(true).
				Set("disable-blink-features", "AutomationControlled")
			u, err := l.Launch()
			if err != nil {
				return err
			}
			b := rod.New().ControlURL(u)
			if err := b.Connect(); err != nil {
				l.Cleanup()
				return err
			}
			p = &process{
				browser: b,
				stop: func() {
					_ = b.Close()
					l.Cleanup()
				},
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
