package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/acquire/cdp"
	"github.com/use-agent/acquire/config"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/storage"
)

// Options select the creation mode for a session that does not exist yet.
type Options struct {
	Mode Mode

	// Endpoint is the remote-debugging endpoint for attach mode: an HTTP
	// base URL or a direct ws:// transport URL. Empty triggers local
	// discovery.
	Endpoint string
}

// Manager owns long-lived per-profile browser sessions with idle-based
// eviction. All map access goes through one mutex so concurrent creation
// for the same profile can never yield two sessions.
type Manager struct {
	cfg     config.SessionConfig
	browser config.BrowserConfig
	cdpOpts cdp.Options
	store   storage.Store

	mu       sync.Mutex
	sessions map[string]*Session

	done     chan struct{}
	stopOnce sync.Once

	// Creation seams, replaced by fakes in tests.
	launch func(ctx context.Context, profile string) (*Session, error)
	attach func(ctx context.Context, profile, endpoint string) (*Session, error)
}

// NewManager creates a session manager and starts the idle-eviction timer.
func NewManager(cfg config.SessionConfig, browser config.BrowserConfig, cdpOpts cdp.Options, store storage.Store) *Manager {
	m := &Manager{
		cfg:      cfg,
		browser:  browser,
		cdpOpts:  cdpOpts,
		store:    store,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	m.launch = m.launchSession
	m.attach = m.attachSession
	go m.evictLoop()
	return m
}

// GetOrCreate returns the session for the profile, refreshing its activity
// stamp, or creates one per the requested mode. Exactly one session exists
// per profile: the lock is held across creation, so a concurrent call for
// the same profile observes the first caller's session.
func (m *Manager) GetOrCreate(ctx context.Context, profile string, opts Options) (*Session, error) {
	if profile == "" {
		profile = "default"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[profile]; ok {
		s.Touch()
		return s, nil
	}

	var (
		s   *Session
		err error
	)
	switch opts.Mode {
	case ModeAttach:
		s, err = m.attach(ctx, profile, opts.Endpoint)
	default:
		s, err = m.launch(ctx, profile)
	}
	if err != nil {
		return nil, err
	}
	s.Touch()
	m.sessions[profile] = s
	slog.Info("session created", "profile", profile, "mode", string(s.Mode))
	return s, nil
}

// Get returns an existing session without creating one.
func (m *Manager) Get(profile string) (*Session, bool) {
	if profile == "" {
		profile = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[profile]
	return s, ok
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// launchSession starts an isolated persistent browser profile.
func (m *Manager) launchSession(_ context.Context, profile string) (*Session, error) {
	dir := filepath.Join(m.cfg.ProfileDir, sanitizeProfile(profile))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to create profile directory", err)
	}

	l := launcher.New().
		Headless(m.browser.Headless).
		NoSandbox(m.browser.NoSandbox).
		UserDataDir(dir)
	if m.browser.Bin != "" {
		l = l.Bin(m.browser.Bin)
	}
	if m.browser.Proxy != "" {
		l = l.Proxy(m.browser.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-component-update"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to launch profile browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to connect to launched browser", err)
	}

	return &Session{
		Profile:   profile,
		Mode:      ModeLaunch,
		CreatedAt: time.Now(),
		browser:   browser,
		lc:        l,
	}, nil
}

// attachSession connects to a running browser over the wire protocol and
// attaches to its first existing browsing context. It never starts a new
// top-level browser process.
func (m *Manager) attachSession(ctx context.Context, profile, endpoint string) (*Session, error) {
	base := cdp.ResolveEndpoint(endpoint)
	if base == "" {
		return nil, models.NewAcquireError(models.ErrKindConnection, "no remote-debugging endpoint configured or discovered", nil)
	}

	wsURL := cdp.WebSocketURLFor(ctx, base)
	transport, err := cdp.DialWebSocket(ctx, wsURL)
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to attach to browser", err)
	}
	client := cdp.NewClient(transport, m.cdpOpts)

	if err := client.EnablePage(ctx); err != nil {
		_ = client.Close()
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to enable page domain", err)
	}

	// Attached windows may report a degenerate size (e.g. a headless
	// window that was never shown); normalize so layouts render.
	if w, h, err := client.ViewportSize(ctx); err == nil && (w < 2 || h < 2) {
		if err := client.SetViewport(ctx, 1280, 800); err != nil {
			slog.Debug("session: viewport normalization failed", "profile", profile, "error", err)
		}
	}

	return &Session{
		Profile:   profile,
		Mode:      ModeAttach,
		CreatedAt: time.Now(),
		client:    client,
	}, nil
}

// Screenshot captures the whole page of the profile's session as PNG.
func (m *Manager) Screenshot(ctx context.Context, profile string) ([]byte, error) {
	return m.screenshot(ctx, profile, "")
}

// ScreenshotElement captures the first element matching the selector.
func (m *Manager) ScreenshotElement(ctx context.Context, profile, selector string) ([]byte, error) {
	return m.screenshot(ctx, profile, selector)
}

// TryScreenshot is the best-effort variant: any failure returns nil rather
// than an error.
func (m *Manager) TryScreenshot(ctx context.Context, profile string) []byte {
	shot, err := m.screenshot(ctx, profile, "")
	if err != nil {
		slog.Debug("session: best-effort screenshot failed", "profile", profile, "error", err)
		return nil
	}
	return shot
}

func (m *Manager) screenshot(ctx context.Context, profile, selector string) ([]byte, error) {
	s, ok := m.Get(profile)
	if !ok {
		return nil, models.NewAcquireError(models.ErrKindConnection, "no session for profile "+profile, nil)
	}
	s.Touch()

	if s.Mode == ModeAttach {
		if selector != "" {
			return s.Client().CaptureElementScreenshot(ctx, selector)
		}
		return s.Client().CaptureScreenshot(ctx)
	}

	page, err := s.Page()
	if err != nil {
		return nil, err
	}
	p := page.Context(ctx)
	if selector != "" {
		el, err := p.Element(selector)
		if err != nil {
			return nil, models.NewAcquireError(models.ErrKindElementNotFound, "no element matched "+selector, err)
		}
		return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	}
	return p.Screenshot(true, nil)
}

// evictLoop periodically closes sessions idle past the threshold.
func (m *Manager) evictLoop() {
	ticker := time.NewTicker(m.cfg.EvictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(time.Now())
		}
	}
}

// evictIdle closes every session whose last activity is strictly older than
// the idle threshold at now.
func (m *Manager) evictIdle(now time.Time) {
	m.mu.Lock()
	var idle []*Session
	for profile, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.cfg.IdleThreshold {
			delete(m.sessions, profile)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		slog.Info("session evicted: idle", "profile", s.Profile, "mode", string(s.Mode))
		m.persistCookies(s)
		s.close()
	}
}

// Stop closes every open session and halts the eviction timer. Per-session
// close failures are swallowed so shutdown always completes.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)

		m.mu.Lock()
		all := make([]*Session, 0, len(m.sessions))
		for profile, s := range m.sessions {
			delete(m.sessions, profile)
			all = append(all, s)
		}
		m.mu.Unlock()

		for _, s := range all {
			m.persistCookies(s)
			s.close()
		}
	})
}

// persistCookies snapshots session cookies into the artifact store.
// Best effort: failures are logged and dropped.
func (m *Manager) persistCookies(s *Session) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw := s.cookieJSON(ctx)
	if raw == "" {
		return
	}
	if err := m.store.Set("cookies/"+s.Profile, raw); err != nil {
		slog.Debug("session: cookie persistence failed", "profile", s.Profile, "error", err)
	}
}

// sanitizeProfile maps a profile name onto a safe directory name.
func sanitizeProfile(profile string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, profile)
}
