package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/acquire/cdp"
	"github.com/use-agent/acquire/models"
)

// Mode selects how a session's browser is obtained.
type Mode string

const (
	// ModeLaunch starts an isolated persistent browser profile.
	ModeLaunch Mode = "launch"
	// ModeAttach connects to an already-running browser over the
	// remote-debugging protocol. The browser is never created or killed.
	ModeAttach Mode = "attach"
)

// Session is a long-lived browser context bound to one logical profile.
// At most one Session exists per profile; the Manager enforces that.
type Session struct {
	Profile   string
	Mode      Mode
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time

	// Launch mode.
	browser *rod.Browser
	lc      *launcher.Launcher
	page    *rod.Page

	// Attach mode: the owning transport handle.
	client *cdp.Client
}

// Touch refreshes the last-activity stamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the last-activity stamp.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Client returns the wire client of an attached session, nil otherwise.
func (s *Session) Client() *cdp.Client {
	return s.client
}

// Page returns the session's current page handle, recreating it if the
// previous one was closed. Launch mode only.
func (s *Session) Page() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "session has no launched browser", nil)
	}
	if s.page != nil {
		if _, err := s.page.Info(); err == nil {
			return s.page, nil
		}
		// Previous page handle is dead; replace it, keeping the Session.
		s.page = nil
	}

	pages, err := s.browser.Pages()
	if err == nil && len(pages) > 0 {
		s.page = pages.First()
		return s.page, nil
	}
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to open session page", err)
	}
	s.page = page
	return s.page, nil
}

// cookieJSON snapshots the session's cookies for persistence. Best effort:
// any failure yields an empty string.
func (s *Session) cookieJSON(ctx context.Context) string {
	switch s.Mode {
	case ModeAttach:
		if s.client == nil {
			return ""
		}
		cookies, err := s.client.GetCookies(ctx)
		if err != nil {
			return ""
		}
		return cookies.JSON("", "")
	case ModeLaunch:
		if s.browser == nil {
			return ""
		}
		cookies, err := s.browser.GetCookies()
		if err != nil {
			return ""
		}
		raw, err := json.Marshal(cookies)
		if err != nil {
			return ""
		}
		return string(raw)
	}
	return ""
}

// close releases the session's resources. Launch mode closes the persistent
// context and kills the launched process; attach mode only detaches the
// transport. Errors are swallowed so shutdown always completes.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.lc != nil {
		s.lc.Kill()
		s.lc = nil
	}
	s.page = nil
}
