package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/acquire/cdp"
	"github.com/use-agent/acquire/models"
	"github.com/use-agent/acquire/session"
)

// AttachedEngine fetches through a long-lived session attached to an
// already-running browser over the remote-debugging protocol. It never
// creates or destroys the user's browser; it only attaches and detaches.
type AttachedEngine struct {
	sessions *session.Manager
	endpoint string

	availOnce sync.Once
	avail     bool
}

// NewAttachedEngine creates an AttachedEngine. endpoint may be an HTTP
// debugging base, a direct ws:// URL, or empty for local discovery.
func NewAttachedEngine(sessions *session.Manager, endpoint string) *AttachedEngine {
	return &AttachedEngine{sessions: sessions, endpoint: endpoint}
}

func (e *AttachedEngine) Name() string { return "attached" }

// Available probes the remote-debugging endpoint once per process.
func (e *AttachedEngine) Available() bool {
	e.availOnce.Do(func() {
		base := cdp.ResolveEndpoint(e.endpoint)
		if base == "" {
			return
		}
		if strings.HasPrefix(base, "ws://") || strings.HasPrefix(base, "wss://") {
			// Direct transport URLs can only be verified by dialing;
			// assume reachable and let Fetch surface the real error.
			e.avail = true
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		e.avail = cdp.Probe(ctx, base)
	})
	return e.avail
}

func (e *AttachedEngine) FetchMany(ctx context.Context, targets []string, opts *BatchOptions) (*BatchResult, error) {
	return fetchMany(ctx, e, targets, opts)
}

func (e *AttachedEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := e.sessions.GetOrCreate(ctx, req.Profile, session.Options{
		Mode:     session.ModeAttach,
		Endpoint: e.endpoint,
	})
	if err != nil {
		return nil, err
	}
	s.Touch()

	// The profile may already own a launch-mode session; drive its page
	// directly instead of attaching a second browser.
	if s.Mode == session.ModeLaunch {
		page, err := s.Page()
		if err != nil {
			return nil, err
		}
		result, err := fetchOnPage(ctx, page, req)
		if err != nil {
			return nil, err
		}
		result.Engine = e.Name()
		result.Elapsed = time.Since(start)
		return result, nil
	}

	client := s.Client()
	if client == nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "session has no wire client", nil)
	}

	if ua, ok := req.Headers["User-Agent"]; ok {
		if err := client.SetUserAgent(ctx, ua); err != nil {
			return nil, err
		}
	}
	for _, cookie := range req.Cookies {
		if err := client.SetCookie(ctx, cookie, req.URL); err != nil {
			return nil, err
		}
	}

	if err := client.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	if req.Wait != models.WaitNone {
		if err := client.WaitNavigated(ctx, timeout); err != nil {
			return nil, err
		}
	}
	if req.WaitSelector != "" {
		if err := client.WaitElement(ctx, req.WaitSelector, timeout); err != nil {
			return nil, err
		}
	}
	if req.Script != "" {
		if _, err := client.Evaluate(ctx, req.Script); err != nil {
			return nil, err
		}
	}

	htmlStr, err := client.HTML(ctx)
	if err != nil {
		return nil, err
	}

	statusCode := 0
	if v, err := client.Evaluate(ctx, `(() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	})()`); err == nil {
		statusCode = v.Int()
	}

	finalURL := client.FinalURL(ctx)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       htmlStr,
		Title:      client.Title(ctx),
		StatusCode: statusCode,
		FinalURL:   finalURL,
		Engine:     e.Name(),
		Elapsed:    time.Since(start),
	}, nil
}
