package engine

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/acquire/config"
	"github.com/use-agent/acquire/models"
	"github.com/ysmood/gson"
)

// BrowserEngine renders pages in an isolated, ephemeral headless browser:
// one launch per call, torn down on every exit path.
type BrowserEngine struct {
	cfg config.BrowserConfig

	availOnce sync.Once
	avail     bool
}

// NewBrowserEngine creates a BrowserEngine.
func NewBrowserEngine(cfg config.BrowserConfig) *BrowserEngine {
	return &BrowserEngine{cfg: cfg}
}

func (e *BrowserEngine) Name() string { return "browser" }

// Available reports whether a browser binary is reachable. The probe result
// is cached for the process lifetime.
func (e *BrowserEngine) Available() bool {
	e.availOnce.Do(func() {
		if e.cfg.Bin != "" {
			_, err := os.Stat(e.cfg.Bin)
			e.avail = err == nil
			return
		}
		_, e.avail = launcher.LookPath()
	})
	return e.avail
}

func (e *BrowserEngine) FetchMany(ctx context.Context, targets []string, opts *BatchOptions) (*BatchResult, error) {
	return fetchMany(ctx, e, targets, opts)
}

func (e *BrowserEngine) Fetch(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	if e.cfg.Proxy != "" {
		l = l.Proxy(e.cfg.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-component-update"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to launch browser", err)
	}
	// The launched context is ephemeral: guarantee teardown no matter how
	// this call exits.
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to connect to browser", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewAcquireError(models.ErrKindConnection, "failed to open page", err)
	}

	result, err := fetchOnPage(ctx, page, req)
	if err != nil {
		return nil, err
	}
	result.Engine = e.Name()
	result.Elapsed = time.Since(start)
	return result, nil
}

// fetchOnPage drives a rod page through the stealth/cookie/navigation/wait/
// extract sequence. Shared with launch-mode session fetches. Stealth and
// header overrides must be installed before Navigate or they won't apply.
func fetchOnPage(ctx context.Context, page *rod.Page, req *Request) (*Result, error) {
	if req.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}.Call(page)
	}
	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}

	p := page.Context(ctx)

	// The idle waiter registers its listener before Navigate so no
	// in-flight request is missed.
	var waitIdle func()
	if req.Wait == models.WaitNetwork {
		waitIdle = p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	}

	if err := p.Navigate(req.URL); err != nil {
		return nil, models.Categorize(err, "navigation to target URL failed")
	}

	switch {
	case waitIdle != nil:
		waitIdle()
	case req.Wait == models.WaitDOM:
		if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("DOM did not stabilize, proceeding with current state", "error", err)
		}
	}

	if req.WaitSelector != "" {
		if err := p.WaitElementsMoreThan(req.WaitSelector, 0); err != nil {
			return nil, models.NewAcquireError(models.ErrKindElementNotFound, "no element matched "+req.WaitSelector, err)
		}
	}

	if req.Script != "" {
		if _, err := p.Eval(req.Script); err != nil {
			return nil, models.NewAcquireError(models.ErrKindEvaluation, "custom script failed", err)
		}
	}

	statusCode := evalStatusCode(p)

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, models.Categorize(err, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &Result{
		HTML:       rawHTML,
		Title:      title,
		StatusCode: statusCode,
		FinalURL:   finalURL,
	}, nil
}

// evalStatusCode reads the navigation's HTTP status from the performance
// timeline, which needs no protocol event listeners. Best effort.
func evalStatusCode(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
