package cdp

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/use-agent/acquire/models"
	"github.com/ysmood/gson"
)

// Navigate loads the given URL in the attached page. It returns when the
// navigation commits; use WaitNavigated to wait for load completion.
func (c *Client) Navigate(ctx context.Context, url string) error {
	res, err := c.Call(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return models.Categorize(err, "navigation failed")
	}
	if errText := gson.NewFrom(string(res)).Get("errorText").Str(); errText != "" {
		return models.NewAcquireError(models.ErrKindNavigation, errText, nil)
	}
	return nil
}

// Evaluate runs a JavaScript expression with return-by-value and returns the
// resulting value.
func (c *Client) Evaluate(ctx context.Context, expression string) (gson.JSON, error) {
	res, err := c.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return gson.New(nil), models.Categorize(err, "script evaluation failed")
	}
	v := gson.NewFrom(string(res))
	if v.Has("exceptionDetails") {
		return gson.New(nil), models.NewAcquireError(
			models.ErrKindEvaluation,
			v.Get("exceptionDetails").Get("text").Str(),
			nil,
		)
	}
	return v.Get("result").Get("value"), nil
}

// WaitNavigated polls document.readyState at a fixed interval until it
// reports "complete", racing the timeout. The poll loop also honors the
// caller's cancellation signal between iterations.
func (c *Client) WaitNavigated(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.Categorize(ctx.Err(), "navigation wait")
		case <-deadline.C:
			return models.NewAcquireError(models.ErrKindTimeout, "page did not finish loading", nil)
		default:
		}

		state, err := c.Evaluate(ctx, `document.readyState`)
		if err == nil && state.Str() == "complete" {
			return nil
		}

		select {
		case <-ctx.Done():
			return models.Categorize(ctx.Err(), "navigation wait")
		case <-deadline.C:
			return models.NewAcquireError(models.ErrKindTimeout, "page did not finish loading", nil)
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// WaitElement polls until an element matching the CSS selector exists,
// racing the timeout.
func (c *Client) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	expr := `document.querySelector(` + jsString(selector) + `) !== null`
	for {
		found, err := c.Evaluate(ctx, expr)
		if err == nil && found.Bool() {
			return nil
		}

		select {
		case <-ctx.Done():
			return models.Categorize(ctx.Err(), "element wait")
		case <-deadline.C:
			return models.NewAcquireError(models.ErrKindElementNotFound, "no element matched "+selector, nil)
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// EnablePage enables the Page domain on the attached target.
func (c *Client) EnablePage(ctx context.Context) error {
	_, err := c.Call(ctx, "Page.enable", nil)
	return err
}

// SetUserAgent overrides the user agent for subsequent requests.
func (c *Client) SetUserAgent(ctx context.Context, userAgent string) error {
	_, err := c.Call(ctx, "Network.setUserAgentOverride", map[string]any{
		"userAgent": userAgent,
	})
	return err
}

// SetCookie installs a cookie in the attached browser.
func (c *Client) SetCookie(ctx context.Context, cookie models.Cookie, pageURL string) error {
	params := map[string]any{
		"name":  cookie.Name,
		"value": cookie.Value,
	}
	if cookie.Domain != "" {
		params["domain"] = cookie.Domain
	} else {
		params["url"] = pageURL
	}
	if cookie.Path != "" {
		params["path"] = cookie.Path
	}
	_, err := c.Call(ctx, "Network.setCookie", params)
	return err
}

// GetCookies returns the cookies visible to the attached page as raw JSON.
func (c *Client) GetCookies(ctx context.Context) (gson.JSON, error) {
	res, err := c.Call(ctx, "Network.getCookies", nil)
	if err != nil {
		return gson.New(nil), err
	}
	return gson.NewFrom(string(res)).Get("cookies"), nil
}

// SetViewport overrides the device metrics of the attached page.
func (c *Client) SetViewport(ctx context.Context, width, height int) error {
	_, err := c.Call(ctx, "Emulation.setDeviceMetricsOverride", map[string]any{
		"width":             width,
		"height":            height,
		"deviceScaleFactor": 1,
		"mobile":            false,
	})
	return err
}

// ViewportSize returns the current innerWidth/innerHeight of the page.
func (c *Client) ViewportSize(ctx context.Context) (width, height int, err error) {
	v, err := c.Evaluate(ctx, `({w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return 0, 0, err
	}
	return v.Get("w").Int(), v.Get("h").Int(), nil
}

// HTML returns the full serialized document.
func (c *Client) HTML(ctx context.Context) (string, error) {
	v, err := c.Evaluate(ctx, `document.documentElement.outerHTML`)
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

// Title returns document.title, swallowing evaluation failures.
func (c *Client) Title(ctx context.Context) string {
	v, err := c.Evaluate(ctx, `document.title`)
	if err != nil {
		return ""
	}
	return v.Str()
}

// FinalURL returns window.location.href, swallowing evaluation failures.
func (c *Client) FinalURL(ctx context.Context) string {
	v, err := c.Evaluate(ctx, `window.location.href`)
	if err != nil {
		return ""
	}
	return v.Str()
}

// screenshotClip bounds an element screenshot.
type screenshotClip struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// CaptureScreenshot captures the visible page as PNG bytes.
func (c *Client) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return c.captureScreenshot(ctx, nil)
}

// CaptureElementScreenshot captures the bounding box of the first element
// matching the CSS selector as PNG bytes.
func (c *Client) CaptureElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	expr := `(() => {
		const el = document.querySelector(` + jsString(selector) + `);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`
	rect, err := c.Evaluate(ctx, expr)
	if err != nil {
		return nil, err
	}
	if rect.Nil() {
		return nil, models.NewAcquireError(models.ErrKindElementNotFound, "no element matched "+selector, nil)
	}
	return c.captureScreenshot(ctx, &screenshotClip{
		X:      rect.Get("x").Num(),
		Y:      rect.Get("y").Num(),
		Width:  rect.Get("width").Num(),
		Height: rect.Get("height").Num(),
		Scale:  1,
	})
}

func (c *Client) captureScreenshot(ctx context.Context, clip *screenshotClip) ([]byte, error) {
	params := map[string]any{"format": "png"}
	if clip != nil {
		params["clip"] = clip
	}
	res, err := c.Call(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(gson.NewFrom(string(res)).Get("data").Str())
}

// ClosePage closes the attached page target. Used only for pages the client
// created itself, never for the user's own tabs.
func (c *Client) ClosePage(ctx context.Context) error {
	_, err := c.Call(ctx, "Page.close", nil)
	return err
}

// jsString quotes a Go string as a JavaScript string literal.
func jsString(s string) string {
	return gson.New(s).JSON("", "")
}
