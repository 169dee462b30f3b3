package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// TargetInfo describes one debuggable browsing context, as reported by the
// browser's /json/list endpoint.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

var endpointHTTPClient = &http.Client{Timeout: 5 * time.Second}

// ResolveEndpoint turns a remote-debugging endpoint into a dialable HTTP
// base URL. Direct ws:// URLs and http:// bases pass through; an empty
// endpoint triggers DevToolsActivePort discovery against common local
// browser installations. Resolution failures fall back to the given value
// verbatim.
func ResolveEndpoint(endpoint string) string {
	if endpoint != "" {
		return endpoint
	}
	if discovered, ok := DiscoverLocalEndpoint(); ok {
		return discovered
	}
	return endpoint
}

// FirstPageTarget returns the first existing page-type browsing context at
// the given HTTP debugging base. It never creates a new target.
func FirstPageTarget(ctx context.Context, httpBase string) (*TargetInfo, error) {
	targets, err := listTargets(ctx, httpBase)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		if targets[i].Type == "page" && targets[i].WebSocketDebuggerURL != "" {
			return &targets[i], nil
		}
	}
	return nil, fmt.Errorf("cdp: no debuggable page target at %s", httpBase)
}

// WebSocketURLFor resolves the transport URL for an endpoint. A ws:// or
// wss:// endpoint is used verbatim. An http:// base is resolved to the first
// page target's websocket URL; if that fails, the endpoint is returned
// verbatim so the caller's dial surfaces the real error.
func WebSocketURLFor(ctx context.Context, endpoint string) string {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint
	}
	target, err := FirstPageTarget(ctx, endpoint)
	if err != nil {
		slog.Debug("cdp: endpoint resolution failed, using verbatim", "endpoint", endpoint, "error", err)
		return endpoint
	}
	return target.WebSocketDebuggerURL
}

func listTargets(ctx context.Context, httpBase string) ([]TargetInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(httpBase, "/")+"/json/list", nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: build target list request: %w", err)
	}
	resp, err := endpointHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdp: list targets: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cdp: read target list: %w", err)
	}
	var targets []TargetInfo
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("cdp: parse target list: %w", err)
	}
	return targets, nil
}

// Probe reports whether an HTTP debugging base answers /json/version.
func Probe(ctx context.Context, httpBase string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(httpBase, "/")+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := endpointHTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// DiscoverLocalEndpoint scans DevToolsActivePort files under the common
// local browser profile directories and returns the debugging base URL of
// the first one found.
func DiscoverLocalEndpoint() (string, bool) {
	for _, dir := range profileDirs() {
		port, ok := readActivePort(filepath.Join(dir, "DevToolsActivePort"))
		if ok {
			return "http://127.0.0.1:" + strconv.Itoa(port), true
		}
	}
	return "", false
}

// readActivePort parses a DevToolsActivePort file, whose first line is the
// listening port number.
func readActivePort(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	port, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || port <= 0 {
		return 0, false
	}
	return port, true
}

// profileDirs lists profile locations per common installation variant.
func profileDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		base := filepath.Join(home, "Library", "Application Support")
		return []string{
			filepath.Join(base, "Google", "Chrome"),
			filepath.Join(base, "Google", "Chrome Beta"),
			filepath.Join(base, "Google", "Chrome Canary"),
			filepath.Join(base, "Chromium"),
			filepath.Join(base, "Microsoft Edge"),
		}
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return nil
		}
		return []string{
			filepath.Join(base, "Google", "Chrome", "User Data"),
			filepath.Join(base, "Chromium", "User Data"),
			filepath.Join(base, "Microsoft", "Edge", "User Data"),
		}
	default:
		base := filepath.Join(home, ".config")
		return []string{
			filepath.Join(base, "google-chrome"),
			filepath.Join(base, "google-chrome-beta"),
			filepath.Join(base, "google-chrome-unstable"),
			filepath.Join(base, "chromium"),
			filepath.Join(base, "microsoft-edge"),
		}
	}
}
