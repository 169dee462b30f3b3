package cdp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func targetListServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/json/list":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		case "/json/version":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"Browser":"Chrome/131.0.0.0"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFirstPageTargetSkipsNonPages(t *testing.T) {
	srv := targetListServer(t, `[
		{"id":"1","type":"background_page","webSocketDebuggerUrl":"ws://x/1"},
		{"id":"2","type":"page","webSocketDebuggerUrl":""},
		{"id":"3","type":"page","title":"real tab","webSocketDebuggerUrl":"ws://x/3"},
		{"id":"4","type":"page","webSocketDebuggerUrl":"ws://x/4"}
	]`)

	target, err := FirstPageTarget(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FirstPageTarget: %v", err)
	}
	if target.ID != "3" {
		t.Errorf("target.ID = %q, want the first page with a transport URL", target.ID)
	}
}

func TestFirstPageTargetNoPages(t *testing.T) {
	srv := targetListServer(t, `[{"id":"1","type":"service_worker","webSocketDebuggerUrl":"ws://x/1"}]`)
	if _, err := FirstPageTarget(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error when no page target exists")
	}
}

func TestWebSocketURLForPassesThroughDirectURLs(t *testing.T) {
	for _, u := range []string{"ws://127.0.0.1:9222/devtools/page/abc", "wss://remote/devtools/page/abc"} {
		if got := WebSocketURLFor(context.Background(), u); got != u {
			t.Errorf("WebSocketURLFor(%q) = %q, want verbatim", u, got)
		}
	}
}

func TestWebSocketURLForResolvesHTTPBase(t *testing.T) {
	srv := targetListServer(t, `[{"id":"1","type":"page","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/1"}]`)
	got := WebSocketURLFor(context.Background(), srv.URL)
	if got != "ws://127.0.0.1:9222/devtools/page/1" {
		t.Errorf("WebSocketURLFor = %q", got)
	}
}

func TestWebSocketURLForFallsBackVerbatim(t *testing.T) {
	// Nothing listens here; resolution fails and the base comes back as-is.
	base := "http://127.0.0.1:1"
	if got := WebSocketURLFor(context.Background(), base); got != base {
		t.Errorf("WebSocketURLFor = %q, want verbatim fallback", got)
	}
}

func TestProbe(t *testing.T) {
	srv := targetListServer(t, `[]`)
	if !Probe(context.Background(), srv.URL) {
		t.Error("Probe = false against a live endpoint")
	}
	if Probe(context.Background(), "http://127.0.0.1:1") {
		t.Error("Probe = true against a dead endpoint")
	}
}

func TestReadActivePort(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name     string
		path     string
		wantPort int
		wantOK   bool
	}{
		{"port and path", write("a", "9222\n/devtools/browser/uuid"), 9222, true},
		{"port only", write("b", "9333"), 9333, true},
		{"padded", write("c", "  9444  \n"), 9444, true},
		{"garbage", write("d", "not-a-port"), 0, false},
		{"zero", write("e", "0\n/x"), 0, false},
		{"missing file", filepath.Join(dir, "nope"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ok := readActivePort(tt.path)
			if port != tt.wantPort || ok != tt.wantOK {
				t.Errorf("readActivePort = %d, %v; want %d, %v", port, ok, tt.wantPort, tt.wantOK)
			}
		})
	}
}

func TestResolveEndpointPassesThroughNonEmpty(t *testing.T) {
	if got := ResolveEndpoint("http://10.0.0.5:9222"); got != "http://10.0.0.5:9222" {
		t.Errorf("ResolveEndpoint = %q", got)
	}
}
