package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubEngine counts in-flight fetches and fails targets on demand.
type stubEngine struct {
	mu        sync.Mutex
	inFlight  int
	peak      int
	calls     atomic.Int32
	failURLs  map[string]bool
	blockNext chan struct{}
}

func (s *stubEngine) Name() string    { return "stub" }
func (s *stubEngine) Available() bool { return true }

func (s *stubEngine) Fetch(_ context.Context, req *Request) (*Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	if s.blockNext != nil {
		<-s.blockNext
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if s.failURLs[req.URL] {
		return nil, errors.New("stub failure for " + req.URL)
	}
	return &Result{HTML: "<html>" + req.URL + "</html>", StatusCode: 200, FinalURL: req.URL, Engine: "stub"}, nil
}

func (s *stubEngine) FetchMany(ctx context.Context, targets []string, opts *BatchOptions) (*BatchResult, error) {
	return fetchMany(ctx, s, targets, opts)
}

func targets(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://example.com/%d", i)
	}
	return out
}

func TestFetchManySettlesEveryTarget(t *testing.T) {
	s := &stubEngine{failURLs: map[string]bool{
		"https://example.com/2": true,
		"https://example.com/4": true,
	}}
	batch, err := s.FetchMany(context.Background(), targets(7), &BatchOptions{Concurrency: 3})
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if len(batch.Results) != 5 {
		t.Errorf("results = %d, want 5", len(batch.Results))
	}
	if len(batch.Failures) != 2 {
		t.Errorf("failures = %d, want 2", len(batch.Failures))
	}
	if _, ok := batch.Failures["https://example.com/2"]; !ok {
		t.Error("failed target missing from Failures")
	}
	if _, ok := batch.Results["https://example.com/2"]; ok {
		t.Error("failed target also present in Results")
	}
}

func TestFetchManyRespectsConcurrencyWindow(t *testing.T) {
	s := &stubEngine{}
	if _, err := s.FetchMany(context.Background(), targets(10), &BatchOptions{Concurrency: 2}); err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if s.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", s.peak)
	}
}

func TestFetchManyCancelledBeforeStartIsEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stubEngine{}
	batch, err := s.FetchMany(ctx, targets(5), &BatchOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("FetchMany: %v", err)
	}
	if len(batch.Results)+len(batch.Failures) != 0 {
		t.Errorf("cancelled batch settled %d targets, want 0", len(batch.Results)+len(batch.Failures))
	}
	if s.calls.Load() != 0 {
		t.Errorf("engine called %d times after pre-cancel, want 0", s.calls.Load())
	}
}

func TestFetchManyStopsSchedulingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	s := &stubEngine{blockNext: release}

	done := make(chan *BatchResult, 1)
	go func() {
		batch, _ := s.FetchMany(ctx, targets(9), &BatchOptions{Concurrency: 3})
		done <- batch
	}()

	// Wait for the first window to be in flight, then cancel and release it.
	for s.calls.Load() < 3 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(release)

	batch := <-done
	if settled := len(batch.Results) + len(batch.Failures); settled != 3 {
		t.Errorf("settled = %d, want 3 (first window only)", settled)
	}
}

func TestNeedsBrowser(t *testing.T) {
	longText := ""
	for i := 0; i < 60; i++ {
		longText += "plenty of visible static content here "
	}

	tests := []struct {
		name string
		html string
		want bool
	}{
		{"spa shell", `<html><body><div id="root"></div></body></html>`, true},
		{"next shell", `<html><body><div id="__next"></div></body></html>`, true},
		{"noscript warning", `<html><body><p>` + longText + `</p><noscript>Please enable JavaScript to continue</noscript></body></html>`, true},
		{"static article", `<html><body><article>` + longText + `</article></body></html>`, false},
		{"tiny body", `<html><body><p>hi</p></body></html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsBrowser([]byte(tt.html)); got != tt.want {
				t.Errorf("NeedsBrowser = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		html string
		want string
	}{
		{`<html><head><title>Hello World</title></head></html>`, "Hello World"},
		{`<html><head><title>  padded  </title></head></html>`, "padded"},
		{`<html><head></head><body>no title</body></html>`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := extractTitle([]byte(tt.html)); got != tt.want {
			t.Errorf("extractTitle(%q) = %q, want %q", tt.html, got, tt.want)
		}
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/path?x=1", "https://example.com"},
		{"https://example.com:8443/a", "https://example.com:8443"},
		{"http://example.com", "http://example.com"},
	}
	for _, tt := range tests {
		got, err := originOf(tt.url)
		if err != nil {
			t.Errorf("originOf(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("originOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
	if _, err := originOf("://bad"); err == nil {
		t.Error("originOf should reject malformed URLs")
	}
}

func TestPooledEngineReusesPoolPerOrigin(t *testing.T) {
	e := NewPooledEngine(4, 0, 0)
	for _, u := range []string{"https://a.test/x", "https://a.test/y", "https://b.test/z"} {
		origin, err := originOf(u)
		if err != nil {
			t.Fatalf("originOf: %v", err)
		}
		e.clientFor(origin)
	}
	if n := e.PoolCount(); n != 2 {
		t.Errorf("pool count = %d, want 2", n)
	}
}
