package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/use-agent/acquire/models"
)

func result(url string) *models.AcquireResult {
	return &models.AcquireResult{URL: url, HTML: "<html></html>", StatusCode: 200}
}

func TestKeyIsDeterministicAndDistinguishesFields(t *testing.T) {
	a := Key("https://example.com", "", "")
	b := Key("https://example.com", "", "")
	if a != b {
		t.Error("same inputs produced different keys")
	}
	if Key("https://example.com", "x()", "") == a {
		t.Error("script not part of the key")
	}
	if Key("https://example.com", "", ".main") == a {
		t.Error("wait selector not part of the key")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	c := New(10, time.Hour)
	key := Key("https://example.com", "", "")
	c.Set(key, &Entry{Result: result("https://example.com")})

	e, ok := c.Get(key)
	if !ok {
		t.Fatal("fresh entry not found")
	}
	if e.Result.URL != "https://example.com" {
		t.Errorf("URL = %q", e.Result.URL)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing key reported as present")
	}
}

func TestExpiredEntryIsLazilyDeleted(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Set("k", &Entry{Result: result("u")})

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry still served")
	}
	// The expired read must have removed the entry entirely.
	if c.Len() != 0 {
		t.Errorf("Len = %d after expired read, want 0", c.Len())
	}
}

func TestEntryTTLOverridesDefault(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Set("k", &Entry{Result: result("u"), TTL: time.Hour})

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry with long per-entry TTL expired under the default")
	}
}

func TestZeroTTLMeansNeverFresh(t *testing.T) {
	c := New(10, 0)
	c.Set("k", &Entry{Result: result("u")})
	if _, ok := c.GetStale("k"); !ok {
		t.Error("GetStale should see the stored entry")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("zero-TTL cache served an entry as fresh")
	}
	// The expired fresh read deletes the entry, so the stale view is gone too.
	if _, ok := c.GetStale("k"); ok {
		t.Error("entry survived an expired fresh read")
	}
}

func TestGetStaleIgnoresExpiry(t *testing.T) {
	c := New(10, time.Millisecond)
	c.Set("k", &Entry{Result: result("u"), ETag: `"v1"`})

	time.Sleep(5 * time.Millisecond)

	e, ok := c.GetStale("k")
	if !ok {
		t.Fatal("stale entry not found")
	}
	if e.ETag != `"v1"` {
		t.Errorf("ETag = %q", e.ETag)
	}
}

func TestEvictionRemovesOldestTenPercent(t *testing.T) {
	c := New(20, time.Hour)
	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%02d", i), &Entry{Result: result("u")})
		time.Sleep(time.Millisecond) // distinct insertion timestamps
	}
	if c.Len() != 20 {
		t.Fatalf("Len = %d, want 20", c.Len())
	}

	// Inserting one more at capacity evicts max(1, 20/10) = 2 oldest.
	c.Set("k20", &Entry{Result: result("u")})

	if c.Len() != 19 {
		t.Fatalf("Len = %d after eviction, want 19", c.Len())
	}
	for _, gone := range []string{"k00", "k01"} {
		if _, ok := c.GetStale(gone); ok {
			t.Errorf("oldest entry %s survived eviction", gone)
		}
	}
	if _, ok := c.GetStale("k02"); !ok {
		t.Error("k02 should have survived eviction")
	}
	if _, ok := c.Get("k20"); !ok {
		t.Error("newly inserted entry missing")
	}
}

func TestEvictionCountIsAtLeastOne(t *testing.T) {
	c := New(5, time.Hour) // 5/10 rounds to 0, so exactly 1 is evicted
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), &Entry{Result: result("u")})
		time.Sleep(time.Millisecond)
	}
	c.Set("k5", &Entry{Result: result("u")})
	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
	if _, ok := c.GetStale("k0"); ok {
		t.Error("oldest entry survived eviction")
	}
}

func TestReplacingExistingKeyDoesNotEvict(t *testing.T) {
	c := New(3, time.Hour)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), &Entry{Result: result("u")})
	}
	c.Set("k1", &Entry{Result: result("updated")})
	if c.Len() != 3 {
		t.Errorf("Len = %d after in-place replace, want 3", c.Len())
	}
	e, _ := c.Get("k1")
	if e.Result.URL != "updated" {
		t.Errorf("replaced entry URL = %q", e.Result.URL)
	}
}

func TestClear(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("k", &Entry{Result: result("u")})
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", c.Len())
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"max-age=3600", time.Hour},
		{"public, max-age=60", time.Minute},
		{"max-age=0", 0},
		{"no-cache", 0},
		{"", 0},
		{"max-age=abc", 0},
		{"max-age=-5", 0},
		{"s-maxage=100", 0},
	}
	for _, tt := range tests {
		if got := ParseMaxAge(tt.header); got != tt.want {
			t.Errorf("ParseMaxAge(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
