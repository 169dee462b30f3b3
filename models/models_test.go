package models

import (
	"context"
	"errors"
	"testing"
)

func TestCategorize(t *testing.T) {
	typed := NewAcquireError(ErrKindNavigation, "dns failure", nil)
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"typed error passes through", typed, ErrKindNavigation},
		{"wrapped typed error", NewAcquireError(ErrKindElementNotFound, "outer", typed), ErrKindElementNotFound},
		{"deadline", context.DeadlineExceeded, ErrKindTimeout},
		{"cancel", context.Canceled, ErrKindTimeout},
		{"unknown", errors.New("boom"), ErrKindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err, "msg"); got.Kind != tt.want {
				t.Errorf("kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestAcquireErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewAcquireError(ErrKindConnection, "outer", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error lost through Unwrap")
	}
	detail := Detail(err)
	if detail.Kind != ErrKindConnection || detail.Message != "outer" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestAcquireRequestDefaults(t *testing.T) {
	r := &AcquireRequest{URL: "https://example.com"}
	r.Defaults()
	if r.Engine != EngineAuto || r.Wait != WaitDOM || r.Timeout != 30 {
		t.Errorf("defaults = %+v", r)
	}
	if !r.CacheEnabled() || !r.FallbackAllowed() {
		t.Error("cache and fallback should default on")
	}
}

func TestAcquireRequestNeedsBrowser(t *testing.T) {
	tests := []struct {
		name string
		req  AcquireRequest
		want bool
	}{
		{"plain", AcquireRequest{}, false},
		{"browser engine", AcquireRequest{Engine: EngineBrowser}, true},
		{"attached engine", AcquireRequest{Engine: EngineAttached}, true},
		{"network wait", AcquireRequest{Wait: WaitNetwork}, true},
		{"selector", AcquireRequest{WaitSelector: ".x"}, true},
		{"script", AcquireRequest{Script: "1+1"}, true},
		{"http engine", AcquireRequest{Engine: EngineHTTP}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.NeedsBrowser(); got != tt.want {
				t.Errorf("NeedsBrowser = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchRequestDefaults(t *testing.T) {
	r := &BatchRequest{URLs: []string{"https://example.com"}}
	r.Defaults()
	if r.Concurrency != 3 || r.RetryCount() != 1 || r.RetryDelayMs != 1000 {
		t.Errorf("defaults = %+v", r)
	}
	zero := 0
	r2 := &BatchRequest{URLs: []string{"u"}, Retries: &zero}
	r2.Defaults()
	if r2.RetryCount() != 0 {
		t.Error("explicit zero retries overridden by defaults")
	}
}
