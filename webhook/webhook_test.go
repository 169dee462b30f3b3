package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeliverSignsAndPosts(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Acquire-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := NewEvent(EventBatchCompleted, "batch-abc123", map[string]int{"total": 3})
	if err := Deliver(context.Background(), srv.URL, "topsecret", event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	want := "sha256=" + Sign(gotBody, "topsecret")
	if !hmac.Equal([]byte(gotSig), []byte(want)) {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("unmarshal delivered body: %v", err)
	}
	if decoded.Type != EventBatchCompleted || decoded.JobID != "batch-abc123" {
		t.Errorf("delivered event = %+v", decoded)
	}
	if decoded.Timestamp == 0 {
		t.Error("event timestamp not stamped")
	}
}

func TestDeliverWithoutSecretOmitsSignature(t *testing.T) {
	var hadSig bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadSig = r.Header.Get("X-Acquire-Signature") != ""
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", NewEvent(EventBatchCompleted, "j", nil)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if hadSig {
		t.Error("unsigned delivery carried a signature header")
	}
}

func TestDeliverFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", NewEvent(EventBatchFailed, "j", nil)); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
