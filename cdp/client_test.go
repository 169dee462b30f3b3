package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/acquire/models"
)

// fakeTransport is an in-memory Transport. Sent requests are handed to the
// respond function; whatever it returns is queued for Receive.
type fakeTransport struct {
	mu       sync.Mutex
	closed   bool
	incoming chan []byte

	// respond maps a sent request to zero or more raw incoming messages.
	respond func(id int64, method string, params json.RawMessage) [][]byte
}

func newFakeTransport(respond func(id int64, method string, params json.RawMessage) [][]byte) *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 64),
		respond:  respond,
	}
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errors.New("transport closed")
	}
	if t.respond == nil {
		return nil
	}
	var req wireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	raw, _ := json.Marshal(req.Params)
	for _, msg := range t.respond(req.ID, req.Method, raw) {
		t.incoming <- msg
	}
	return nil
}

func (t *fakeTransport) Receive() ([]byte, error) {
	data, ok := <-t.incoming
	if !ok {
		return nil, errors.New("transport closed")
	}
	return data, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.incoming)
	}
	return nil
}

// inject queues a raw message as if the peer had sent it unprompted.
func (t *fakeTransport) inject(msg []byte) {
	t.incoming <- msg
}

func response(id int64, result string) []byte {
	return []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, id, result))
}

func fastOpts() Options {
	return Options{
		CallTimeout:   2 * time.Second,
		PollInterval:  5 * time.Millisecond,
		StaleAfter:    time.Minute,
		SweepInterval: time.Hour, // sweeps are driven manually in tests
	}
}

func TestCallCorrelatesConcurrentResponses(t *testing.T) {
	tr := newFakeTransport(func(id int64, method string, _ json.RawMessage) [][]byte {
		return [][]byte{response(id, fmt.Sprintf(`{"echo":%d}`, id))}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Call(context.Background(), "Test.echo", nil)
			if err != nil {
				t.Errorf("Call: %v", err)
				return
			}
			var body struct {
				Echo int64 `json:"echo"`
			}
			if err := json.Unmarshal(res, &body); err != nil {
				t.Errorf("unmarshal: %v", err)
				return
			}
			if body.Echo == 0 {
				t.Error("response lost its correlation id")
			}
		}()
	}
	wg.Wait()

	if n := c.pendingCount(); n != 0 {
		t.Errorf("pending count = %d after all calls settled, want 0", n)
	}
}

func TestUnmatchedResponseIsDroppedSilently(t *testing.T) {
	tr := newFakeTransport(func(id int64, _ string, _ json.RawMessage) [][]byte {
		return [][]byte{response(id, `{}`)}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	// A response nothing is waiting for must not disturb later calls.
	tr.inject(response(9999, `{}`))

	if _, err := c.Call(context.Background(), "Test.noop", nil); err != nil {
		t.Fatalf("Call after unmatched response: %v", err)
	}
	if n := c.pendingCount(); n != 0 {
		t.Errorf("pending count = %d, want 0", n)
	}
}

func TestEventNotificationsAreIgnored(t *testing.T) {
	tr := newFakeTransport(func(id int64, _ string, _ json.RawMessage) [][]byte {
		return [][]byte{
			[]byte(`{"method":"Page.frameNavigated","params":{}}`),
			response(id, `{"ok":true}`),
		}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	if _, err := c.Call(context.Background(), "Test.noop", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestRemoteErrorSurfacesToCaller(t *testing.T) {
	tr := newFakeTransport(func(id int64, _ string, _ json.RawMessage) [][]byte {
		return [][]byte{[]byte(fmt.Sprintf(`{"id":%d,"error":{"code":-32000,"message":"no such frame"}}`, id))}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	_, err := c.Call(context.Background(), "Test.fail", nil)
	if err == nil {
		t.Fatal("expected remote error")
	}
	var we *wireError
	if !errors.As(err, &we) || we.Code != -32000 {
		t.Fatalf("error = %v, want wireError code -32000", err)
	}
}

func TestSweepReclaimsStaleCorrelations(t *testing.T) {
	// Never respond: correlations pile up until the sweep reclaims them.
	tr := newFakeTransport(nil)
	c := NewClient(tr, fastOpts())
	defer c.Close()

	errc := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Test.silent", nil)
		errc <- err
	}()

	deadline := time.After(time.Second)
	for c.pendingCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("call never registered a correlation")
		case <-time.After(time.Millisecond):
		}
	}

	c.sweepStale(time.Now().Add(2 * time.Minute))

	select {
	case err := <-errc:
		var ae *models.AcquireError
		if !errors.As(err, &ae) || ae.Kind != models.ErrKindTimeout {
			t.Fatalf("reclaimed call error = %v, want kind %s", err, models.ErrKindTimeout)
		}
	case <-time.After(time.Second):
		t.Fatal("reclaimed call never settled")
	}
	if n := c.pendingCount(); n != 0 {
		t.Errorf("pending count = %d after sweep, want 0", n)
	}
}

func TestSweepLeavesFreshCorrelationsAlone(t *testing.T) {
	tr := newFakeTransport(nil)
	c := NewClient(tr, fastOpts())
	defer c.Close()

	go func() { _, _ = c.Call(context.Background(), "Test.silent", nil) }()

	deadline := time.After(time.Second)
	for c.pendingCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("call never registered a correlation")
		case <-time.After(time.Millisecond):
		}
	}

	c.sweepStale(time.Now())
	if n := c.pendingCount(); n != 1 {
		t.Errorf("pending count = %d after no-op sweep, want 1", n)
	}
}

func TestCloseRejectsPendingAndSubsequentCalls(t *testing.T) {
	tr := newFakeTransport(nil)
	c := NewClient(tr, fastOpts())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Test.silent", nil)
		errc <- err
	}()

	deadline := time.After(time.Second)
	for c.pendingCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("call never registered a correlation")
		case <-time.After(time.Millisecond):
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-errc:
		var ae *models.AcquireError
		if !errors.As(err, &ae) || ae.Kind != models.ErrKindConnection {
			t.Fatalf("pending call error = %v, want kind %s", err, models.ErrKindConnection)
		}
	case <-time.After(time.Second):
		t.Fatal("pending call never settled after Close")
	}

	if _, err := c.Call(context.Background(), "Test.noop", nil); err == nil {
		t.Fatal("Call on closed client should fail")
	}
	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWaitNavigatedPollsUntilComplete(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	tr := newFakeTransport(func(id int64, method string, _ json.RawMessage) [][]byte {
		mu.Lock()
		polls++
		state := "loading"
		if polls >= 3 {
			state = "complete"
		}
		mu.Unlock()
		return [][]byte{response(id, fmt.Sprintf(`{"result":{"value":%q}}`, state))}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	if err := c.WaitNavigated(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitNavigated: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if polls < 3 {
		t.Errorf("polls = %d, want >= 3", polls)
	}
}

func TestWaitNavigatedTimesOut(t *testing.T) {
	tr := newFakeTransport(func(id int64, _ string, _ json.RawMessage) [][]byte {
		return [][]byte{response(id, `{"result":{"value":"loading"}}`)}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	err := c.WaitNavigated(context.Background(), 30*time.Millisecond)
	var ae *models.AcquireError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindTimeout {
		t.Fatalf("WaitNavigated error = %v, want kind %s", err, models.ErrKindTimeout)
	}
}

func TestEvaluateSurfacesExceptions(t *testing.T) {
	tr := newFakeTransport(func(id int64, _ string, _ json.RawMessage) [][]byte {
		return [][]byte{response(id, `{"exceptionDetails":{"text":"Uncaught ReferenceError"},"result":{}}`)}
	})
	c := NewClient(tr, fastOpts())
	defer c.Close()

	_, err := c.Evaluate(context.Background(), `nope()`)
	var ae *models.AcquireError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindEvaluation {
		t.Fatalf("Evaluate error = %v, want kind %s", err, models.ErrKindEvaluation)
	}
}
