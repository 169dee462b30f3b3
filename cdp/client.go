package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/acquire/models"
)

// Connection states.
const (
	StateConnecting int32 = iota
	StateReady
	StateClosed
)

// wireRequest is an outgoing protocol message.
type wireRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// wireError is the error half of a protocol response.
type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wireError) Error() string {
	return fmt.Sprintf("cdp: remote error %d: %s", e.Code, e.Message)
}

// wireMessage is an incoming protocol message: a correlated response when ID
// is set, an event notification when Method is set.
type wireMessage struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *wireError      `json:"error"`
}

// callResult settles one pending correlation.
type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall is a correlation table entry: created when a call is sent,
// destroyed when the matching response arrives, the transport closes, or the
// stale sweep reclaims it.
type pendingCall struct {
	ch     chan callResult
	sentAt time.Time
}

// Options tune the wire client.
type Options struct {
	// CallTimeout is the default per-call deadline applied when the caller's
	// context has none.
	CallTimeout time.Duration

	// PollInterval is the fixed delay between navigation readiness polls.
	PollInterval time.Duration

	// StaleAfter is the age at which an unanswered correlation is reclaimed
	// even if the peer never replies.
	StaleAfter time.Duration

	// SweepInterval is the period of the stale-correlation sweep.
	SweepInterval time.Duration
}

func (o *Options) defaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 60 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
}

// Client is a remote-debugging wire-protocol client. It turns method calls
// into correlated request/response pairs over a persistent transport.
// Call ids are unique for the lifetime of one transport connection.
type Client struct {
	transport Transport
	opts      Options

	mu      sync.Mutex
	pending map[int64]*pendingCall

	nextID    atomic.Int64
	state     atomic.Int32
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an open transport and starts the response reader and the
// stale-correlation sweeper. The client is Ready on return.
func NewClient(t Transport, opts Options) *Client {
	opts.defaults()
	c := &Client{
		transport: t,
		opts:      opts,
		pending:   make(map[int64]*pendingCall),
		done:      make(chan struct{}),
	}
	c.state.Store(StateConnecting)
	go c.readLoop()
	go c.sweepLoop()
	c.state.Store(StateReady)
	return c
}

// State returns the connection state.
func (c *Client) State() int32 {
	return c.state.Load()
}

// Call sends {id, method, params} and waits for the correlated response.
// The id is assigned from an incrementing counter. Cancellation abandons the
// correlation entry; a late response for it is dropped by the read loop.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.state.Load() != StateReady {
		return nil, models.NewAcquireError(models.ErrKindConnection, "cdp client is not connected", nil)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	p := &pendingCall{
		ch:     make(chan callResult, 1),
		sentAt: time.Now(),
	}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()

	data, err := json.Marshal(wireRequest{ID: id, Method: method, Params: params})
	if err != nil {
		c.remove(id)
		return nil, fmt.Errorf("cdp: marshal %s: %w", method, err)
	}
	if err := c.transport.Send(data); err != nil {
		c.remove(id)
		return nil, models.NewAcquireError(models.ErrKindConnection, "cdp send failed", err)
	}

	select {
	case res := <-p.ch:
		return res.result, res.err
	case <-ctx.Done():
		c.remove(id)
		return nil, models.Categorize(ctx.Err(), method+" call")
	case <-c.done:
		return nil, models.NewAcquireError(models.ErrKindConnection, "cdp connection closed", nil)
	}
}

// Close tears down the transport and rejects every pending correlation.
// It never closes the remote browser; it only detaches. Safe to call twice.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(StateClosed)
		close(c.done)
		_ = c.transport.Close()

		c.mu.Lock()
		for id, p := range c.pending {
			delete(c.pending, id)
			p.ch <- callResult{err: models.NewAcquireError(models.ErrKindConnection, "cdp connection closed", nil)}
		}
		c.mu.Unlock()
	})
	return nil
}

// remove deletes a correlation entry, returning it if it was still pending.
func (c *Client) remove(id int64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return p
}

// readLoop receives unordered, asynchronously arriving messages and settles
// the matching correlation. Responses whose id has no matching entry
// (duplicate, stale, or post-close) are dropped silently. Event
// notifications carry a method and no id; navigation readiness is polled
// rather than event-driven, so they are ignored.
func (c *Client) readLoop() {
	for {
		data, err := c.transport.Receive()
		if err != nil {
			_ = c.Close()
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("cdp: discarding unparseable message", "error", err)
			continue
		}
		if msg.ID == 0 {
			continue // event notification
		}

		p := c.remove(msg.ID)
		if p == nil {
			slog.Debug("cdp: dropping response with no pending correlation", "id", msg.ID)
			continue
		}
		if msg.Error != nil {
			p.ch <- callResult{err: msg.Error}
		} else {
			p.ch <- callResult{result: msg.Result}
		}
	}
}

// sweepLoop periodically reclaims correlations whose age exceeds the
// staleness threshold, bounding table growth when the peer silently
// disappears. Reclaimed calls fail with a timeout-kind error.
func (c *Client) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweepStale(time.Now())
		}
	}
}

// sweepStale reclaims every pending call older than StaleAfter at now.
func (c *Client) sweepStale(now time.Time) {
	c.mu.Lock()
	var reclaimed []*pendingCall
	for id, p := range c.pending {
		if now.Sub(p.sentAt) > c.opts.StaleAfter {
			delete(c.pending, id)
			reclaimed = append(reclaimed, p)
		}
	}
	c.mu.Unlock()

	for _, p := range reclaimed {
		p.ch <- callResult{err: models.NewAcquireError(models.ErrKindTimeout, "cdp call abandoned: no response from peer", nil)}
	}
	if len(reclaimed) > 0 {
		slog.Warn("cdp: reclaimed stale correlations", "count", len(reclaimed))
	}
}

// pendingCount reports the correlation table size. Test hook.
func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
