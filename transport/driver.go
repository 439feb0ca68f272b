package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// Protocol names a negotiated wire protocol.
type Protocol string

const (
	ProtocolH1 Protocol = "http/1.1"
	ProtocolH2 Protocol = "h2"
	ProtocolH3 Protocol = "h3"
)

// State is the per-exchange state machine: begin_exchange always
// starts IDLE and always ends DONE, passing through header and body
// phases in between in a fixed order.
type State int

const (
	StateIdle State = iota
	StateSendingHeaders
	StateSendingBody
	StateAwaitingStatus
	StateReadingHeaders
	StateReadingBody
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingHeaders:
		return "sending_headers"
	case StateSendingBody:
		return "sending_body"
	case StateAwaitingStatus:
		return "awaiting_status"
	case StateReadingHeaders:
		return "reading_headers"
	case StateReadingBody:
		return "reading_body"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StreamCursor is the uniform handle begin_exchange returns regardless
// of which driver served it: a single begin_exchange(...) -> StreamCursor
// interface independent of transport version. Response headers arrive
// as a single event before any body byte is observable; Body is the
// ordered, lazy byte sequence after that event fires.
type StreamCursor struct {
	Protocol Protocol
	Body     io.Reader

	mu    sync.Mutex
	state State

	headerOnce sync.Once
	headerCh   chan struct{}
	response   *http.Response
	headerErr  error

	doneOnce sync.Once
	doneCh   chan struct{}

	closer func() error

	// conn is the Conn this exchange claimed a slot on via Acquire; it is
	// released exactly once, when the cursor reaches Done. A cursor that
	// never observed header arrival (a failed dial or write) still holds
	// its slot until markDone runs on the error path.
	conn *Conn
}

func newStreamCursor(proto Protocol, conn *Conn) *StreamCursor {
	return &StreamCursor{
		Protocol: proto,
		headerCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
		state:    StateIdle,
		conn:     conn,
	}
}

func (c *StreamCursor) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the cursor's current position in the exchange.
func (c *StreamCursor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *StreamCursor) resolveHeaders(resp *http.Response, err error) {
	c.headerOnce.Do(func() {
		c.response = resp
		c.headerErr = err
		if resp != nil {
			c.Body = resp.Body
		}
		close(c.headerCh)
	})
}

func (c *StreamCursor) markDone() {
	c.doneOnce.Do(func() {
		c.setState(StateDone)
		if c.conn != nil {
			c.conn.Release(time.Now())
		}
		close(c.doneCh)
	})
}

// AwaitHeaders blocks until the header event fires (or ctx is done) and
// returns the resulting *http.Response, whose Body is the live cursor
// for subsequent reads.
func (c *StreamCursor) AwaitHeaders(ctx context.Context) (*http.Response, error) {
	select {
	case <-c.headerCh:
		return c.response, c.headerErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports when the exchange has fully finished (body drained or
// stream reset/closed).
func (c *StreamCursor) Done() <-chan struct{} { return c.doneCh }

// Close releases any driver-held resources for this exchange (e.g. an H2
// RST_STREAM or an H3 stream cancellation). Safe to call multiple times.
func (c *StreamCursor) Close() error {
	c.markDone()
	if c.closer != nil {
		return c.closer()
	}
	return nil
}

// Driver begins one request/response exchange over an already-acquired
// Conn. It owns moving the cursor from IDLE through to header arrival;
// the caller drains Body itself and must call Close when done.
// idleTimeout, when positive, bounds socket inactivity — no bytes
// received for that long — rather than the exchange's total wall
// clock: a slow trickle that keeps producing bytes within the window
// never times out no matter how long it runs overall.
type Driver interface {
	Protocol() Protocol
	BeginExchange(ctx context.Context, conn *Conn, req *http.Request, idleTimeout time.Duration) (*StreamCursor, error)
}
