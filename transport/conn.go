package transport

import (
	"net"
	"sync"
	"time"
)

// Conn is the connection tuple: origin, protocol version, transport
// handle, creation time, last-use time, inflight-stream count,
// max-streams. The root package's Pool owns the bookkeeping of which
// Conn serves which origin and when to evict one; this package only
// needs to expose enough state for that bookkeeping plus a way to
// start exchanges on it.
type Conn struct {
	Origin   string
	Protocol Protocol
	Created  time.Time

	// MaxStreams is 1 for H1 (a Conn is held exclusively for the whole
	// exchange) and the peer's advertised concurrency limit for H2/H3,
	// where one connection may carry many in-flight exchanges.
	MaxStreams int

	mu       sync.Mutex
	lastUse  time.Time
	inflight int

	raw    net.Conn // nil for H3, whose transport handle is a QUIC connection
	driver Driver
	close  func() error

	// handle is the driver-specific connection object (*http2.ClientConn,
	// *http3.ClientConn, or nil for H1, which drives conn.raw directly).
	// Each driver type-asserts its own handle back out; callers outside
	// this package never touch it.
	handle interface{}
}

// Handle returns the driver-specific connection object stored on this
// Conn, for the matching driver's own use.
func (c *Conn) Handle() interface{} { return c.handle }

// LastUse returns the time of the most recent acquire.
func (c *Conn) LastUse() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUse
}

// Inflight returns the number of exchanges currently open on this Conn.
func (c *Conn) Inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// CanTakeNewExchange reports whether the Conn has stream capacity left,
// per the H1-exclusive / H2-H3-multi-stream invariant.
func (c *Conn) CanTakeNewExchange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight < c.MaxStreams
}

// Acquire claims one exchange slot on the Conn, incrementing Inflight.
// The caller must already have confirmed CanTakeNewExchange (or be the
// one admitting a freshly dialed Conn); Acquire itself does not check
// capacity.
func (c *Conn) Acquire(now time.Time) {
	c.mu.Lock()
	c.inflight++
	c.lastUse = now
	c.mu.Unlock()
}

// Release frees one exchange slot claimed by Acquire, called once an
// exchange's StreamCursor reaches Done.
func (c *Conn) Release(now time.Time) {
	c.mu.Lock()
	c.inflight--
	if c.inflight < 0 {
		c.inflight = 0
	}
	c.lastUse = now
	c.mu.Unlock()
}

// Driver returns the protocol driver bound to this Conn.
func (c *Conn) Driver() Driver { return c.driver }

// Close tears down the underlying socket or QUIC connection.
func (c *Conn) Close() error {
	if c.close != nil {
		return c.close()
	}
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}
