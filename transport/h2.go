package transport

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// H2Driver speaks HTTP/2 over a *http2.ClientConn. Frame encoding,
// HPACK, and flow control are x/net/http2's job; this driver's job is
// owning the ClientConn as one pooled Conn so the root package's Pool
// can apply its own admission/eviction policy on top of the Conn's own
// inflight/MaxStreams accounting rather than letting
// http2.Transport's internal connection pool make that call invisibly.
// It dials its own net.Conn and builds one *ClientConn per dial rather
// than going through the stdlib http2.ConfigureTransport auto-wiring.
type H2Driver struct {
	t *http2.Transport
}

// NewH2Driver returns a driver backed by t. DialH2 makes its own utls
// dial through the Dialer (see dial.go) and hands the connection to
// t.NewClientConn, so t's DialTLSContext is not used and H2 connections
// present the same TLS fingerprint as H1.
func NewH2Driver(t *http2.Transport) *H2Driver {
	return &H2Driver{t: t}
}

func (d *H2Driver) Protocol() Protocol { return ProtocolH2 }

// DialH2 opens a TLS connection negotiating "h2" and wraps it as one
// *http2.ClientConn, owned directly by the returned Conn. MaxStreams is
// read from the ClientConn's state once, at dial time: if the server's
// SETTINGS frame has not arrived by then it is x/net/http2's default,
// and it is not updated afterwards.
func (d *H2Driver) DialH2(ctx context.Context, dialer *Dialer, network, addr string) (*Conn, error) {
	tconn, err := dialer.DialTLS(ctx, network, addr, []string{"h2", "http/1.1"})
	if err != nil {
		return nil, err
	}
	if NegotiatedProtocol(tconn) != "h2" {
		// Peer didn't actually speak H2; this connection is closed and
		// the caller falls back to dialing a fresh H1 connection (stdlib
		// net/http does the analogous check on
		// TLSState.NegotiatedProtocol).
		tconn.Close()
		return nil, errNotH2(addr)
	}

	cc, err := d.t.NewClientConn(tconn)
	if err != nil {
		tconn.Close()
		return nil, err
	}

	maxStreams := 100 // conservative pre-SETTINGS default, same order of magnitude x/net/http2 assumes
	if state := cc.State(); state.MaxConcurrentStreams > 0 {
		maxStreams = int(state.MaxConcurrentStreams)
	}

	return &Conn{
		Protocol:   ProtocolH2,
		Created:    time.Now(),
		MaxStreams: maxStreams,
		raw:        tconn,
		driver:     d,
		close:      cc.Close,
		handle:     cc,
	}, nil
}

// BeginExchange hands req to the Conn's own *http2.ClientConn.RoundTrip
// rather than the shared Transport's RoundTrip, so the exchange runs on
// exactly the connection the Pool's admission policy chose instead of
// whichever one http2.Transport's own internal pool would have picked.
// idleTimeout bounds the RoundTrip call (no headers at all is itself
// inactivity) and, once headers do arrive, the body the same way — see
// beginStreamExchange — rather than capping the exchange's total wall
// clock the way a single context deadline on the whole call would.
func (d *H2Driver) BeginExchange(ctx context.Context, conn *Conn, req *http.Request, idleTimeout time.Duration) (*StreamCursor, error) {
	cc, ok := conn.handle.(*http2.ClientConn)
	if !ok {
		return nil, errWrongDriver
	}
	return beginStreamExchange(ctx, ProtocolH2, conn, idleTimeout, func(rctx context.Context) (*http.Response, error) {
		return cc.RoundTrip(req.WithContext(rctx))
	})
}

type h2NotSupportedError struct{ addr string }

func (e h2NotSupportedError) Error() string { return "transport: " + e.addr + " did not negotiate h2" }

func errNotH2(addr string) error { return h2NotSupportedError{addr: addr} }

type wrongDriverError struct{}

func (wrongDriverError) Error() string { return "transport: conn bound to a different driver" }

var errWrongDriver = wrongDriverError{}
