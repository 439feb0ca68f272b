package transport

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"
)

// H1Driver speaks HTTP/1.1 directly over a net.Conn it owns for the
// whole exchange: an H1 connection serves exactly one exchange at a
// time. Framing itself is still delegated to the stdlib —
// (*http.Request).Write and http.ReadResponse.
type H1Driver struct{}

func (H1Driver) Protocol() Protocol { return ProtocolH1 }

// DialH1 opens a new H1 Conn to addr. When tlsEnabled, the handshake
// goes through dialer.DialTLS offering only "http/1.1"; otherwise it's a
// plain TCP dial.
func DialH1(ctx context.Context, dialer *Dialer, network, addr string, tlsEnabled bool) (*Conn, error) {
	var raw net.Conn
	if tlsEnabled {
		tconn, err := dialer.DialTLS(ctx, network, addr, []string{"http/1.1"})
		if err != nil {
			return nil, err
		}
		raw = tconn
	} else {
		conn, err := dialer.dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		raw = conn
	}
	return &Conn{
		Protocol:   ProtocolH1,
		Created:    time.Now(),
		MaxStreams: 1,
		raw:        raw,
		driver:     H1Driver{},
		close:      raw.Close,
	}, nil
}

// BeginExchange writes req directly to the wire and parses the response
// status line and headers synchronously (HTTP/1.1 has no separate
// header-arrival event distinct from "the whole head has been read"),
// then hands back a StreamCursor whose Body streams the remaining
// response body lazily via http.ReadResponse's chunked/length-delimited
// reader. idleTimeout, when positive, wraps conn.raw so every write and
// every read gets its own fresh deadline: the connection only times out
// after a genuine gap of silence, not after a fixed total duration, so
// a slowly-trickling body can run past idleTimeout in total as long as
// no single gap between bytes does.
func (d H1Driver) BeginExchange(ctx context.Context, conn *Conn, req *http.Request, idleTimeout time.Duration) (*StreamCursor, error) {
	cursor := newStreamCursor(ProtocolH1, conn)
	cursor.setState(StateSendingHeaders)

	var rw net.Conn = conn.raw
	if idleTimeout > 0 {
		rw = &deadlineConn{Conn: conn.raw, timeout: idleTimeout}
	}

	cursor.setState(StateSendingBody)
	if err := req.Write(rw); err != nil {
		cursor.resolveHeaders(nil, err)
		cursor.markDone()
		return cursor, err
	}

	cursor.setState(StateAwaitingStatus)
	br := bufio.NewReader(rw)
	resp, err := http.ReadResponse(br, req)
	cursor.setState(StateReadingHeaders)
	if err != nil {
		cursor.resolveHeaders(nil, err)
		cursor.markDone()
		return cursor, err
	}

	cursor.setState(StateReadingBody)
	cursor.closer = func() error {
		return resp.Body.Close()
	}
	cursor.resolveHeaders(resp, nil)
	return cursor, nil
}
