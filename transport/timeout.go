package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// deadlineConn wraps a net.Conn, resetting a fixed inactivity deadline
// before every Read and Write. A transfer that keeps producing bytes
// faster than timeout never trips it, no matter how long it runs in
// total; one that goes quiet for timeout does, on whichever call is
// blocked at the time.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	d.Conn.SetReadDeadline(time.Now().Add(d.timeout))
	return d.Conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	d.Conn.SetWriteDeadline(time.Now().Add(d.timeout))
	return d.Conn.Write(p)
}

// idleTimeoutReader applies the same no-bytes-for-timeout rule to a
// body whose underlying connection isn't exclusively ours to set
// deadlines on (H2/H3 multiplex many exchanges over one conn). Each
// Read races the real read against a timer in a background goroutine;
// the goroutine outlives a timed-out Read and delivers its result to a
// buffered channel nobody then receives from, so it can't leak beyond
// that one pending read.
type idleTimeoutReader struct {
	r       io.ReadCloser
	timeout time.Duration
}

type readResult struct {
	n   int
	err error
}

func (t *idleTimeoutReader) Read(p []byte) (int, error) {
	ch := make(chan readResult, 1)
	go func() {
		n, err := t.r.Read(p)
		ch <- readResult{n, err}
	}()
	select {
	case res := <-ch:
		return res.n, res.err
	case <-time.After(t.timeout):
		return 0, context.DeadlineExceeded
	}
}

func (t *idleTimeoutReader) Close() error { return t.r.Close() }

// beginStreamExchange drives roundTrip under ctx for an H2/H3-style
// driver whose RoundTrip call blocks until headers arrive: idleTimeout
// bounds that wait (no response at all is itself inactivity) without
// tying the rest of the stream's lifetime to a deadline that would
// otherwise cap the whole exchange's wall clock. Once headers arrive
// within the window, the returned cursor's Body is wrapped in
// idleTimeoutReader so later reads are bounded the same way.
func beginStreamExchange(ctx context.Context, proto Protocol, conn *Conn, idleTimeout time.Duration, roundTrip func(context.Context) (*http.Response, error)) (*StreamCursor, error) {
	cursor := newStreamCursor(proto, conn)
	cursor.setState(StateSendingHeaders)

	streamCtx, cancel := context.WithCancel(ctx)

	cursor.setState(StateSendingBody)
	done := make(chan struct {
		resp *http.Response
		err  error
	}, 1)
	go func() {
		resp, err := roundTrip(streamCtx)
		done <- struct {
			resp *http.Response
			err  error
		}{resp, err}
	}()

	var resp *http.Response
	var err error
	if idleTimeout > 0 {
		select {
		case res := <-done:
			resp, err = res.resp, res.err
		case <-time.After(idleTimeout):
			cancel()
			res := <-done
			if res.err == nil && res.resp != nil {
				res.resp.Body.Close()
			}
			cursor.setState(StateAwaitingStatus)
			cursor.resolveHeaders(nil, context.DeadlineExceeded)
			cursor.markDone()
			return cursor, context.DeadlineExceeded
		}
	} else {
		res := <-done
		resp, err = res.resp, res.err
	}

	cursor.setState(StateAwaitingStatus)
	if err != nil {
		cancel()
		cursor.resolveHeaders(nil, err)
		cursor.markDone()
		return cursor, err
	}

	cursor.setState(StateReadingHeaders)
	body := resp.Body
	if idleTimeout > 0 {
		body = &idleTimeoutReader{r: body, timeout: idleTimeout}
	}
	resp.Body = body
	cursor.closer = func() error {
		cancel()
		return body.Close()
	}
	cursor.setState(StateReadingBody)
	cursor.resolveHeaders(resp, nil)
	return cursor, nil
}
