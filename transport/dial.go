// Package transport implements a uniform begin_exchange contract over
// three protocol drivers (H1, H2, H3). Wire-level framing, HPACK, and
// QUIC packetization are treated as capabilities supplied by
// golang.org/x/net/http2 and quic-go/http3 rather than reimplemented;
// this package owns dialing, ALPN/TLS fingerprinting, and the
// per-exchange state machine that the Connection Pool (see the root
// package's pool.go) drives.
package transport

import (
	"context"
	"crypto/tls"
	"net"

	utls "github.com/refraction-networking/utls"
)

// ClientHelloProvider returns the TLS fingerprint to present, or nil to
// use utls' default Go fingerprint. It is a property of the Session so
// the H1 and H2 drivers present the same fingerprint; H3 dials through
// quic-go with a stdlib tls.Config and does not use it.
type ClientHelloProvider func() *utls.ClientHelloSpec

// Dialer opens the raw, TLS-negotiated connection a driver speaks its
// protocol over. alpn lists the protocol IDs to offer, in preference
// order ("h2", "http/1.1"); QUIC dialing is handled separately by h3.go
// since it isn't a net.Conn.
type Dialer struct {
	// DialContext opens the raw TCP connection. Nil means a plain
	// net.Dialer with no special resolution. Session sets this to a
	// closure that consults its own pluggable resolver.Resolver before
	// falling back to net.Dialer.DialContext, so DNS resolution stays a
	// capability the caller controls rather than always going through
	// Go's system resolver.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	ClientHello ClientHelloProvider
}

func (d *Dialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.DialContext != nil {
		return d.DialContext(ctx, network, addr)
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

// DialTLS dials network/addr and completes a TLS handshake presenting
// alpn as the negotiated-protocol offer, via utls so the ClientHello can
// be fingerprinted like a real browser instead of Go's stdlib crypto/tls
// default.
func (d *Dialer) DialTLS(ctx context.Context, network, addr string, alpn []string) (*utls.UConn, error) {
	conn, err := d.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	cfg := &utls.Config{ServerName: host, NextProtos: alpn}

	var tconn *utls.UConn
	if d.ClientHello != nil {
		tconn = utls.UClient(conn, cfg, utls.HelloCustom)
		if spec := d.ClientHello(); spec != nil {
			if err := tconn.ApplyPreset(spec); err != nil {
				conn.Close()
				return nil, err
			}
		}
	} else {
		tconn = utls.UClient(conn, cfg, utls.HelloGolang)
	}

	if err := tconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tconn, nil
}

// NegotiatedProtocol returns the ALPN protocol the peer selected, or ""
// if none was negotiated (plain HTTP/1.1 with no ALPN extension).
func NegotiatedProtocol(conn *utls.UConn) string {
	return conn.ConnectionState().NegotiatedProtocol
}

// stdTLSConfig adapts a utls-negotiated connection's ServerName/ALPN
// intent into a *tls.Config for call sites (like golang.org/x/net/http2)
// that type-assert on the stdlib type rather than utls'.
func stdTLSConfig(serverName string, alpn []string) *tls.Config {
	return &tls.Config{ServerName: serverName, NextProtos: alpn}
}
