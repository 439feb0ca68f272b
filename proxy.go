package niquests

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
)

// roundRobinProxy cycles through a fixed proxy list. A Session builds
// one at construction time and every protocol driver's DialFunc
// consults it before dialing.
type roundRobinProxy struct {
	proxies []*url.URL
	index   uint32
}

func newRoundRobinProxy(raw []string) (*roundRobinProxy, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	parsed := make([]*url.URL, len(raw))
	for i, p := range raw {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("niquests: invalid proxy url %q: %w", p, err)
		}
		parsed[i] = u
	}
	return &roundRobinProxy{proxies: parsed}, nil
}

func (r *roundRobinProxy) next() *url.URL {
	if r == nil || len(r.proxies) == 0 {
		return nil
	}
	idx := atomic.AddUint32(&r.index, 1) - 1
	return r.proxies[idx%uint32(len(r.proxies))]
}

type requestProxyKey struct{}

// withRequestProxy attaches a per-request proxy override to ctx, read by
// proxyForOrigin ahead of the Session's own selector. Request.Proxy is a
// single fixed proxy for the one request, not a rotation list.
func withRequestProxy(ctx context.Context, proxy *URL) context.Context {
	if proxy == nil {
		return ctx
	}
	u, err := url.Parse(proxy.String())
	if err != nil {
		return ctx
	}
	return context.WithValue(ctx, requestProxyKey{}, u)
}

// proxyForOrigin resolves the proxy to dial through for origin
// ("scheme://host:port"): a per-request override on ctx first, then the
// Session's configured round-robin list, then the standard HTTP_PROXY /
// HTTPS_PROXY / NO_PROXY environment variables. A nil result means dial
// origin directly.
func proxyForOrigin(ctx context.Context, session *roundRobinProxy, origin string) (*url.URL, error) {
	if u, ok := ctx.Value(requestProxyKey{}).(*url.URL); ok {
		return u, nil
	}
	scheme, host := splitOriginSchemeHost(origin)
	if noProxy(host) {
		return nil, nil
	}
	if session != nil {
		return session.next(), nil
	}
	raw := envProxy(scheme)
	if raw == "" {
		return nil, nil
	}
	return url.Parse(raw)
}

func splitOriginSchemeHost(origin string) (scheme, host string) {
	scheme, rest, ok := strings.Cut(origin, "://")
	if !ok {
		return "http", origin
	}
	if h, _, err := net.SplitHostPort(rest); err == nil {
		return scheme, h
	}
	return scheme, rest
}

func envProxy(scheme string) string {
	if scheme == "https" {
		return firstNonEmpty(os.Getenv("HTTPS_PROXY"), os.Getenv("https_proxy"))
	}
	return firstNonEmpty(os.Getenv("HTTP_PROXY"), os.Getenv("http_proxy"))
}

func noProxy(host string) bool {
	raw := firstNonEmpty(os.Getenv("NO_PROXY"), os.Getenv("no_proxy"))
	if raw == "" {
		return false
	}
	for _, skip := range strings.Split(raw, ",") {
		skip = strings.TrimSpace(skip)
		skip = strings.TrimPrefix(skip, "*.")
		switch {
		case skip == "":
			continue
		case skip == "*", host == skip, strings.HasSuffix(host, "."+skip):
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// dialViaProxy opens network/addr by CONNECT-tunneling through proxyURL
// over a connection opened by base (or a plain net.Dialer if base is
// nil). The tunnel is established before any TLS handshake runs, so the
// caller's own ALPN/fingerprinting proceeds exactly as it would over a
// direct connection.
func dialViaProxy(ctx context.Context, base func(ctx context.Context, network, addr string) (net.Conn, error), proxyURL *url.URL, network, addr string) (net.Conn, error) {
	if base == nil {
		var nd net.Dialer
		base = nd.DialContext
	}
	conn, err := base(ctx, network, proxyURL.Host)
	if err != nil {
		return nil, err
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if user := proxyURL.User; user != nil {
		pass, _ := user.Password()
		req.Header.Set("Proxy-Authorization", basicAuthHeader(user.Username(), pass))
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("niquests: proxy CONNECT to %s failed: %s", addr, resp.Status)
	}
	return conn, nil
}
