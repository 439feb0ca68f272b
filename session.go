package niquests

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http2"

	"github.com/quic-go/quic-go/http3"

	nresolver "github.com/shiroyk/niquests/resolver"
	"github.com/shiroyk/niquests/transport"
)

// Session is a persistent client: cookie jar, connection pool, Alt-Svc
// cache, and resolver chain all outlive any single request. It owns
// three protocol drivers and an explicit Pool instead of delegating
// everything to *http.Transport.
type Session struct {
	opts SessionOptions

	Jar           *Jar
	AltSvc        *AltSvcCache
	Decompressors *Decompressors
	Pool          *Pool
	Resolver      nresolver.Resolver

	orchestrator *Orchestrator
	scheduler    *Scheduler
	logger       *slog.Logger
}

// NewSession builds a Session from opts, wiring the resolver chain, the
// three protocol drivers, and the connection pool together.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.PoolConnections == 0 && opts.PoolMaxSize == 0 {
		opts = DefaultSessionOptions()
	}
	logger := slog.Default()

	jar := NewJar()
	altSvc := NewAltSvcCache()
	decomp := NewDecompressors()

	resolverChain, err := buildResolverChain(opts.Resolvers)
	if err != nil {
		return nil, err
	}

	dialer := &transport.Dialer{ClientHello: opts.ClientHello}
	if resolverChain != nil {
		dialer.DialContext = resolverAwareDial(resolverChain)
	}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
			tconn, err := dialer.DialTLS(ctx, network, addr, []string{"h2"})
			if err != nil {
				return nil, err
			}
			return tconn, nil
		},
	}
	h2Driver := transport.NewH2Driver(h2Transport)

	h3Transport := &http3.Transport{TLSClientConfig: &tls.Config{}}
	h3Driver := transport.NewH3Driver(h3Transport)

	netrc, _ := loadNetrc()

	proxies, err := newRoundRobinProxy(opts.Proxies)
	if err != nil {
		return nil, err
	}

	pool := NewPool(opts.PoolConnections, opts.PoolMaxSize, altSvc,
		dialH1Func(dialer, proxies),
		dialH2Func(h2Driver, dialer, proxies),
		dialH3Func(h3Driver),
	)

	retry := RetryPolicy{Times: opts.RetryTimes, HTTPCodes: codesToSet(opts.RetryHTTPCodes), RetryNonIdempotentOnConnError: true}
	if retry.Times == 0 {
		retry = DefaultRetryPolicy()
	}

	orch := NewOrchestrator(pool, jar, altSvc, decomp, netrc, retry, logger)
	orch.Headers = opts.Headers

	s := &Session{
		opts:          opts,
		Jar:           jar,
		AltSvc:        altSvc,
		Decompressors: decomp,
		Pool:          pool,
		Resolver:      resolverChain,
		orchestrator:  orch,
		logger:        logger,
	}
	s.scheduler = NewScheduler(orch)
	return s, nil
}

func codesToSet(codes []int) map[int]bool {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

func buildResolverChain(descriptors []string) (nresolver.Resolver, error) {
	if len(descriptors) == 0 {
		return nil, nil
	}
	var resolvers []nresolver.Resolver
	for _, raw := range descriptors {
		d, err := nresolver.ParseDescriptor(raw)
		if err != nil {
			return nil, err
		}
		r, err := nresolver.New(d)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, r)
	}
	if len(resolvers) == 1 {
		return resolvers[0], nil
	}
	return nresolver.NewChain(resolvers...), nil
}

// resolverAwareDial resolves addr's host through r before dialing,
// falling back to the system resolver (via a plain net.Dialer) for the
// dial itself once an IP is known — DNS resolution is the pluggable
// capability, the TCP handshake against a concrete IP is not.
func resolverAwareDial(r nresolver.Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			host, port = addr, ""
		}
		if net.ParseIP(host) != nil {
			var nd net.Dialer
			return nd.DialContext(ctx, network, addr)
		}
		addrs, err := r.LookupHost(ctx, host)
		if err != nil || len(addrs) == 0 {
			var nd net.Dialer
			return nd.DialContext(ctx, network, addr) // fall back to system resolution
		}
		var nd net.Dialer
		var lastErr error
		for _, a := range addrs {
			target := net.JoinHostPort(a.String(), port)
			conn, err := nd.DialContext(ctx, network, target)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

// originAddr splits a "scheme://host:port" origin string into the dial
// target and whether TLS applies.
func originAddr(origin string) (addr string, tlsEnabled bool) {
	scheme, rest, ok := strings.Cut(origin, "://")
	if !ok {
		return origin, true
	}
	tlsEnabled = scheme == "https"
	if !strings.Contains(rest, ":") {
		if tlsEnabled {
			rest += ":443"
		} else {
			rest += ":80"
		}
	}
	return rest, tlsEnabled
}

// proxiedDialer wraps base so its DialContext tunnels through proxyURL
// via CONNECT before any TLS handshake, leaving ClientHello untouched so
// fingerprinting still applies on top of the tunnel.
func proxiedDialer(base *transport.Dialer, proxyURL *url.URL) *transport.Dialer {
	inner := base.DialContext
	return &transport.Dialer{
		ClientHello: base.ClientHello,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialViaProxy(ctx, inner, proxyURL, network, addr)
		},
	}
}

func dialH1Func(dialer *transport.Dialer, proxies *roundRobinProxy) DialFunc {
	return func(ctx context.Context, origin string) (*transport.Conn, error) {
		addr, tlsEnabled := originAddr(origin)
		d := dialer
		if proxyURL, err := proxyForOrigin(ctx, proxies, origin); err == nil && proxyURL != nil {
			d = proxiedDialer(dialer, proxyURL)
		}
		return transport.DialH1(ctx, d, "tcp", addr, tlsEnabled)
	}
}

func dialH2Func(driver *transport.H2Driver, dialer *transport.Dialer, proxies *roundRobinProxy) DialFunc {
	return func(ctx context.Context, origin string) (*transport.Conn, error) {
		addr, tlsEnabled := originAddr(origin)
		if !tlsEnabled {
			return nil, errNoH2C
		}
		d := dialer
		if proxyURL, err := proxyForOrigin(ctx, proxies, origin); err == nil && proxyURL != nil {
			d = proxiedDialer(dialer, proxyURL)
		}
		return driver.DialH2(ctx, d, "tcp", addr)
	}
}

func dialH3Func(driver *transport.H3Driver) DialFunc {
	return func(ctx context.Context, origin string) (*transport.Conn, error) {
		addr, _ := originAddr(origin)
		host, _, _ := net.SplitHostPort(addr)
		return driver.DialH3(ctx, addr, &tls.Config{ServerName: host, NextProtos: []string{"h3"}})
	}
}

type noH2CError struct{}

func (noH2CError) Error() string { return "niquests: h2c (cleartext HTTP/2) is not supported" }

var errNoH2C = noH2CError{}

// Do runs req through the Session's Orchestrator synchronously,
// following redirects per req.Redirects (or the Session default, with
// Follow turned off for HEAD requests).
func (s *Session) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Redirects == nil {
		r := s.opts.Redirects
		if req.Method == http.MethodHead {
			r.Follow = false
		}
		req.Redirects = &r
	}
	return s.orchestrator.Send(ctx, req)
}

// Submit dispatches req through the Session's multiplex Scheduler,
// returning a LazyResponse immediately. It does not check
// SessionOptions.Multiplexed.
func (s *Session) Submit(ctx context.Context, req *Request) *LazyResponse {
	return s.scheduler.Submit(ctx, req)
}

// Async returns an AsyncSession facade over s.
func (s *Session) Async() *AsyncSession { return NewAsyncSession(s) }

// Get, Head, Post, Put, Patch, Delete, Options are the common-verb
// convenience methods, each building a Request with no body except
// Post/Put/Patch which take a BodySpec.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.doMethod(ctx, http.MethodGet, rawURL, BodySpec{})
}

func (s *Session) Head(ctx context.Context, rawURL string) (*Response, error) {
	return s.doMethod(ctx, http.MethodHead, rawURL, BodySpec{})
}

func (s *Session) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return s.doMethod(ctx, http.MethodDelete, rawURL, BodySpec{})
}

func (s *Session) Options(ctx context.Context, rawURL string) (*Response, error) {
	return s.doMethod(ctx, http.MethodOptions, rawURL, BodySpec{})
}

func (s *Session) Post(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return s.doMethod(ctx, http.MethodPost, rawURL, body)
}

func (s *Session) Put(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return s.doMethod(ctx, http.MethodPut, rawURL, body)
}

func (s *Session) Patch(ctx context.Context, rawURL string, body BodySpec) (*Response, error) {
	return s.doMethod(ctx, http.MethodPatch, rawURL, body)
}

func (s *Session) doMethod(ctx context.Context, method, rawURL string, body BodySpec) (*Response, error) {
	req, err := NewRequest(method, rawURL)
	if err != nil {
		return nil, err
	}
	req.Body = body
	return s.Do(ctx, req)
}

// Close releases idle pooled connections. Requests in flight are not
// interrupted.
func (s *Session) Close() error {
	s.Pool.CloseIdle()
	return nil
}

