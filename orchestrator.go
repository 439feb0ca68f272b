package niquests

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// RetryPolicy controls when the Orchestrator retries an exchange.
type RetryPolicy struct {
	Times                          int
	HTTPCodes                      map[int]bool
	RetryNonIdempotentOnConnError bool
}

// DefaultRetryPolicy returns the default retry count and retryable
// status codes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Times: 3,
		HTTPCodes: map[int]bool{
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
			http.StatusRequestTimeout:      true,
		},
		RetryNonIdempotentOnConnError: true,
	}
}

// Orchestrator implements the send() algorithm: prepare (merge
// headers/cookies/auth, encode body) -> dispatch (pool acquire +
// begin_exchange) -> redirect loop -> finalize (decode, attach history).
// Redirects and auth are handled explicitly rather than delegated to
// net/http.Client, so off-host credential scrubbing and 303-rewrite
// rules can be enforced.
type Orchestrator struct {
	Pool          *Pool
	Jar           *Jar
	AltSvc        *AltSvcCache
	Decompressors *Decompressors
	Netrc         *netrcFile
	Retry         RetryPolicy
	Logger        *slog.Logger

	// Headers holds Session-wide default headers, lowest precedence in
	// prepare's merge.
	Headers *Header
}

// NewOrchestrator wires an Orchestrator from its Session-scoped
// dependencies.
func NewOrchestrator(pool *Pool, jar *Jar, altSvc *AltSvcCache, decomp *Decompressors, netrc *netrcFile, retry RetryPolicy, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Pool: pool, Jar: jar, AltSvc: altSvc, Decompressors: decomp, Netrc: netrc, Retry: retry, Logger: logger}
}

// Send runs the full prepare/dispatch/redirect/finalize pipeline for
// req and returns the final Response, with History populated for every
// hop that preceded it.
func (o *Orchestrator) Send(ctx context.Context, req *Request) (*Response, error) {
	var history []*Response
	current := req

	redirects := DefaultRedirectPolicy()
	if req.Redirects != nil {
		redirects = *req.Redirects
	} else if current.Method == http.MethodHead {
		redirects.Follow = false
	}

	for hop := 0; ; hop++ {
		resp, err := o.exchange(ctx, current)
		if err != nil {
			return nil, err
		}

		if !redirects.Follow || resp.StatusCode < 300 || resp.StatusCode >= 400 {
			resp.History = history
			return resp, nil
		}

		location := resp.Header.Get("Location")
		if location == "" {
			resp.History = history
			return resp, nil
		}
		if hop >= redirects.maxOr30() {
			resp.Close()
			return nil, &RequestError{Kind: KindTooManyRedirects, Op: "send", URL: current.URL.String()}
		}

		next, err := o.buildRedirectRequest(current, resp, location, redirects)
		if err != nil {
			resp.Close()
			return nil, err
		}
		resp.Close()

		history = append(history, resp)
		current = next
	}
}

// buildRedirectRequest derives the next hop's Request from the response
// that redirected us: preserve method unless 303 (always rewritten to
// GET) or the policy opts into RewriteMethod for 301/302; scrub
// Authorization/Proxy-Authorization when the redirect target's origin
// (scheme, host or port) differs, which covers every off-host target.
func (o *Orchestrator) buildRedirectRequest(prev *Request, resp *Response, location string, policy RedirectPolicy) (*Request, error) {
	target, err := prev.URL.ResolveReference(location)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidURL, Op: "redirect", URL: prev.URL.String(), Err: err}
	}

	next := prev.Clone()
	next.URL = target

	switch {
	case resp.StatusCode == http.StatusSeeOther:
		next.Method = http.MethodGet
		next.Body = BodySpec{}
	case (resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound) &&
		policy.RewriteMethod && prev.Method != http.MethodGet && prev.Method != http.MethodHead:
		next.Method = http.MethodGet
		next.Body = BodySpec{}
	}

	if !target.SameOrigin(prev.URL) {
		next.Header.Del("Authorization")
		next.Header.Del("Proxy-Authorization")
		next.Auth = nil
	}
	return next, nil
}

// exchange performs one prepare/dispatch/finalize round with retry,
// without following redirects itself.
func (o *Orchestrator) exchange(ctx context.Context, req *Request) (*Response, error) {
	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead ||
		req.Method == http.MethodOptions || req.Method == http.MethodPut || req.Method == http.MethodDelete

	for attempt := 0; ; attempt++ {
		resp, err := o.dispatchOnce(ctx, req)
		if err == nil {
			if !o.Retry.HTTPCodes[resp.StatusCode] || attempt >= o.Retry.Times || !idempotent {
				return resp, nil
			}
			resp.Close()
		} else {
			reqErr, _ := err.(*RequestError)
			connFailure := reqErr != nil && (reqErr.Kind == KindConnection || reqErr.Kind == KindTimeout)
			if !connFailure || attempt >= o.Retry.Times || (!idempotent && !o.Retry.RetryNonIdempotentOnConnError) {
				return nil, err
			}
		}

		select {
		case <-time.After(capped2xBackoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// capped2xBackoff computes exponential backoff with 10% jitter, capped
// at 30 seconds.
func capped2xBackoff(attempt int) time.Duration {
	if attempt == 0 {
		return 0
	}
	backoff := float64(uint(1) << uint(attempt-1))
	backoff += backoff * (0.1 * rand.Float64())
	d := time.Duration(backoff * float64(time.Second))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// dispatchOnce runs prepare -> acquire -> begin_exchange -> finalize
// exactly once, no retry. The connect phase (pool acquire, which may
// dial and TLS-handshake) is bounded by a plain wall-clock deadline —
// a dial either completes or it doesn't, there's no partial progress to
// reset a timer on. The exchange itself is bounded by idleTimeout as
// socket inactivity instead: see transport.Driver.BeginExchange.
func (o *Orchestrator) dispatchOnce(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	idleTimeout := req.EffectiveTimeout()

	connectCtx, cancel := context.WithTimeout(ctx, idleTimeout)
	allowH3 := req.Method == http.MethodGet || req.Method == http.MethodHead
	conn, err := o.Pool.Acquire(withRequestProxy(connectCtx, req.Proxy), req.URL.Origin(), allowH3)
	cancel()
	if err != nil {
		return nil, &RequestError{Kind: KindConnection, Op: "acquire", URL: req.URL.String(), Err: err}
	}

	cursor, err := conn.Driver().BeginExchange(ctx, conn, httpReq, idleTimeout)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, &RequestError{Kind: KindTimeout, Op: "exchange", URL: req.URL.String(), Err: err}
		}
		return nil, &RequestError{Kind: KindConnection, Op: "exchange", URL: req.URL.String(), Err: err}
	}

	hr, err := cursor.AwaitHeaders(ctx)
	if err != nil {
		cursor.Close()
		if isTimeoutErr(err) {
			return nil, &RequestError{Kind: KindTimeout, Op: "exchange", URL: req.URL.String(), Err: err}
		}
		return nil, &RequestError{Kind: KindConnection, Op: "exchange", URL: req.URL.String(), Err: err}
	}

	if o.Jar != nil {
		o.Jar.UpdateFromResponse(req.URL, FromHTTPHeader(hr.Header))
	}
	if alt := hr.Header.Get("Alt-Svc"); alt != "" && o.AltSvc != nil {
		o.AltSvc.Observe(req.URL.Origin(), alt, time.Now())
	}

	resp := BuildResponse(hr, req.URL, ResponseConfig{
		Decompressors: o.Decompressors,
		MaxBodySize:   1 << 30,
		Release:       func() { conn.Release(time.Now()) },
	})
	return resp, nil
}

// isTimeoutErr reports whether err represents a deadline/timeout rather
// than some other connection failure, across both the context-based
// (H2/H3 header wait) and net.Error-based (H1 socket deadline) shapes
// BeginExchange can surface.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// prepare builds the *http.Request the drivers consume: merges
// Session-jar cookies with the request's own overlay, resolves
// auth/netrc precedence, sets Accept-Encoding from the active
// decompressors, and encodes the body.
func (o *Orchestrator) prepare(ctx context.Context, req *Request) (*http.Request, error) {
	encoded, err := EncodeBody(req.Body)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidBody, Op: "prepare", URL: req.URL.String(), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), encoded.Reader)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidURL, Op: "prepare", URL: req.URL.String(), Err: err}
	}
	if encoded.ContentLength >= 0 {
		httpReq.ContentLength = encoded.ContentLength
	}

	header := NewHeader()
	if req.Header != nil {
		header = req.Header.Clone()
	}
	if o.Headers != nil {
		header = Merge(o.Headers, header)
	}
	if encoded.ContentType != "" && !header.Has("Content-Type") {
		header.Set("Content-Type", encoded.ContentType)
	}
	if o.Decompressors != nil && !header.Has("Accept-Encoding") {
		header.Set("Accept-Encoding", o.Decompressors.AcceptEncoding())
	}

	var cookies []*Cookie
	if o.Jar != nil {
		cookies = MergeCookies(o.Jar, req.URL, req.Cookies)
	} else if len(req.Cookies) > 0 {
		for name, value := range req.Cookies {
			cookies = append(cookies, &Cookie{Name: name, Value: value})
		}
	}
	if len(cookies) > 0 {
		header.Set("Cookie", RenderCookieHeader(cookies))
	}

	if auth := resolveAuthHeader(req.Auth, req.URL.Host, o.Netrc); auth != "" {
		header.Set("Authorization", auth)
	}

	httpReq.Header = header.ToHTTPHeader()
	return httpReq, nil
}
