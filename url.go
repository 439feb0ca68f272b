package niquests

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// QueryParam is one key/value pair in a URL's query string, kept in a
// slice (rather than url.Values's map) so insertion order — and the
// order of repeated keys — survives a parse/render round trip.
type QueryParam struct {
	Key   string
	Value string
}

// URL is a normalized URL: scheme, IDNA-normalized lowercase
// host, explicit-or-default port, percent-encoded path, an ordered query
// multimap, and a fragment that is parsed but never sent on the wire.
type URL struct {
	Scheme   string
	Host     string // lowercased, IDNA-normalized
	Port     string // always set: explicit or scheme default
	Path     string // percent-encoded, defaults to "/"
	Query    []QueryParam
	Fragment string
}

var schemeDefaultPort = map[string]string{
	"http":  "80",
	"https": "443",
}

// ParseURL parses raw into a normalized URL. Percent-encoding follows
// RFC 3986 via the standard library's net/url parser; the host is then
// IDNA-normalized and lowercased, and the query string is re-parsed into
// an order-preserving multimap.
func ParseURL(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidURL, Op: "parse", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &RequestError{Kind: KindInvalidURL, Op: "parse",
			Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	host := u.Hostname()
	normalized, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		// Hosts that are already ASCII (the overwhelmingly common case)
		// may fail strict IDNA lookup rules (e.g. underscores); fall
		// back to the lowercased form rather than rejecting the URL.
		normalized = strings.ToLower(host)
	}

	port := u.Port()
	if port == "" {
		port = schemeDefaultPort[u.Scheme]
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	out := &URL{
		Scheme:   u.Scheme,
		Host:     normalized,
		Port:     port,
		Path:     path,
		Query:    parseQuery(u.RawQuery),
		Fragment: u.Fragment,
	}
	return out, nil
}

func parseQuery(raw string) []QueryParam {
	if raw == "" {
		return nil
	}
	var params []QueryParam
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		params = append(params, QueryParam{Key: key, Value: val})
	}
	return params
}

// Origin returns the scheme+host+port triple used as the connection
// pool bucket key.
func (u *URL) Origin() string {
	return u.Scheme + "://" + u.Host + ":" + u.Port
}

// HasDefaultPort reports whether Port is the scheme's default, so it can
// be elided when rendering an authority.
func (u *URL) HasDefaultPort() bool {
	return u.Port == schemeDefaultPort[u.Scheme]
}

// Authority renders host[:port], eliding the port when it is the
// scheme's default.
func (u *URL) Authority() string {
	if u.HasDefaultPort() {
		return u.Host
	}
	return u.Host + ":" + u.Port
}

// Render returns the canonical string form of u. Render(Parse(s)) is
// idempotent: Parse(Render(Parse(s))) == Parse(s).
func (u *URL) Render() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Authority())
	b.WriteString(u.Path)
	if q := RenderQuery(u.Query); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (u *URL) String() string { return u.Render() }

// RenderQuery encodes params in insertion order: key and (for repeated
// keys) element order is preserved, never alphabetized.
func RenderQuery(params []QueryParam) string {
	if len(params) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// MergeQuery returns a copy of u with params appended to its query.
// None values are elided; Go has no null string, so callers signal
// omission by simply not including the pair — MergeQueryMap below does
// this for a map[string]any where a nil value is dropped.
func (u *URL) MergeQuery(params ...QueryParam) *URL {
	out := *u
	out.Query = append(append([]QueryParam(nil), u.Query...), params...)
	return &out
}

// MergeQueryMap merges params into u's query, preserving the iteration
// order passed in keys (map iteration in Go has no stable order, so
// callers that care about ordering should pass explicit keys; a plain
// map[string]any loses order the same way Python's dict does not — this
// is the one place a Go caller must supply order explicitly).
// Values of nil are dropped. A []any value expands into one QueryParam
// per element, preserving sub-order.
func (u *URL) MergeQueryMap(keys []string, params map[string]any) *URL {
	out := *u
	merged := append([]QueryParam(nil), u.Query...)
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case []string:
			for _, s := range val {
				merged = append(merged, QueryParam{Key: k, Value: s})
			}
		case []any:
			for _, s := range val {
				if s == nil {
					continue
				}
				merged = append(merged, QueryParam{Key: k, Value: fmt.Sprint(s)})
			}
		default:
			merged = append(merged, QueryParam{Key: k, Value: fmt.Sprint(val)})
		}
	}
	out.Query = merged
	return &out
}

// ResolveReference resolves ref against u the way a redirect Location
// header or a Session base URL is resolved (RFC 3986 §5).
func (u *URL) ResolveReference(ref string) (*URL, error) {
	base, err := url.Parse(u.Render())
	if err != nil {
		return nil, err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, &RequestError{Kind: KindInvalidURL, Op: "resolve", Err: err}
	}
	return ParseURL(base.ResolveReference(r).String())
}

// SameOrigin reports whether u and other share scheme, host, and port —
// used by the redirect header-scrubbing rule.
func (u *URL) SameOrigin(other *URL) bool {
	return u.Scheme == other.Scheme && u.Host == other.Host && u.Port == other.Port
}

// SameHost reports whether u and other share just the host, ignoring
// scheme/port.
func (u *URL) SameHost(other *URL) bool {
	return u.Host == other.Host
}
