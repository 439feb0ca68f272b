package niquests

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// jarKey identifies a stored cookie by (domain, path, name) for the jar
// index.
type jarKey struct {
	domain string
	path   string
	name   string
}

// Jar is a RFC 6265 cookie store keyed by (domain, path, name). It
// exposes a merge operation so a single request's cookie additions can
// be layered on top of the jar's contents without mutating jar state.
type Jar struct {
	mu      sync.Mutex
	cookies map[jarKey]*Cookie
}

// NewJar returns an empty Jar.
func NewJar() *Jar {
	return &Jar{cookies: make(map[jarKey]*Cookie)}
}

// Set stores c in the jar, indexed by (domain, path, name). A zero Domain
// is host-only and matches the exact request host only.
func (j *Jar) Set(c *Cookie) {
	if c.Path == "" {
		c.Path = "/"
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies[jarKey{domain: strings.ToLower(c.Domain), path: c.Path, name: c.Name}] = c
}

// Clear removes every cookie from the jar.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = make(map[jarKey]*Cookie)
}

// ClearExpired removes every cookie whose expiry has passed as of now.
func (j *Jar) ClearExpired(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for k, c := range j.cookies {
		if c.Expired(now) {
			delete(j.cookies, k)
		}
	}
}

// ScopedClear removes every cookie whose Domain matches domain (exact or
// suffix, per RFC 6265 §5.1.3).
func (j *Jar) ScopedClear(domain string) {
	domain = strings.ToLower(domain)
	j.mu.Lock()
	defer j.mu.Unlock()
	for k, c := range j.cookies {
		if domainMatches(c.Domain, c.hostOnly, domain) {
			delete(j.cookies, k)
		}
	}
}

// Iterate calls fn for every non-expired cookie currently stored.
func (j *Jar) Iterate(fn func(*Cookie)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range j.cookies {
		if !c.Expired(now) {
			fn(c)
		}
	}
}

// GetForRequest returns the cookies that match u per RFC 6265 §5.4:
// domain match, path-prefix match, Secure implies https, not expired.
// SameSite is enforced by the caller when it knows whether the request
// is cross-site (the jar itself has no notion of "current page").
func (j *Jar) GetForRequest(u *URL) []*Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	var out []*Cookie
	for _, c := range j.cookies {
		if c.Expired(now) {
			continue
		}
		if !domainMatches(c.Domain, c.hostOnly, u.Host) {
			continue
		}
		if !pathMatches(c.Path, u.Path) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// UpdateFromResponse parses Set-Cookie occurrences in headers and stores
// each resulting Cookie, scoped to u (the response's URL) when the
// server did not specify a Domain attribute.
func (j *Jar) UpdateFromResponse(u *URL, headers *Header) {
	for _, raw := range headers.Values("Set-Cookie") {
		hc := parseSetCookie(raw)
		if hc == nil {
			continue
		}
		c := &Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Path:     hc.Path,
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
			SameSite: sameSiteFrom(hc.SameSite),
		}
		if hc.Domain == "" {
			c.Domain = u.Host
			c.hostOnly = true
		} else {
			c.Domain = strings.TrimPrefix(strings.ToLower(hc.Domain), ".")
		}
		if c.Path == "" {
			c.Path = defaultCookiePath(u.Path)
		}
		if !hc.Expires.IsZero() {
			c.Expires = hc.Expires
		} else if hc.MaxAge != 0 {
			if hc.MaxAge < 0 {
				c.Expires = time.Unix(0, 0)
			} else {
				c.Expires = time.Now().Add(time.Duration(hc.MaxAge) * time.Second)
			}
		}
		if c.Expires.IsZero() || !c.Expires.Before(time.Unix(1, 0)) {
			j.Set(c)
		} else {
			// Max-Age <= 0 or an Expires in the deep past: the server
			// is asking us to delete the cookie immediately.
			j.mu.Lock()
			delete(j.cookies, jarKey{domain: strings.ToLower(c.Domain), path: c.Path, name: c.Name})
			j.mu.Unlock()
		}
	}
}

// parseSetCookie reuses net/http's RFC 6265 attribute parser rather than
// reimplementing cookie-attribute tokenizing by hand.
func parseSetCookie(raw string) *http.Cookie {
	header := http.Header{}
	header.Add("Set-Cookie", raw)
	resp := http.Response{Header: header}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil
	}
	return cookies[0]
}

func sameSiteFrom(s http.SameSite) SameSite {
	switch s {
	case http.SameSiteLaxMode:
		return SameSiteLax
	case http.SameSiteStrictMode:
		return SameSiteStrict
	case http.SameSiteNoneMode:
		return SameSiteNone
	default:
		return SameSiteDefault
	}
}

func defaultCookiePath(reqPath string) string {
	if reqPath == "" || reqPath[0] != '/' {
		return "/"
	}
	if i := strings.LastIndexByte(reqPath, '/'); i > 0 {
		return reqPath[:i]
	}
	return "/"
}

// domainMatches implements RFC 6265 §5.1.3: an exact match always
// qualifies; for a non-host-only cookie, a dot-boundary suffix match
// also qualifies, as long as the cookie's domain is not a public suffix
// (so "co.uk" cannot be set as a supercookie domain).
func domainMatches(cookieDomain string, hostOnly bool, reqHost string) bool {
	cookieDomain = strings.ToLower(cookieDomain)
	reqHost = strings.ToLower(reqHost)
	if cookieDomain == reqHost {
		return true
	}
	if hostOnly {
		return false
	}
	if !strings.HasSuffix(reqHost, "."+cookieDomain) {
		return false
	}
	if eTLD, icann := publicsuffix.PublicSuffix(cookieDomain); icann && eTLD == cookieDomain {
		return false
	}
	return true
}

// pathMatches implements RFC 6265 §5.1.4's path-prefix check.
func pathMatches(cookiePath, reqPath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	if strings.HasSuffix(cookiePath, "/") {
		return true
	}
	return reqPath[len(cookiePath)] == '/'
}

// MergeCookies combines jar cookies for u with a per-request cookie
// overlay without mutating the jar: a user-supplied cookie mapping for
// a single request is layered on top of jar cookies, and wins on name
// collision.
func MergeCookies(jar *Jar, u *URL, overlay map[string]string) []*Cookie {
	var base []*Cookie
	if jar != nil {
		base = jar.GetForRequest(u)
	}
	if len(overlay) == 0 {
		return base
	}
	seen := make(map[string]bool, len(overlay))
	out := make([]*Cookie, 0, len(base)+len(overlay))
	for name, value := range overlay {
		out = append(out, &Cookie{Name: name, Value: value, Domain: u.Host, Path: "/"})
		seen[name] = true
	}
	for _, c := range base {
		if !seen[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// RenderCookieHeader folds cookies into the single Cookie header value
// RFC 6265 §5.4 describes ("cookie-pair"s joined by "; ").
func RenderCookieHeader(cookies []*Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, len(cookies))
	for i, c := range cookies {
		parts[i] = c.Name + "=" + c.Value
	}
	return strings.Join(parts, "; ")
}
