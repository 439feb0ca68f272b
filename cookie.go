package niquests

import "time"

// SameSite mirrors http.SameSite without requiring callers to import
// net/http just to build a Cookie.
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

// Cookie is a (name, value, domain, path, expires, secure, http-only,
// same-site) tuple.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time // zero value means session cookie (no expiry)
	Secure   bool
	HTTPOnly bool
	SameSite SameSite

	// hostOnly is true when Domain was not set by the server (RFC 6265
	// §5.3): the cookie matches only the exact request host, not
	// subdomains.
	hostOnly bool
}

// Expired reports whether c's expiry has passed as of now.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && now.After(c.Expires)
}
