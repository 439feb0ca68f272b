package niquests

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// AltSvcEntry is one alternative-service offer: (origin, alternate
// authority, protocol-id, expiry), per RFC 7838.
type AltSvcEntry struct {
	Origin    string
	Authority string // "host:port" of the alternate endpoint
	Protocol  string // "h3", "h2", "h2c", ...
	Expiry    time.Time
}

func (e AltSvcEntry) expired(now time.Time) bool { return now.After(e.Expiry) }

// AltSvcCache remembers upgrade offers per origin. It is process-local
// to the owning Session: a standalone cache the Pool can query
// independent of which driver happens to be active.
type AltSvcCache struct {
	mu      sync.Mutex
	entries map[string][]AltSvcEntry // keyed by origin
}

// NewAltSvcCache returns an empty cache.
func NewAltSvcCache() *AltSvcCache {
	return &AltSvcCache{entries: make(map[string][]AltSvcEntry)}
}

// Observe records the alternatives named in an Alt-Svc header value for
// origin, replacing any prior entries for that origin. A value of
// "clear" removes all entries for the origin per RFC 7838 §3.1.
func (c *AltSvcCache) Observe(origin, headerValue string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(headerValue) == "clear" {
		delete(c.entries, origin)
		return
	}
	var fresh []AltSvcEntry
	for _, offer := range strings.Split(headerValue, ",") {
		entry, ok := parseAltSvcOffer(origin, offer, now)
		if ok {
			fresh = append(fresh, entry)
		}
	}
	if len(fresh) > 0 {
		c.entries[origin] = fresh
	}
}

// ObserveH3DNSRecord records an H3 offer learned from an HTTPS DNS
// record rather than a header.
func (c *AltSvcCache) ObserveH3DNSRecord(origin, authority string, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[origin] = append(c.entries[origin], AltSvcEntry{
		Origin: origin, Authority: authority, Protocol: "h3", Expiry: now.Add(ttl),
	})
}

func parseAltSvcOffer(origin, offer string, now time.Time) (AltSvcEntry, bool) {
	offer = strings.TrimSpace(offer)
	protoAndAuth, rest, _ := strings.Cut(offer, ";")
	proto, quotedAuth, ok := strings.Cut(protoAndAuth, "=")
	if !ok {
		return AltSvcEntry{}, false
	}
	authority := strings.Trim(strings.TrimSpace(quotedAuth), `"`)
	maxAge := 24 * time.Hour // RFC 7838 default when ma is absent
	for _, param := range strings.Split(rest, ";") {
		param = strings.TrimSpace(param)
		if k, v, ok := strings.Cut(param, "="); ok && strings.EqualFold(k, "ma") {
			if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				maxAge = time.Duration(secs) * time.Second
			}
		}
	}
	return AltSvcEntry{
		Origin: origin, Authority: authority, Protocol: strings.TrimSpace(proto),
		Expiry: now.Add(maxAge),
	}, true
}

// BestH3 returns an unexpired H3 alternative for origin, if any, for use
// by Pool.Acquire's protocol-selection step.
func (c *AltSvcCache) BestH3(origin string, now time.Time) (AltSvcEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries[origin] {
		if e.Protocol == "h3" && !e.expired(now) {
			return e, true
		}
	}
	return AltSvcEntry{}, false
}

// Sweep drops every expired entry across all origins.
func (c *AltSvcCache) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for origin, entries := range c.entries {
		var live []AltSvcEntry
		for _, e := range entries {
			if !e.expired(now) {
				live = append(live, e)
			}
		}
		if len(live) == 0 {
			delete(c.entries, origin)
		} else {
			c.entries[origin] = live
		}
	}
}
