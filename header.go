package niquests

import (
	"net/textproto"
	"sort"
	"strings"
)

// Authoritative headers are rewritten by the Orchestrator and may not be
// trusted verbatim from a caller-supplied header map.
var authoritativeHeaders = map[string]bool{
	"Content-Length":    true,
	"Host":              true,
	"Connection":        true,
	"Transfer-Encoding": true,
	"Content-Encoding":  true,
}

// IsAuthoritative reports whether name is a header the Orchestrator may
// rewrite regardless of what the caller set.
func IsAuthoritative(name string) bool {
	return authoritativeHeaders[textproto.CanonicalMIMEHeaderKey(name)]
}

// keyValue is one header occurrence, preserving the case it was set with.
type keyValue struct {
	key   string // canonical form, used for comparisons
	raw   string // as supplied by the caller, used when rendering
	value string
}

// Header is an ordered, case-insensitive multimap of HTTP header fields.
// Insertion order is preserved across Set/Add so wire encoders that care
// about field order (H2 HPACK sorting, debugging output) can reproduce it.
type Header struct {
	entries []keyValue
}

// NewHeader returns an empty Header.
func NewHeader() *Header { return &Header{} }

// HeaderFromMap builds a Header from a plain map, iterating in an
// unspecified (map) order — callers that care about order should use Add.
func HeaderFromMap(m map[string]string) *Header {
	h := NewHeader()
	for k, v := range m {
		h.Add(k, v)
	}
	return h
}

func canon(name string) string { return textproto.CanonicalMIMEHeaderKey(name) }

// Add appends a value for name, keeping any existing values for name.
func (h *Header) Add(name, value string) {
	h.entries = append(h.entries, keyValue{key: canon(name), raw: name, value: value})
}

// Set replaces all values for name with a single value.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes all values for name.
func (h *Header) Del(name string) {
	key := canon(name)
	out := h.entries[:0]
	for _, e := range h.entries {
		if e.key != key {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the folded (comma-joined, RFC 7230 §3.2) value for name, or
// "" if absent. Use Values for the individual occurrences.
func (h *Header) Get(name string) string {
	vals := h.Values(name)
	if len(vals) == 0 {
		return ""
	}
	return strings.Join(vals, ", ")
}

// Values returns every value set for name, in insertion order.
func (h *Header) Values(name string) []string {
	key := canon(name)
	var vals []string
	for _, e := range h.entries {
		if e.key == key {
			vals = append(vals, e.value)
		}
	}
	return vals
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	key := canon(name)
	for _, e := range h.entries {
		if e.key == key {
			return true
		}
	}
	return false
}

// Keys returns the distinct canonical header names, in first-occurrence
// order.
func (h *Header) Keys() []string {
	seen := make(map[string]bool, len(h.entries))
	var keys []string
	for _, e := range h.entries {
		if !seen[e.key] {
			seen[e.key] = true
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Len returns the number of header occurrences (not distinct names).
func (h *Header) Len() int { return len(h.entries) }

// Clone returns a deep copy safe for independent mutation.
func (h *Header) Clone() *Header {
	if h == nil {
		return NewHeader()
	}
	c := &Header{entries: make([]keyValue, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// Merge returns a new Header with lower's entries overridden by higher's
// for any name present in both, preserving lower's entries for names
// higher doesn't set. Used to implement the Session < Request < encoder
// precedence when building the outgoing header set.
func Merge(lower, higher *Header) *Header {
	out := NewHeader()
	higherKeys := make(map[string]bool)
	if higher != nil {
		for _, k := range higher.Keys() {
			higherKeys[k] = true
		}
	}
	if lower != nil {
		for _, e := range lower.entries {
			if !higherKeys[e.key] {
				out.entries = append(out.entries, e)
			}
		}
	}
	if higher != nil {
		out.entries = append(out.entries, higher.entries...)
	}
	return out
}

// ToHTTPHeader renders h as a net/http.Header for handoff to a protocol
// driver. Multiple occurrences are preserved.
func (h *Header) ToHTTPHeader() map[string][]string {
	out := make(map[string][]string)
	for _, e := range h.entries {
		out[e.key] = append(out[e.key], e.value)
	}
	return out
}

// FromHTTPHeader builds a Header from a net/http.Header-shaped map,
// preserving the slice order within each key but not cross-key order
// (net/http.Header is itself a map and has none).
func FromHTTPHeader(hh map[string][]string) *Header {
	h := NewHeader()
	keys := make([]string, 0, len(hh))
	for k := range hh {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range hh[k] {
			h.Add(k, v)
		}
	}
	return h
}
