// Package wire holds small helpers shared by the protocol drivers for
// putting headers on (or taking them off) the wire in a given order.
package wire

import (
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ValidFieldName reports whether v is a valid lower-cased HTTP/2-style
// header field name, per RFC 7540 §8.1.2: ASCII token characters, no
// uppercase.
func ValidFieldName(v string) bool {
	if len(v) == 0 {
		return false
	}
	for _, r := range v {
		if !httpguts.IsTokenRune(r) {
			return false
		}
		if 'A' <= r && r <= 'Z' {
			return false
		}
	}
	return true
}

// KeyValues is one header name paired with all of its values, the unit
// headerSorter below orders.
type KeyValues struct {
	Key    string
	Values []string
}

// headerSorter orders KeyValues either by an explicit name order (when
// order is non-empty) or lexicographically; this package exposes it for
// any driver (not just H2) that wants a stable header write order.
type headerSorter struct {
	kvs   []KeyValues
	order map[string]int
}

func (s *headerSorter) Len() int      { return len(s.kvs) }
func (s *headerSorter) Swap(i, j int) { s.kvs[i], s.kvs[j] = s.kvs[j], s.kvs[i] }
func (s *headerSorter) Less(i, j int) bool {
	if len(s.order) == 0 {
		return s.kvs[i].Key < s.kvs[j].Key
	}
	si, iok := s.order[strings.ToLower(s.kvs[i].Key)]
	sj, jok := s.order[strings.ToLower(s.kvs[j].Key)]
	switch {
	case !iok && !jok:
		return s.kvs[i].Key < s.kvs[j].Key
	case !iok && jok:
		return false
	case iok && !jok:
		return true
	default:
		return si < sj
	}
}

// SortedKeyValues returns header's entries, with names lower-cased,
// sorted lexicographically by name.
func SortedKeyValues(header http.Header) []KeyValues {
	kvs := make([]KeyValues, 0, len(header))
	for k, vv := range header {
		kvs = append(kvs, KeyValues{strings.ToLower(k), vv})
	}
	sort.Sort(&headerSorter{kvs: kvs})
	return kvs
}

// SortedKeyValuesBy returns header's entries, with names lower-cased,
// ordered by order (names not present in order sort after those that
// are, then lexicographically), for drivers that want to preserve a
// caller's declared header order on the wire.
func SortedKeyValuesBy(header http.Header, order []string) []KeyValues {
	kvs := make([]KeyValues, 0, len(header))
	for k, vv := range header {
		kvs = append(kvs, KeyValues{strings.ToLower(k), vv})
	}
	byName := make(map[string]int, len(order))
	for i, v := range order {
		byName[strings.ToLower(v)] = i
	}
	sort.Sort(&headerSorter{kvs: kvs, order: byName})
	return kvs
}
