package niquests

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderAddPreservesOrderAndMultipleValues(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	h.Add("x-foo", "2")
	h.Add("X-Bar", "3")

	assert.Equal(t, []string{"1", "2"}, h.Values("X-Foo"))
	assert.Equal(t, "1, 2", h.Get("X-Foo"))
	assert.Equal(t, []string{"X-Foo", "X-Bar"}, h.Keys())
	assert.Equal(t, 3, h.Len())
}

func TestHeaderSetReplacesAllValues(t *testing.T) {
	h := NewHeader()
	h.Add("Accept", "a")
	h.Add("Accept", "b")
	h.Set("Accept", "c")
	assert.Equal(t, []string{"c"}, h.Values("Accept"))
}

func TestHeaderDelRemovesAllOccurrences(t *testing.T) {
	h := NewHeader()
	h.Add("Accept", "a")
	h.Add("Accept", "b")
	h.Del("accept")
	assert.False(t, h.Has("Accept"))
	assert.Equal(t, 0, h.Len())
}

func TestHeaderCloneIsIndependent(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	c := h.Clone()
	c.Add("X-Foo", "2")
	assert.Equal(t, []string{"1"}, h.Values("X-Foo"))
	assert.Equal(t, []string{"1", "2"}, c.Values("X-Foo"))
}

func TestHeaderMergePrefersHigherButKeepsLowerOnly(t *testing.T) {
	lower := NewHeader()
	lower.Add("Content-Type", "text/plain")
	lower.Add("X-Session", "s")

	higher := NewHeader()
	higher.Add("Content-Type", "application/json")

	merged := Merge(lower, higher)
	assert.Equal(t, []string{"application/json"}, merged.Values("Content-Type"))
	assert.Equal(t, []string{"s"}, merged.Values("X-Session"))
}

func TestHeaderToHTTPHeaderAndBack(t *testing.T) {
	h := NewHeader()
	h.Add("Accept", "a")
	h.Add("Accept", "b")
	h.Add("X-Foo", "1")

	hh := h.ToHTTPHeader()
	back := FromHTTPHeader(hh)

	assert.ElementsMatch(t, []string{"a", "b"}, back.Values("Accept"))
	assert.Equal(t, []string{"1"}, back.Values("X-Foo"))
}

func TestIsAuthoritative(t *testing.T) {
	assert.True(t, IsAuthoritative("content-length"))
	assert.True(t, IsAuthoritative("Host"))
	assert.False(t, IsAuthoritative("X-Custom"))
}

func TestHeaderFromMap(t *testing.T) {
	h := HeaderFromMap(map[string]string{"X-A": "1"})
	assert.Equal(t, "1", h.Get("X-A"))
}

func TestHeaderCloneOfNilReceiver(t *testing.T) {
	var h *Header
	c := h.Clone()
	assert.Equal(t, 0, c.Len())
}
