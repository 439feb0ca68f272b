package wire

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidFieldName(t *testing.T) {
	assert.True(t, ValidFieldName("content-type"))
	assert.True(t, ValidFieldName("x-my-header"))
	assert.False(t, ValidFieldName("Content-Type"))
	assert.False(t, ValidFieldName("has space"))
	assert.False(t, ValidFieldName(""))
}

func TestSortedKeyValuesLexicographic(t *testing.T) {
	h := http.Header{}
	h.Set("Zeta", "1")
	h.Set("Alpha", "2")
	h.Add("Alpha", "3")

	got := SortedKeyValues(h)
	assert.Equal(t, "alpha", got[0].Key)
	assert.Equal(t, "zeta", got[1].Key)
	assert.ElementsMatch(t, []string{"2", "3"}, got[0].Values)
}

func TestSortedKeyValuesByExplicitOrder(t *testing.T) {
	h := http.Header{}
	h.Set("content-type", "text/plain")
	h.Set("authorization", "Bearer x")
	h.Set("accept", "*/*")

	got := SortedKeyValuesBy(h, []string{"authorization", "accept", "content-type"})
	keys := make([]string, len(got))
	for i, kv := range got {
		keys[i] = kv.Key
	}
	assert.Equal(t, []string{"authorization", "accept", "content-type"}, keys)
}

func TestSortedKeyValuesByUnlistedKeysFallAfterListed(t *testing.T) {
	h := http.Header{}
	h.Set("x-custom", "1")
	h.Set("authorization", "Bearer x")

	got := SortedKeyValuesBy(h, []string{"authorization"})
	keys := make([]string, len(got))
	for i, kv := range got {
		keys[i] = kv.Key
	}
	assert.Equal(t, []string{"authorization", "x-custom"}, keys)
}
