package niquests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAltSvcObserveAndBestH3(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.Observe("https://example.com:443", `h3=":443"; ma=3600, h2=":443"; ma=3600`, now)

	entry, ok := c.BestH3("https://example.com:443", now)
	require.True(t, ok)
	assert.Equal(t, ":443", entry.Authority)
	assert.Equal(t, "h3", entry.Protocol)
}

func TestAltSvcEntryExpires(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.Observe("https://example.com:443", `h3=":443"; ma=1`, now)

	_, ok := c.BestH3("https://example.com:443", now.Add(2*time.Second))
	assert.False(t, ok)
}

func TestAltSvcClearRemovesEntries(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.Observe("https://example.com:443", `h3=":443"; ma=3600`, now)
	c.Observe("https://example.com:443", "clear", now)

	_, ok := c.BestH3("https://example.com:443", now)
	assert.False(t, ok)
}

func TestAltSvcDefaultMaxAgeWhenMissing(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.Observe("https://example.com:443", `h3=":443"`, now)

	entry, ok := c.BestH3("https://example.com:443", now.Add(23*time.Hour))
	require.True(t, ok)
	assert.Equal(t, ":443", entry.Authority)
}

func TestAltSvcSweepDropsExpiredOrigins(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.Observe("https://a.example:443", `h3=":443"; ma=1`, now)
	c.Observe("https://b.example:443", `h3=":443"; ma=3600`, now)

	c.Sweep(now.Add(2 * time.Second))

	_, okA := c.BestH3("https://a.example:443", now.Add(2*time.Second))
	_, okB := c.BestH3("https://b.example:443", now.Add(2*time.Second))
	assert.False(t, okA)
	assert.True(t, okB)
}

func TestAltSvcObserveH3DNSRecord(t *testing.T) {
	c := NewAltSvcCache()
	now := time.Now()
	c.ObserveH3DNSRecord("https://example.com:443", "example.com:443", time.Hour, now)

	entry, ok := c.BestH3("https://example.com:443", now)
	require.True(t, ok)
	assert.Equal(t, "example.com:443", entry.Authority)
}
