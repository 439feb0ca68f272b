package niquests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseURL(t *testing.T, raw string) *URL {
	t.Helper()
	u, err := ParseURL(raw)
	require.NoError(t, err)
	return u
}

func TestJarUpdateFromResponseHostOnlyCookie(t *testing.T) {
	jar := NewJar()
	u := mustParseURL(t, "https://example.com/a")

	h := NewHeader()
	h.Add("Set-Cookie", "session=abc123; Path=/; Secure")
	jar.UpdateFromResponse(u, h)

	got := jar.GetForRequest(u)
	require.Len(t, got, 1)
	assert.Equal(t, "session", got[0].Name)
	assert.Equal(t, "abc123", got[0].Value)
	assert.True(t, got[0].Secure)
}

func TestJarGetForRequestRespectsSecureAndPath(t *testing.T) {
	jar := NewJar()
	u := mustParseURL(t, "https://example.com/account/")

	h := NewHeader()
	h.Add("Set-Cookie", "secure_cookie=1; Path=/account; Secure")
	h.Add("Set-Cookie", "scoped_cookie=1; Path=/other")
	jar.UpdateFromResponse(u, h)

	httpReq := mustParseURL(t, "http://example.com/account/page")
	gotHTTP := jar.GetForRequest(httpReq)
	assert.Empty(t, gotHTTP, "secure cookie must not be sent over plain http")

	httpsReq := mustParseURL(t, "https://example.com/account/page")
	gotHTTPS := jar.GetForRequest(httpsReq)
	names := make([]string, len(gotHTTPS))
	for i, c := range gotHTTPS {
		names[i] = c.Name
	}
	assert.Contains(t, names, "secure_cookie")
	assert.NotContains(t, names, "scoped_cookie")
}

func TestJarUpdateFromResponseMaxAgeZeroDeletesCookie(t *testing.T) {
	jar := NewJar()
	u := mustParseURL(t, "https://example.com/")
	jar.Set(&Cookie{Name: "a", Value: "1", Domain: "example.com", Path: "/"})

	h := NewHeader()
	h.Add("Set-Cookie", "a=deleted; Max-Age=0")
	jar.UpdateFromResponse(u, h)

	assert.Empty(t, jar.GetForRequest(u))
}

func TestJarDomainCookieMatchesSubdomain(t *testing.T) {
	jar := NewJar()
	u := mustParseURL(t, "https://example.com/")

	h := NewHeader()
	h.Add("Set-Cookie", "wide=1; Domain=example.com; Path=/")
	jar.UpdateFromResponse(u, h)

	sub := mustParseURL(t, "https://sub.example.com/")
	assert.Len(t, jar.GetForRequest(sub), 1)
}

func TestJarClearExpired(t *testing.T) {
	jar := NewJar()
	jar.Set(&Cookie{Name: "stale", Domain: "example.com", Path: "/", Expires: time.Now().Add(-time.Hour)})
	jar.Set(&Cookie{Name: "fresh", Domain: "example.com", Path: "/"})

	jar.ClearExpired(time.Now())

	u := mustParseURL(t, "https://example.com/")
	names := make(map[string]bool)
	jar.Iterate(func(c *Cookie) { names[c.Name] = true })
	assert.True(t, names["fresh"])
	assert.False(t, names["stale"])
	_ = u
}

func TestMergeCookiesOverlayWinsOnCollision(t *testing.T) {
	jar := NewJar()
	u := mustParseURL(t, "https://example.com/")
	jar.Set(&Cookie{Name: "a", Value: "jar", Domain: "example.com", Path: "/"})

	merged := MergeCookies(jar, u, map[string]string{"a": "overlay", "b": "new"})
	byName := make(map[string]string, len(merged))
	for _, c := range merged {
		byName[c.Name] = c.Value
	}
	assert.Equal(t, "overlay", byName["a"])
	assert.Equal(t, "new", byName["b"])
}

func TestRenderCookieHeader(t *testing.T) {
	got := RenderCookieHeader([]*Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	assert.Equal(t, "a=1; b=2", got)
}

func TestJarScopedClear(t *testing.T) {
	jar := NewJar()
	jar.Set(&Cookie{Name: "a", Domain: "example.com", Path: "/"})
	jar.Set(&Cookie{Name: "b", Domain: "other.com", Path: "/"})

	jar.ScopedClear("example.com")

	var names []string
	jar.Iterate(func(c *Cookie) { names = append(names, c.Name) })
	assert.Equal(t, []string{"b"}, names)
}
