package niquests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURLNormalizesHostAndDefaultPort(t *testing.T) {
	u, err := ParseURL("HTTPS://Example.COM/a/b?x=1&y=2#frag")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, "443", u.Port)
	assert.Equal(t, "/a/b", u.Path)
	assert.Equal(t, "frag", u.Fragment)
	assert.Equal(t, []QueryParam{{Key: "x", Value: "1"}, {Key: "y", Value: "2"}}, u.Query)
}

func TestParseURLRejectsUnsupportedScheme(t *testing.T) {
	_, err := ParseURL("ftp://example.com/file")
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindInvalidURL, reqErr.Kind)
}

func TestURLDefaultPathIsSlash(t *testing.T) {
	u, err := ParseURL("http://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", u.Path)
}

func TestURLRenderRoundTrip(t *testing.T) {
	raw := "http://example.com:8080/path?b=2&a=1"
	u, err := ParseURL(raw)
	require.NoError(t, err)

	rendered := u.Render()
	reparsed, err := ParseURL(rendered)
	require.NoError(t, err)
	assert.Equal(t, u, reparsed)
}

func TestURLAuthorityElidesDefaultPort(t *testing.T) {
	u, err := ParseURL("https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "example.com", u.Authority())

	u2, err := ParseURL("https://example.com:8443/")
	require.NoError(t, err)
	assert.Equal(t, "example.com:8443", u2.Authority())
}

func TestURLOrigin(t *testing.T) {
	u, err := ParseURL("https://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:443", u.Origin())
}

func TestURLSameOriginAndSameHost(t *testing.T) {
	a, err := ParseURL("https://example.com/a")
	require.NoError(t, err)
	b, err := ParseURL("https://example.com/b")
	require.NoError(t, err)
	c, err := ParseURL("http://example.com/b")
	require.NoError(t, err)

	assert.True(t, a.SameOrigin(b))
	assert.False(t, a.SameOrigin(c))
	assert.True(t, a.SameHost(c))
}

func TestURLQueryPreservesDuplicateKeyOrder(t *testing.T) {
	u, err := ParseURL("http://example.com/?a=1&a=2&b=3")
	require.NoError(t, err)
	assert.Equal(t, []QueryParam{
		{Key: "a", Value: "1"},
		{Key: "a", Value: "2"},
		{Key: "b", Value: "3"},
	}, u.Query)
	assert.Equal(t, "a=1&a=2&b=3", RenderQuery(u.Query))
}

func TestURLMergeQueryMapDropsNilAndExpandsSlices(t *testing.T) {
	u, err := ParseURL("http://example.com/")
	require.NoError(t, err)

	merged := u.MergeQueryMap([]string{"tag", "skip"}, map[string]any{
		"tag":  []any{"a", "b"},
		"skip": nil,
	})
	assert.Equal(t, []QueryParam{{Key: "tag", Value: "a"}, {Key: "tag", Value: "b"}}, merged.Query)
}

func TestURLResolveReference(t *testing.T) {
	base, err := ParseURL("https://example.com/a/b")
	require.NoError(t, err)

	next, err := base.ResolveReference("/c")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/c", next.Render())

	next2, err := base.ResolveReference("https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "other.example", next2.Host)
}

func TestURLIDNANormalization(t *testing.T) {
	u, err := ParseURL("http://EXAMPLE_UNDERSCORE.com/")
	require.NoError(t, err)
	// strict IDNA lookup rejects underscores; ParseURL falls back to a
	// lowercased host rather than failing the parse.
	assert.Equal(t, "example_underscore.com", u.Host)
}
