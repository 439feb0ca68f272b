package niquests

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinProxyCyclesInOrder(t *testing.T) {
	r, err := newRoundRobinProxy([]string{"http://a:8080", "http://b:8080"})
	require.NoError(t, err)

	assert.Equal(t, "a:8080", r.next().Host)
	assert.Equal(t, "b:8080", r.next().Host)
	assert.Equal(t, "a:8080", r.next().Host)
}

func TestRoundRobinProxyEmptyListIsNil(t *testing.T) {
	r, err := newRoundRobinProxy(nil)
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, r.next())
}

func TestRoundRobinProxyRejectsMalformedURL(t *testing.T) {
	_, err := newRoundRobinProxy([]string{"http://%zz"})
	require.Error(t, err)
}

func TestWithRequestProxyOverridesSessionSelector(t *testing.T) {
	session, err := newRoundRobinProxy([]string{"http://session-proxy:8080"})
	require.NoError(t, err)

	override, err := ParseURL("http://override-proxy:9090")
	require.NoError(t, err)

	ctx := withRequestProxy(context.Background(), override)
	u, err := proxyForOrigin(ctx, session, "https://example.com:443")
	require.NoError(t, err)
	assert.Equal(t, "override-proxy:9090", u.Host)
}

func TestProxyForOriginFallsBackToSessionSelector(t *testing.T) {
	session, err := newRoundRobinProxy([]string{"http://session-proxy:8080"})
	require.NoError(t, err)

	u, err := proxyForOrigin(context.Background(), session, "https://example.com:443")
	require.NoError(t, err)
	assert.Equal(t, "session-proxy:8080", u.Host)
}

func TestProxyForOriginHonorsEnvWhenNoSessionSelector(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://env-proxy:3128")
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("NO_PROXY", "")

	u, err := proxyForOrigin(context.Background(), nil, "https://example.com:443")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "env-proxy:3128", u.Host)
}

func TestProxyForOriginRespectsNoProxy(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://env-proxy:3128")
	t.Setenv("NO_PROXY", "example.com")

	u, err := proxyForOrigin(context.Background(), nil, "https://example.com:443")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestNoProxyMatchesSuffixAndWildcard(t *testing.T) {
	t.Setenv("NO_PROXY", "internal.example.com,*.corp")
	assert.True(t, noProxy("internal.example.com"))
	assert.True(t, noProxy("api.internal.example.com"))
	assert.True(t, noProxy("host.corp"))
	assert.False(t, noProxy("other.com"))
}

func TestDialViaProxyNegotiatesConnectTunnel(t *testing.T) {
	clientConn, proxyConn := net.Pipe()
	defer clientConn.Close()
	defer proxyConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		br := bufio.NewReader(proxyConn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		assert.Equal(t, http.MethodConnect, req.Method)
		assert.Equal(t, "target.example:443", req.Host)
		resp := "HTTP/1.1 200 Connection Established\r\n\r\n"
		proxyConn.Write([]byte(resp))
	}()

	base := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return clientConn, nil
	}
	proxyURL, err := url.Parse("http://proxy.example:8080")
	require.NoError(t, err)

	conn, err := dialViaProxy(context.Background(), base, proxyURL, "tcp", "target.example:443")
	require.NoError(t, err)
	assert.Same(t, clientConn, conn)
	<-done
}

func TestDialViaProxyErrorsOnNonOKStatus(t *testing.T) {
	clientConn, proxyConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		br := bufio.NewReader(proxyConn)
		http.ReadRequest(br)
		proxyConn.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"))
		proxyConn.Close()
	}()

	base := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return clientConn, nil
	}
	proxyURL, err := url.Parse("http://proxy.example:8080")
	require.NoError(t, err)

	_, err = dialViaProxy(context.Background(), base, proxyURL, "tcp", "target.example:443")
	require.Error(t, err)
}
