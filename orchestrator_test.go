package niquests

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareMergesSessionHeadersBelowRequestHeaders(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil, nil, nil, RetryPolicy{}, nil)
	sessionHeaders := NewHeader()
	sessionHeaders.Set("X-Session", "session-value")
	sessionHeaders.Set("Authorization", "session-auth")
	o.Headers = sessionHeaders

	req, err := NewRequest("GET", "https://example.com/")
	require.NoError(t, err)
	req.Header.Set("Authorization", "request-auth")

	httpReq, err := o.prepare(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "session-value", httpReq.Header.Get("X-Session"))
	assert.Equal(t, "request-auth", httpReq.Header.Get("Authorization"))
}

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "fake timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return false }

func TestIsTimeoutErrRecognizesContextAndNetErrors(t *testing.T) {
	assert.True(t, isTimeoutErr(context.DeadlineExceeded))
	assert.True(t, isTimeoutErr(&RequestError{Kind: KindTimeout, Op: "test", Err: context.DeadlineExceeded}))

	var netErr net.Error = fakeTimeoutError{}
	assert.True(t, isTimeoutErr(netErr))

	assert.False(t, isTimeoutErr(errors.New("some other failure")))
}

func TestDispatchOnceWrapsConnectFailureAsKindConnection(t *testing.T) {
	pool := NewPool(10, 10, NewAltSvcCache(), failingDial, failingDial, failingDial)
	o := NewOrchestrator(pool, nil, nil, nil, nil, RetryPolicy{Times: 0}, nil)

	req, err := NewRequest("GET", "https://example.com/")
	require.NoError(t, err)

	_, err = o.dispatchOnce(context.Background(), req)
	require.Error(t, err)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindConnection, reqErr.Kind)
}
