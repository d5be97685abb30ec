package transport_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlytics/go-auth-client/transport"
)

type fakeRoundTripper struct {
	calls     atomic.Int64
	responses func(req *http.Request, call int64) *http.Response
}

func (f *fakeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	call := f.calls.Add(1)
	return f.responses(req, call), nil
}

func response(statusCode int) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     http.Header{},
	}
}

type staticProvider string

func (p staticProvider) AccessToken() string { return string(p) }

type fakeRefresher struct {
	calls    atomic.Int64
	newToken string
	err      error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.newToken, f.err
}

func newRequest(t *testing.T, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://backend/api/data", body)
	require.NoError(t, err)
	return req
}

func TestBearerAttachesToken(t *testing.T) {
	var seen string
	base := &fakeRoundTripper{responses: func(req *http.Request, _ int64) *http.Response {
		seen = req.Header.Get("Authorization")
		return response(http.StatusOK)
	}}

	pipeline := transport.Chain(base, transport.Bearer(staticProvider("abc")))
	resp, err := pipeline.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer abc", seen)
}

func TestBearerSkipsWhenNoToken(t *testing.T) {
	var seen string
	base := &fakeRoundTripper{responses: func(req *http.Request, _ int64) *http.Response {
		seen = req.Header.Get("Authorization")
		return response(http.StatusOK)
	}}

	pipeline := transport.Chain(base, transport.Bearer(staticProvider("")))
	resp, err := pipeline.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, seen)
}

func TestBearerKeepsExplicitHeader(t *testing.T) {
	var seen string
	base := &fakeRoundTripper{responses: func(req *http.Request, _ int64) *http.Response {
		seen = req.Header.Get("Authorization")
		return response(http.StatusOK)
	}}

	pipeline := transport.Chain(base, transport.Bearer(staticProvider("abc")))
	req := newRequest(t, nil)
	req.Header.Set("Authorization", "Bearer explicit")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer explicit", seen)
}

func TestRequestIDAssigned(t *testing.T) {
	var seen string
	base := &fakeRoundTripper{responses: func(req *http.Request, _ int64) *http.Response {
		seen = req.Header.Get("X-Request-ID")
		return response(http.StatusOK)
	}}

	pipeline := transport.Chain(base, transport.RequestID())
	resp, err := pipeline.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, seen)
}

func TestRefreshOn401RetriesOnce(t *testing.T) {
	var tokens []string
	base := &fakeRoundTripper{responses: func(req *http.Request, call int64) *http.Response {
		tokens = append(tokens, req.Header.Get("Authorization"))
		if call == 1 {
			return response(http.StatusUnauthorized)
		}
		return response(http.StatusOK)
	}}
	refresher := &fakeRefresher{newToken: "fresh"}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	req := newRequest(t, nil)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The caller sees the resubmitted response, not the 401.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), refresher.calls.Load())
	require.Equal(t, []string{"Bearer stale", "Bearer fresh"}, tokens)
}

func TestRefreshOn401ReplaysBody(t *testing.T) {
	var bodies []string
	base := &fakeRoundTripper{responses: func(req *http.Request, call int64) *http.Response {
		data, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(data))
		if call == 1 {
			return response(http.StatusUnauthorized)
		}
		return response(http.StatusOK)
	}}
	refresher := &fakeRefresher{newToken: "fresh"}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	req := newRequest(t, bytes.NewReader([]byte(`{"q":1}`)))
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`{"q":1}`, `{"q":1}`}, bodies)
}

func TestRefreshOn401SingleRetryBound(t *testing.T) {
	base := &fakeRoundTripper{responses: func(_ *http.Request, _ int64) *http.Response {
		return response(http.StatusUnauthorized)
	}}
	refresher := &fakeRefresher{newToken: "fresh"}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	req := newRequest(t, nil)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The resubmission also 401s: it propagates, with no second refresh.
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), refresher.calls.Load())
	assert.Equal(t, int64(2), base.calls.Load())
}

func TestRefreshOn401PropagatesWhenRefreshFails(t *testing.T) {
	base := &fakeRoundTripper{responses: func(_ *http.Request, _ int64) *http.Response {
		return response(http.StatusUnauthorized)
	}}
	refresher := &fakeRefresher{err: context.DeadlineExceeded}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	req := newRequest(t, nil)
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), base.calls.Load())
}

func TestRefreshOn401ExemptRequests(t *testing.T) {
	base := &fakeRoundTripper{responses: func(_ *http.Request, _ int64) *http.Response {
		return response(http.StatusUnauthorized)
	}}
	refresher := &fakeRefresher{newToken: "fresh"}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	req := newRequest(t, nil).WithContext(transport.WithoutRefresh(context.Background()))
	req.Header.Set("Authorization", "Bearer stale")
	resp, err := pipeline.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(0), refresher.calls.Load())
}

func TestRefreshOn401IgnoresUnauthenticatedRequests(t *testing.T) {
	base := &fakeRoundTripper{responses: func(_ *http.Request, _ int64) *http.Response {
		return response(http.StatusUnauthorized)
	}}
	refresher := &fakeRefresher{newToken: "fresh"}

	pipeline := transport.Chain(base, transport.RefreshOn401(refresher, zerolog.Nop(), nil))
	resp, err := pipeline.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(0), refresher.calls.Load())
}

func TestChainOrder(t *testing.T) {
	var order []string
	stage := func(name string) transport.Stage {
		return func(next http.RoundTripper) http.RoundTripper {
			return stageFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := &fakeRoundTripper{responses: func(_ *http.Request, _ int64) *http.Response {
		return response(http.StatusOK)
	}}

	pipeline := transport.Chain(base, stage("outer"), stage("inner"))
	resp, err := pipeline.RoundTrip(newRequest(t, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, []string{"outer", "inner"}, order)
}

type stageFunc func(*http.Request) (*http.Response, error)

func (f stageFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
