package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Refresher exchanges the refresh token for a new access token. staleToken is
// the access token that was rejected; implementations use it to de-duplicate
// concurrent refreshes (a caller whose stale token has already been replaced
// gets the replacement without a second network call). On failure the
// implementation is responsible for tearing the session down.
type Refresher interface {
	Refresh(ctx context.Context, staleToken string) (string, error)
}

// RefreshOn401 recovers from access-token expiry. When a bearer-authenticated
// request comes back 401, the stage refreshes the access token, rewrites the
// request's Authorization header, and resubmits it exactly once. The caller
// receives the resubmitted response, never the 401. If the refresh fails, or
// the resubmission fails again, the failure propagates untouched.
//
// Requests marked with WithoutRefresh pass through, so a refresh call that
// itself receives a 401 is never retried.
func RefreshOn401(refresher Refresher, log zerolog.Logger, collector *Collector) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return &refreshRoundTripper{next: next, refresher: refresher, log: log, collector: collector}
	}
}

type refreshRoundTripper struct {
	next      http.RoundTripper
	refresher Refresher
	log       zerolog.Logger
	collector *Collector
}

func (rt *refreshRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if refreshExempt(req.Context()) {
		return resp, nil
	}

	staleToken := bearerFrom(req)
	if staleToken == "" {
		// Not a bearer-authenticated request; nothing to refresh.
		return resp, nil
	}

	// The resubmission needs a fresh body. Requests built by http.NewRequest
	// from a byte reader always carry GetBody; anything else cannot be
	// replayed safely, so the 401 propagates.
	if req.Body != nil && req.GetBody == nil {
		rt.log.Warn().Str("path", req.URL.Path).Msg("401 on request with non-replayable body, skipping refresh retry")
		return resp, nil
	}

	newToken, refreshErr := rt.refresher.Refresh(req.Context(), staleToken)
	if refreshErr != nil {
		rt.collector.ObserveRefresh("failure")
		rt.log.Debug().Err(refreshErr).Str("path", req.URL.Path).Msg("token refresh failed, propagating 401")
		return resp, nil
	}
	rt.collector.ObserveRefresh("success")

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)

	// The original 401 response is replaced; release its body.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	resp.Body.Close()

	rt.collector.ObserveRetry()
	rt.log.Debug().Str("path", req.URL.Path).Msg("resubmitting request with refreshed token")

	// The retry goes straight to the inner chain, so a second 401 cannot
	// trigger a second refresh.
	return rt.next.RoundTrip(retry)
}
