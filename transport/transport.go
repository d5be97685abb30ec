// Package transport is the outbound request pipeline: an ordered chain of
// http.RoundTripper stages every call to the backend passes through. Stages
// attach bearer credentials, correlate requests, log, count, and transparently
// recover from access-token expiry.
package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TokenProvider supplies the current access token. An empty string means no
// session is active and no credential is attached.
type TokenProvider interface {
	AccessToken() string
}

// Stage wraps a RoundTripper with one pipeline behaviour.
type Stage func(http.RoundTripper) http.RoundTripper

// Chain builds the pipeline. Stages are applied in reverse order so the first
// stage listed is the outermost: Chain(base, A, B) runs A, then B, then base.
func Chain(base http.RoundTripper, stages ...Stage) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	chained := base
	for i := len(stages) - 1; i >= 0; i-- {
		chained = stages[i](chained)
	}
	return chained
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RequestID assigns a correlation ID header to every outbound request that
// does not already carry one.
func RequestID() Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("X-Request-ID") == "" {
				req = req.Clone(req.Context())
				req.Header.Set("X-Request-ID", uuid.New().String())
			}
			return next.RoundTrip(req)
		})
	}
}

// Logging logs every request and its outcome at debug level.
func Logging(log zerolog.Logger) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			event := log.Debug().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Dur("duration", time.Since(start))
			if err != nil {
				event.Err(err).Msg("request failed")
				return resp, err
			}
			event.Int("status", resp.StatusCode).Msg("request completed")
			return resp, nil
		})
	}
}

// Metrics counts requests by method and status class.
func Metrics(collector *Collector) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				collector.ObserveRequest(req.Method, "error")
				return resp, err
			}
			collector.ObserveRequest(req.Method, statusClass(resp.StatusCode))
			return resp, nil
		})
	}
}

// Bearer attaches the current access token as a bearer credential unless the
// request already carries an Authorization header.
func Bearer(provider TokenProvider) Stage {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "" {
				if accessToken := provider.AccessToken(); accessToken != "" {
					req = req.Clone(req.Context())
					req.Header.Set("Authorization", "Bearer "+accessToken)
				}
			}
			return next.RoundTrip(req)
		})
	}
}

type skipRefreshKey struct{}

// WithoutRefresh marks a request as exempt from the refresh-on-401 stage.
// The refresh call itself travels under this marker so a 401 during refresh
// is treated as refresh failure, never retried.
func WithoutRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipRefreshKey{}, true)
}

func refreshExempt(ctx context.Context) bool {
	exempt, _ := ctx.Value(skipRefreshKey{}).(bool)
	return exempt
}

func bearerFrom(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func statusClass(statusCode int) string {
	switch {
	case statusCode < 300:
		return "2xx"
	case statusCode < 400:
		return "3xx"
	case statusCode < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
