// Package session owns the client's authentication state: the current user,
// the access token, and the machinery that acquires, attaches, refreshes, and
// revokes credentials for every call to the backend.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/eventlytics/go-auth-client/api"
	"github.com/eventlytics/go-auth-client/identity"
	"github.com/eventlytics/go-auth-client/notify"
	"github.com/eventlytics/go-auth-client/store"
	"github.com/eventlytics/go-auth-client/transport"
)

const defaultTimeout = 15 * time.Second

// Session is a point-in-time snapshot of the authentication state. Exactly
// one logical session exists per Manager; it is mutated only through Manager
// operations and cleared on logout or unrecoverable auth failure.
type Session struct {
	User        *identity.User
	AccessToken string
	IsLoading   bool
}

// Manager is the single authority for the session. It mediates every
// outbound request needing authorization and transparently recovers from
// access-token expiry via the refresh token, falling back to forced logout
// when recovery is impossible.
type Manager struct {
	apiClient  *api.Client
	tokenStore store.TokenStore
	notifier   notify.Notifier
	log        zerolog.Logger
	timeout    time.Duration
	baseRT     http.RoundTripper
	collector  *transport.Collector
	httpClient *http.Client

	refreshGroup singleflight.Group
	background   sync.WaitGroup

	mu          sync.Mutex
	epoch       uint64
	user        *identity.User
	accessToken string
	loading     bool
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithNotifier sets the user-facing notification surface.
func WithNotifier(notifier notify.Notifier) ManagerOption {
	return func(m *Manager) {
		m.notifier = notifier
	}
}

// WithTimeout sets the per-request timeout for backend calls.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithBaseTransport sets the innermost RoundTripper of the request pipeline
// (primarily for testing).
func WithBaseTransport(rt http.RoundTripper) ManagerOption {
	return func(m *Manager) {
		m.baseRT = rt
	}
}

// WithMetrics registers the pipeline's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) ManagerOption {
	return func(m *Manager) {
		m.collector = transport.NewCollector(reg)
	}
}

// New initialises a Manager for the backend at baseURL with tokens persisted
// in tokenStore. The manager builds its own request pipeline; use HTTPClient
// to make further authenticated calls through it.
func New(baseURL string, tokenStore store.TokenStore, options ...ManagerOption) (*Manager, error) {
	if baseURL == "" {
		return nil, errors.New("[session.New] baseURL is required")
	}
	if tokenStore == nil {
		return nil, errors.New("[session.New] tokenStore is required")
	}

	m := &Manager{
		tokenStore: tokenStore,
		log:        zerolog.Nop(),
		timeout:    defaultTimeout,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notify.NewLogNotifier(m.log)
	}

	pipeline := transport.Chain(m.baseRT,
		transport.RequestID(),
		transport.Logging(m.log),
		transport.Metrics(m.collector),
		transport.Bearer(m),
		transport.RefreshOn401(m, m.log, m.collector),
	)
	m.httpClient = &http.Client{Transport: pipeline, Timeout: m.timeout}
	m.apiClient = api.NewClient(baseURL, api.WithHTTPClient(m.httpClient), api.WithLogger(m.log))

	return m, nil
}

// AccessToken returns the current access token, or "" when no session is
// active. It implements transport.TokenProvider and token.Provider.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessToken
}

// User returns the currently loaded user profile, or nil.
func (m *Manager) User() *identity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// IsAuthenticated reports whether a user is currently loaded.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// IsLoading reports whether an authentication operation is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Snapshot returns the session state at this instant.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Session{User: m.user, AccessToken: m.accessToken, IsLoading: m.loading}
}

// HasRole returns true iff a user is loaded and its role is a member of
// allowedRoles. No user loaded is false, not an error.
func (m *Manager) HasRole(allowedRoles ...identity.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.HasRole(allowedRoles...)
}

// HTTPClient returns a client whose requests pass through the session's
// pipeline: bearer attach, refresh-on-401, logging, metrics.
func (m *Manager) HTTPClient() *http.Client {
	return m.httpClient
}

// Wait blocks until background best-effort calls spawned by Logout have
// finished. Each call carries its own timeout, so Wait is bounded. Intended
// for short-lived processes that exit right after logging out.
func (m *Manager) Wait() {
	m.background.Wait()
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = loading
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}
