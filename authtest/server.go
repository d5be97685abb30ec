// Package authtest provides an in-process stub of the platform's auth REST
// surface for tests and local development. It speaks the same wire contract
// as the real backend: JSON bodies, structured {"detail": ...} errors, HS256
// JWT access tokens, opaque refresh tokens, and a server-side blacklist.
package authtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eventlytics/go-auth-client/identity"
)

const (
	defaultAccessTTL = 15 * time.Minute
	tokenTypeBearer  = "bearer"
)

type stubUser struct {
	user         identity.User
	passwordHash string
}

// Server is the stub backend. Create one with NewServer, point the SDK at
// URL(), and drive failure scenarios with the Revoke* knobs.
type Server struct {
	httpServer *httptest.Server
	secret     []byte
	accessTTL  time.Duration
	nowTime    func() time.Time

	mu            sync.Mutex
	users         map[string]*stubUser
	refreshTokens map[string]string // refresh token -> user email
	blacklisted   map[string]bool
	issuedAccess  map[string]string // access token -> user email
	nextUserID    int

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	meCalls      atomic.Int64
	logoutCalls  atomic.Int64
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

// WithAccessTTL sets the minted access tokens' lifetime.
func WithAccessTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithNowTime sets the now time function (primarily for testing expiry).
func WithNowTime(nowFunc func() time.Time) ServerOption {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// NewServer starts the stub. Callers must Close it.
func NewServer(options ...ServerOption) *Server {
	s := &Server{
		secret:        []byte(uuid.New().String()),
		accessTTL:     defaultAccessTTL,
		nowTime:       time.Now,
		users:         make(map[string]*stubUser),
		refreshTokens: make(map[string]string),
		blacklisted:   make(map[string]bool),
		issuedAccess:  make(map[string]string),
	}
	for _, opt := range options {
		opt(s)
	}

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/me", s.handleMe)
		r.Post("/logout", s.handleLogout)
		r.Post("/change-password", s.handleChangePassword)
		r.Get("/verify-token", s.handleVerifyToken)
	})
	s.httpServer = httptest.NewServer(router)
	return s
}

// URL returns the stub's origin, suitable as the SDK's base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts the stub down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// AddUser registers a user directly, bypassing the registration endpoint.
func (s *Server) AddUser(email, password string, role identity.Role) identity.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := identity.User{
		ID:         s.nextUserID,
		Email:      email,
		FullName:   strings.Split(email, "@")[0],
		Role:       role,
		IsActive:   true,
		IsVerified: true,
		CreatedAt:  s.nowTime().UTC(),
	}
	s.users[email] = &stubUser{user: user, passwordHash: string(hash)}
	return user
}

// RevokeAccessTokens blacklists every access token issued so far, simulating
// server-side expiry of the current session's access token.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for accessToken := range s.issuedAccess {
		s.blacklisted[accessToken] = true
	}
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens = make(map[string]string)
}

// LoginCalls returns how many login requests the stub has served.
func (s *Server) LoginCalls() int64 { return s.loginCalls.Load() }

// RefreshCalls returns how many refresh requests the stub has served.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// MeCalls returns how many identity requests the stub has served.
func (s *Server) MeCalls() int64 { return s.meCalls.Load() }

// LogoutCalls returns how many logout requests the stub has served.
func (s *Server) LogoutCalls() int64 { return s.logoutCalls.Load() }

func (s *Server) mintAccessToken(user identity.User) string {
	now := s.nowTime()
	claims := jwt.MapClaims{
		"sub":   user.Email,
		"email": user.Email,
		"role":  string(user.Role),
		"type":  "access",
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	s.issuedAccess[signed] = user.Email
	s.mu.Unlock()
	return signed
}

func (s *Server) mintRefreshToken(email string) string {
	refreshToken := uuid.New().String()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = email
	s.mu.Unlock()
	return refreshToken
}

// authenticate resolves the bearer token on the request to a user, enforcing
// signature, expiry, and the blacklist.
func (s *Server) authenticate(r *http.Request) (*identity.User, string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, "", false
	}
	rawToken := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	revoked := s.blacklisted[rawToken]
	s.mu.Unlock()
	if revoked {
		return nil, "", false
	}

	parsed, err := jwt.Parse(rawToken, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.nowTime))
	if err != nil || !parsed.Valid {
		return nil, "", false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", false
	}
	email, _ := claims["email"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	stub, ok := s.users[email]
	if !ok || !stub.user.IsActive {
		return nil, "", false
	}
	user := stub.user
	return &user, rawToken, true
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, map[string]string{"detail": detail})
}
