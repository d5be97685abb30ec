package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/eventlytics/go-auth-client/identity"
)

// Endpoint paths on the backend auth surface.
const (
	LoginPath          = "/api/auth/login"
	RegisterPath       = "/api/auth/register"
	RefreshPath        = "/api/auth/refresh"
	MePath             = "/api/auth/me"
	LogoutPath         = "/api/auth/logout"
	ChangePasswordPath = "/api/auth/change-password"
	VerifyTokenPath    = "/api/auth/verify-token"
)

const defaultTimeout = 15 * time.Second

// Client is a typed client for the backend auth endpoints. All methods take a
// context and return either a decoded response or an error; backend failures
// with a structured detail surface as *Error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client. The session manager uses
// this to route calls through its middleware chain.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client for the given API origin.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var tokens TokenPair
	err := c.do(ctx, http.MethodPost, LoginPath, loginRequest{Email: email, Password: password}, "", &tokens)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] do")
	}
	return &tokens, nil
}

// Register creates a new account. It does not authenticate the caller.
func (c *Client) Register(ctx context.Context, request RegisterRequest) (*identity.User, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	var user identity.User
	if err := c.do(ctx, http.MethodPost, RegisterPath, request, "", &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Register] do")
	}
	return &user, nil
}

// Refresh mints a new access token. The refresh token travels in the request
// body, never in a header, so bearer-credential semantics stay unambiguous
// and header-logging middleware cannot capture it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var tokens TokenPair
	err := c.do(ctx, http.MethodPost, RefreshPath, refreshRequest{RefreshToken: refreshToken}, "", &tokens)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh] do")
	}
	return &tokens, nil
}

// Me fetches the identity of the bearer of accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*identity.User, error) {
	var user identity.User
	if err := c.do(ctx, http.MethodGet, MePath, nil, accessToken, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.Me] do")
	}
	return &user, nil
}

// Logout asks the backend to blacklist the access token.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, LogoutPath, nil, accessToken, nil); err != nil {
		return errors.Wrap(err, "[Client.Logout] do")
	}
	return nil
}

// ChangePassword changes the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	body := changePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}
	if err := c.do(ctx, http.MethodPost, ChangePasswordPath, body, accessToken, nil); err != nil {
		return errors.Wrap(err, "[Client.ChangePassword] do")
	}
	return nil
}

// VerifyToken checks whether the access token is still accepted server-side.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) (*TokenVerification, error) {
	var verification TokenVerification
	if err := c.do(ctx, http.MethodGet, VerifyTokenPath, nil, accessToken, &verification); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyToken] do")
	}
	return &verification, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, accessToken string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "Marshal")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "NewRequestWithContext")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "Do")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "ReadAll")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, respBody)
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Str("detail", apiErr.Detail).Msg("backend rejected request")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "Unmarshal")
	}
	return nil
}
