package session

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/eventlytics/go-auth-client/api"
	"github.com/eventlytics/go-auth-client/notify"
	"github.com/eventlytics/go-auth-client/store"
	"github.com/eventlytics/go-auth-client/token"
	"github.com/eventlytics/go-auth-client/transport"
)

// Login sends the credentials to the backend, persists the returned token
// pair, fetches the user's identity, and populates the session. On any
// failure the session is left unchanged, the error is surfaced through the
// notifier, and false is returned.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	m.setLoading(true)
	defer m.setLoading(false)

	epoch := m.currentEpoch()

	tokens, err := m.apiClient.Login(ctx, email, password)
	if err != nil {
		m.log.Debug().Err(err).Str("email", email).Msg("login failed")
		m.notifier.Notify(notify.SeverityError, api.Detail(err))
		return false
	}

	if err := m.persistTokens(ctx, tokens); err != nil {
		m.log.Error().Err(err).Msg("failed to persist tokens after login")
		m.notifier.Notify(notify.SeverityError, api.GenericFailureMessage)
		return false
	}

	user, err := m.apiClient.Me(ctx, tokens.AccessToken)
	if err != nil {
		m.log.Debug().Err(err).Msg("identity fetch after login failed")
		m.discardTokens(ctx)
		m.notifier.Notify(notify.SeverityError, api.Detail(err))
		return false
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// Logged out while the login was in flight; the result is stale.
		m.mu.Unlock()
		m.discardTokens(ctx)
		return false
	}
	m.accessToken = tokens.AccessToken
	m.user = user
	m.mu.Unlock()

	m.log.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("logged in")
	return true
}

// Register sends new-account data to the registration endpoint. It does not
// authenticate the caller; it returns true iff the backend accepted the
// account, surfacing errors with the same contract as Login.
func (m *Manager) Register(ctx context.Context, request api.RegisterRequest) bool {
	m.setLoading(true)
	defer m.setLoading(false)

	user, err := m.apiClient.Register(ctx, request)
	if err != nil {
		m.log.Debug().Err(err).Str("email", request.Email).Msg("registration failed")
		m.notifier.Notify(notify.SeverityError, api.Detail(err))
		return false
	}

	m.log.Info().Str("email", user.Email).Msg("account registered")
	return true
}

// Logout clears the persisted tokens and the in-memory session regardless of
// network state, then fires a best-effort blacklist call to the backend.
// It is idempotent: logging out an already-logged-out session is a no-op that
// still clears any stale persisted state.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	staleToken := m.accessToken
	m.accessToken = ""
	m.user = nil
	m.epoch++
	m.mu.Unlock()

	if err := m.tokenStore.Delete(ctx, store.AccessTokenKey, store.RefreshTokenKey); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear persisted tokens on logout")
	}

	if staleToken != "" {
		m.background.Add(1)
		go func() {
			defer m.background.Done()
			m.blacklist(staleToken)
		}()
	}
	m.log.Info().Msg("logged out")
}

// blacklist tells the backend to revoke the token. Failure is logged, never
// surfaced: logout must always succeed locally even with the server
// unreachable.
func (m *Manager) blacklist(staleToken string) {
	ctx, cancel := context.WithTimeout(transport.WithoutRefresh(context.Background()), m.timeout)
	defer cancel()
	if err := m.apiClient.Logout(ctx, staleToken); err != nil {
		m.log.Debug().Err(err).Msg("best-effort logout call failed")
	}
}

// Bootstrap restores the session from the durable store: if an access token
// is present its identity is fetched (refreshing transparently if it has
// expired); when no viable token remains the session is forced logged out.
// It always concludes by clearing the loading flag.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.setLoading(true)
	defer m.setLoading(false)

	accessToken, err := m.tokenStore.Get(ctx, store.AccessTokenKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn().Err(err).Msg("failed to read persisted access token")
		}
		return
	}

	epoch := m.currentEpoch()

	// A 401 here runs through the refresh stage; Refresh commits the new
	// access token before the request is resubmitted.
	user, err := m.apiClient.Me(ctx, accessToken)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			m.log.Debug().Err(err).Msg("bootstrap identity fetch rejected, clearing session")
			m.forceLogout(ctx, false)
			return
		}
		// Transport failure or transient backend error: the persisted tokens
		// stay put so the session can be restored on the next start.
		m.log.Warn().Err(err).Msg("bootstrap identity fetch failed, keeping persisted tokens")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	if m.accessToken == "" {
		m.accessToken = accessToken
	}
	m.user = user
	m.log.Info().Str("email", user.Email).Msg("session restored")
}

// Refresh exchanges the stored refresh token for a new access token. It
// implements transport.Refresher: concurrent callers holding the same stale
// token share a single in-flight refresh, and a caller whose stale token has
// already been replaced gets the replacement without a network call. On
// refresh failure the session is torn down and a session-expired notice is
// surfaced exactly once.
func (m *Manager) Refresh(ctx context.Context, staleToken string) (string, error) {
	result, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		m.mu.Lock()
		current := m.accessToken
		epoch := m.epoch
		m.mu.Unlock()

		if current != "" && current != staleToken {
			return current, nil
		}

		refreshToken, err := m.tokenStore.Get(ctx, store.RefreshTokenKey)
		if err != nil {
			m.forceLogout(ctx, false)
			return nil, errors.Wrap(NoRefreshTokenErr, "[Manager.Refresh]")
		}

		tokens, err := m.apiClient.Refresh(transport.WithoutRefresh(ctx), refreshToken)
		if err != nil {
			m.forceLogout(ctx, true)
			return nil, errors.Wrap(err, RefreshFailedErr.Error())
		}

		if err := m.persistTokens(ctx, tokens); err != nil {
			m.log.Warn().Err(err).Msg("failed to persist refreshed tokens")
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch {
			// Logged out while the refresh was in flight; discard the result.
			return nil, errors.Wrap(SessionClosedErr, "[Manager.Refresh]")
		}
		m.accessToken = tokens.AccessToken
		m.log.Debug().Msg("access token refreshed")
		return tokens.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ChangePassword changes the authenticated user's password, surfacing errors
// with the same contract as Login.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) bool {
	accessToken := m.AccessToken()
	if accessToken == "" {
		m.notifier.Notify(notify.SeverityError, NotAuthenticatedErr.Error())
		return false
	}

	if err := m.apiClient.ChangePassword(ctx, accessToken, currentPassword, newPassword); err != nil {
		m.log.Debug().Err(err).Msg("password change failed")
		m.notifier.Notify(notify.SeverityError, api.Detail(err))
		return false
	}

	m.log.Info().Msg("password changed")
	return true
}

// Verify asks the backend whether the current access token is still accepted.
func (m *Manager) Verify(ctx context.Context) (*api.TokenVerification, error) {
	accessToken := m.AccessToken()
	if accessToken == "" {
		return nil, NotAuthenticatedErr
	}
	return m.apiClient.VerifyToken(ctx, accessToken)
}

// TokenSource adapts the session to oauth2.TokenSource for use with
// oauth2-aware clients.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return token.NewSource(m)
}

func (m *Manager) persistTokens(ctx context.Context, tokens *api.TokenPair) error {
	if err := m.tokenStore.Set(ctx, store.AccessTokenKey, tokens.AccessToken); err != nil {
		return errors.Wrap(err, "[Manager.persistTokens] Set access token")
	}
	if tokens.RefreshToken != "" {
		if err := m.tokenStore.Set(ctx, store.RefreshTokenKey, tokens.RefreshToken); err != nil {
			return errors.Wrap(err, "[Manager.persistTokens] Set refresh token")
		}
	}
	return nil
}

func (m *Manager) discardTokens(ctx context.Context) {
	if err := m.tokenStore.Delete(ctx, store.AccessTokenKey, store.RefreshTokenKey); err != nil {
		m.log.Warn().Err(err).Msg("failed to discard tokens")
	}
}

// forceLogout clears the session after an unrecoverable auth failure.
func (m *Manager) forceLogout(ctx context.Context, expired bool) {
	m.mu.Lock()
	m.accessToken = ""
	m.user = nil
	m.epoch++
	m.mu.Unlock()

	m.discardTokens(ctx)

	if expired {
		m.notifier.Notify(notify.SeverityWarning, SessionExpiredMessage)
	}
}
