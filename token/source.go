package token

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Provider supplies the current access token. The session manager implements
// this.
type Provider interface {
	AccessToken() string
}

// ErrNoToken is returned by the token source when no session is active.
var ErrNoToken = errors.New("token: no access token available")

// Source adapts a Provider to oauth2.TokenSource so the session can feed any
// oauth2-aware client. Expiry is taken from the token's own exp claim.
type Source struct {
	provider Provider
}

var _ oauth2.TokenSource = (*Source)(nil)

func NewSource(provider Provider) *Source {
	return &Source{provider: provider}
}

// Token implements oauth2.TokenSource.
func (s *Source) Token() (*oauth2.Token, error) {
	rawToken := s.provider.AccessToken()
	if rawToken == "" {
		return nil, ErrNoToken
	}

	oauthToken := &oauth2.Token{AccessToken: rawToken, TokenType: "Bearer"}
	if claims, err := Parse(rawToken); err == nil {
		oauthToken.Expiry = claims.ExpiresAt
	}
	return oauthToken, nil
}
