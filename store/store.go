package store

import (
	"context"
	"errors"
)

// Durable key names used by the session manager.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("store: key not found")

// TokenStore is the minimal durable key-value surface the session manager
// depends on. Implementations must be safe for concurrent use.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
