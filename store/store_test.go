package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlytics/go-auth-client/store"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()

	_, err := s.Get(ctx, store.AccessTokenKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, store.AccessTokenKey, "abc"))
	require.NoError(t, s.Set(ctx, store.RefreshTokenKey, "def"))

	value, err := s.Get(ctx, store.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, s.Delete(ctx, store.AccessTokenKey, store.RefreshTokenKey))
	_, err = s.Get(ctx, store.AccessTokenKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, store.RefreshTokenKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := store.NewFileStore(path)

	_, err := s.Get(ctx, store.AccessTokenKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, store.AccessTokenKey, "abc"))
	require.NoError(t, s.Set(ctx, store.RefreshTokenKey, "def"))

	// Values survive a new instance, simulating a process restart.
	reopened := store.NewFileStore(path)
	value, err := reopened.Get(ctx, store.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "def", value)

	require.NoError(t, reopened.Delete(ctx, store.AccessTokenKey, store.RefreshTokenKey))
	_, err = s.Get(ctx, store.AccessTokenKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFileStorePermissions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	s := store.NewFileStore(path)

	require.NoError(t, s.Set(ctx, store.AccessTokenKey, "abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCreatesParentDir(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "tokens.json")
	s := store.NewFileStore(path)

	require.NoError(t, s.Set(ctx, store.AccessTokenKey, "abc"))

	value, err := s.Get(ctx, store.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestFileStoreDeleteMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	s := store.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	require.NoError(t, s.Delete(ctx, store.AccessTokenKey))
}
