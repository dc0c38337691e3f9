package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileTokenStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileTokenStore(dir)
	require.NoError(t, err)

	// No token yet is not an error.
	token, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "", token)

	require.NoError(t, store.Save("abc123"))
	token, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, "abc123", token)

	info, err := os.Stat(filepath.Join(dir, "token"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, "", token)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestTokenCache(t *testing.T) {
	backing := &MemoryTokenStore{}
	require.NoError(t, backing.Save("persisted"))

	cache, err := NewTokenCache(backing)
	require.NoError(t, err)
	require.Equal(t, "persisted", cache.Token(), "cache loads the persisted token at startup")

	require.NoError(t, cache.Set("fresh"))
	require.Equal(t, "fresh", cache.Token())
	stored, err := backing.Load()
	require.NoError(t, err)
	require.Equal(t, "fresh", stored, "Set writes through to durable storage")

	require.NoError(t, cache.Clear())
	require.Equal(t, "", cache.Token())
	stored, err = backing.Load()
	require.NoError(t, err)
	require.Equal(t, "", stored)
}
