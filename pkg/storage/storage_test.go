package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueStores(t *testing.T) {
	drivers := map[string]func(t *testing.T) KeyValueStore{
		"memory": func(t *testing.T) KeyValueStore { return NewMemoryStore() },
		"file": func(t *testing.T) KeyValueStore {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
			require.NoError(t, err)
			return s
		},
	}

	for name, build := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := build(t)

			_, err := s.Get(ctx, "auth_state")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "auth_state", `{"is_authenticated":true}`))
			v, err := s.Get(ctx, "auth_state")
			require.NoError(t, err)
			assert.Equal(t, `{"is_authenticated":true}`, v)

			require.NoError(t, s.Delete(ctx, "auth_state"))
			require.NoError(t, s.Delete(ctx, "auth_state"))
			_, err = s.Get(ctx, "auth_state")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, AccessTokenKey, "abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := NewFileStore(path)
	require.NoError(t, err)
	v, err := second.Get(ctx, AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestNewUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Driver: "etcd"})
	assert.Error(t, err)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenStore(NewMemoryStore())

	assert.False(t, tokens.HasToken(ctx))
	token, err := tokens.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, tokens.SetTokens(ctx, "access-1", "refresh-1"))
	assert.True(t, tokens.HasToken(ctx))
	refresh, err := tokens.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", refresh)

	// A login without "remember me" carries no refresh token.
	require.NoError(t, tokens.SetTokens(ctx, "access-2", ""))
	refresh, err = tokens.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, refresh)

	require.NoError(t, tokens.ClearTokens(ctx))
	assert.False(t, tokens.HasToken(ctx))

	assert.Error(t, tokens.SetTokens(ctx, "", "refresh"))
}
