package storage

import (
	"context"
	"errors"
	"fmt"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// TokenStore owns the access/refresh token pair. Token contents are never
// inspected here.
type TokenStore struct {
	store KeyValueStore
}

func NewTokenStore(store KeyValueStore) *TokenStore {
	return &TokenStore{store: store}
}

// Token returns the access token, or "" when none is stored.
func (t *TokenStore) Token(ctx context.Context) (string, error) {
	return t.read(ctx, AccessTokenKey)
}

// RefreshToken returns the refresh token, or "" when none is stored.
func (t *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return t.read(ctx, RefreshTokenKey)
}

// HasToken reports whether an access token is stored. Read errors count as
// no token.
func (t *TokenStore) HasToken(ctx context.Context) bool {
	token, err := t.Token(ctx)
	return err == nil && token != ""
}

func (t *TokenStore) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" {
		return errors.New("access token must not be empty")
	}
	if err := t.store.Set(ctx, AccessTokenKey, accessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if refreshToken == "" {
		if err := t.store.Delete(ctx, RefreshTokenKey); err != nil {
			return fmt.Errorf("failed to drop stale refresh token: %w", err)
		}
		return nil
	}
	if err := t.store.Set(ctx, RefreshTokenKey, refreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (t *TokenStore) ClearTokens(ctx context.Context) error {
	return errors.Join(
		t.store.Delete(ctx, AccessTokenKey),
		t.store.Delete(ctx, RefreshTokenKey),
	)
}

func (t *TokenStore) read(ctx context.Context, key string) (string, error) {
	v, err := t.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
