package memory

import (
	"context"
	"time"

	"savings-client/internal/entity"
	"savings-client/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// RefreshTokenRepository keeps refresh tokens until they expire. Revoked
// tokens are dropped.
type RefreshTokenRepository struct {
	cache *cache.Cache
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (r *RefreshTokenRepository) CreateRefreshToken(ctx context.Context, token *entity.UserRefreshToken) error {
	c := *token
	r.cache.Set(token.TokenHash, &c, time.Until(token.ExpiresAt))
	return nil
}

func (r *RefreshTokenRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*entity.UserRefreshToken, error) {
	if x, found := r.cache.Get(tokenHash); found {
		c := *x.(*entity.UserRefreshToken)
		return &c, nil
	}
	return nil, contract.ErrNotFound
}

func (r *RefreshTokenRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	if _, found := r.cache.Get(tokenHash); !found {
		return contract.ErrNotFound
	}
	r.cache.Delete(tokenHash)
	return nil
}
