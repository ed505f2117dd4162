package contract

import (
	"context"
	"errors"

	"savings-client/internal/entity"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	// FindByLogin matches the email (case-insensitive) or the username.
	FindByLogin(ctx context.Context, login string) (*entity.User, error)
	FindAll(ctx context.Context) ([]*entity.User, error)
}

type RefreshTokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *entity.UserRefreshToken) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*entity.UserRefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}
