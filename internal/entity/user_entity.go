package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	Id           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	FullName     string
	Role         UserRole
	IsPremium    bool
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRefreshToken stores only the SHA-256 of the token handed to the client.
type UserRefreshToken struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UserAgent string
}
