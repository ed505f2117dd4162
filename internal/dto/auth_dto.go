package dto

import "savings-client/internal/model"

// LoginRequest accepts either an email address or a username in Login.
type LoginRequest struct {
	Login      string `json:"login" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	User         model.UserProfile `json:"user"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=3"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type RegisterResponse struct {
	User model.UserProfile `json:"user"`
}

type AuthCheckResponse struct {
	IsAuthenticated bool               `json:"is_authenticated"`
	User            *model.UserProfile `json:"user"`
}
