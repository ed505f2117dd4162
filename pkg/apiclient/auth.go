package apiclient

import (
	"context"

	"savings-client/internal/dto"
)

func (c *Client) CheckAuth(ctx context.Context) (*dto.AuthCheckResponse, error) {
	var out dto.AuthCheckResponse
	if err := c.Get(ctx, "/auth/check", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	var out dto.LoginResponse
	if err := c.Post(ctx, "/auth/login", req, &out, PublicRoute()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.Post(ctx, "/auth/logout", dto.LogoutRequest{RefreshToken: refreshToken}, nil, PublicRoute())
}

func (c *Client) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	var out dto.RegisterResponse
	if err := c.Post(ctx, "/auth/register", req, &out, PublicRoute()); err != nil {
		return nil, err
	}
	return &out, nil
}
