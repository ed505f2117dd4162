package controller

import (
	"errors"

	"savings-client/internal/devapi"
	"savings-client/internal/dto"
	"savings-client/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
	Check(ctx *fiber.Ctx) error
}

type authController struct {
	service devapi.IAuthService
	jwt     fiber.Handler
}

func NewAuthController(service devapi.IAuthService, jwtSecret string) IAuthController {
	return &authController{service: service, jwt: serverutils.NewJwtMiddleware(jwtSecret)}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth")
	h.Post("/register", c.Register)
	h.Post("/login", c.Login)
	h.Post("/logout", c.Logout)
	h.Get("/check", c.jwt, c.Check)
}

func (c *authController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.Register(ctx.UserContext(), &req)
	switch {
	case errors.Is(err, devapi.ErrAlreadyRegistered):
		return serverutils.Fail(ctx, fiber.StatusConflict, err.Error())
	case err != nil:
		return serverutils.Fail(ctx, fiber.StatusBadRequest, err.Error())
	}
	return serverutils.OK(ctx, "User registered successfully", res)
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.Fail(ctx, fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := c.service.Login(ctx.UserContext(), &req, ctx.Get("User-Agent"))
	switch {
	case errors.Is(err, devapi.ErrInvalidInput):
		return serverutils.Fail(ctx, fiber.StatusBadRequest, err.Error())
	case err != nil:
		return serverutils.Fail(ctx, fiber.StatusUnauthorized, err.Error())
	}
	return serverutils.OK(ctx, "Login successful", res)
}

// Logout always succeeds: an unknown or already revoked refresh token leaves
// nothing to undo.
func (c *authController) Logout(ctx *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := ctx.BodyParser(&req); err == nil {
		_ = c.service.Logout(ctx.UserContext(), req.RefreshToken)
	}
	return serverutils.OK(ctx, "Logged out successfully", nil)
}

func (c *authController) Check(ctx *fiber.Ctx) error {
	userID, ok := serverutils.UserID(ctx)
	if !ok {
		return serverutils.Fail(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}
	return serverutils.OK(ctx, "Authenticated", c.service.Check(ctx.UserContext(), userID))
}
