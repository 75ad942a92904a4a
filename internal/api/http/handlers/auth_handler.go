package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/dto"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/service"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// Authenticator signs users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// AccessReader resolves the role summary of a user.
type AccessReader interface {
	Access(ctx context.Context, userID string) (*service.Access, error)
}

// AuthHandler exposes sign-in endpoints.
type AuthHandler struct {
	auth         Authenticator
	access       AccessReader
	validator    *validation.Validator
	secureCookie bool
}

// NewAuthHandler constructs handler. secureCookie marks the session cookie Secure.
func NewAuthHandler(authenticator Authenticator, access AccessReader, v *validation.Validator, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: authenticator, access: access, validator: v, secureCookie: secureCookie}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	result, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    result.Token.Value,
		Path:     "/",
		Expires:  result.Token.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return data(c, fiber.StatusOK, dto.AuthResponse{
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	})
}

// Logout handles POST /api/v1/auth/logout by expiring the session cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	access, err := h.access.Access(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	principal.User.Roles = access.Roles
	return data(c, fiber.StatusOK, dto.MeResponse{
		User:           dto.NewUserResponse(principal.User),
		HighestRole:    access.HighestRole,
		Admin:          access.Admin,
		CanManageUsers: access.CanManageUsers,
		Permissions:    access.Permissions,
	})
}
