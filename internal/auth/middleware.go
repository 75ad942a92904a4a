package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/jobcard-service/internal/domain"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	// AccessTokenCookie carries the token for browser sessions.
	AccessTokenCookie = "access_token"
)

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Roles []string
}

// HasRole reports whether the principal holds any of roles.
func (p *Principal) HasRole(roles ...string) bool {
	for _, held := range p.Roles {
		for _, want := range roles {
			if strings.EqualFold(held, want) {
				return true
			}
		}
	}
	return false
}

// UserLoader fetches users by ID.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RoleLoader lists active role names for a user.
type RoleLoader interface {
	ListActiveRoleNames(ctx context.Context, userID string) ([]string, error)
}

// AuthMiddleware validates tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  UserLoader
	roles  RoleLoader
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserLoader, roles RoleLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, roles: roles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := extractToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperrors.NewDomainError(apperrors.CodeTokenExpired, "token expired", http.StatusUnauthorized, apperrors.KindAuth, nil)
		}
		return apperrors.NewDomainError(apperrors.CodeTokenInvalid, "invalid token", http.StatusUnauthorized, apperrors.KindAuth, nil)
	}

	ctx := c.UserContext()
	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Status.LoginAllowed() {
		return apperrors.NewDomainError(apperrors.CodeUserInactive, "account is "+strings.ToLower(user.Status.Description()), http.StatusUnauthorized, apperrors.KindAuth, nil)
	}

	roles, err := m.roles.ListActiveRoleNames(ctx, user.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	user.Roles = roles

	SetPrincipal(c, &Principal{User: user, Roles: roles})
	return c.Next()
}

func extractToken(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return parts[1], nil
	}
	if cookie := c.Cookies(AccessTokenCookie); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// SetPrincipal stores the authenticated caller on c.
func SetPrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
