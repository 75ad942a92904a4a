package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) > 0 && !principal.HasRole(allowed...) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequirePermission checks the policy for resource/action against the principal's roles.
func RequirePermission(policy *Policy, resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !policy.Allows(principal.Roles, resource, action) {
			return apperrors.NewForbidden("missing permission " + resource + ":" + action)
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures some principal is present.
func RequireAuthenticated() fiber.Handler {
	return RequireRole()
}
