// Package handlers holds the HTTP endpoints of the job-card service.
package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}

// bind parses the body into dst and validates it.
func bind(c *fiber.Ctx, v *validation.Validator, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return v.Struct(dst)
}

func principalID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal.User.ID, nil
}

// pageQuery reads ?page=&size=, zero-based.
func pageQuery(c *fiber.Ctx) repository.Page {
	return repository.NewPage(c.QueryInt("page", 0), c.QueryInt("size", repository.DefaultPageSize))
}

// csvQuery splits a comma separated query value, dropping blanks.
func csvQuery(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// pageOf keeps the paging metadata of r around mapped items.
func pageOf[S, T any](r repository.PageResult[S], items []T) repository.PageResult[T] {
	return repository.PageResult[T]{
		Items:         items,
		Page:          r.Page,
		Size:          r.Size,
		TotalElements: r.TotalElements,
		TotalPages:    r.TotalPages,
		First:         r.First,
		Last:          r.Last,
		Empty:         r.Empty,
	}
}
