package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/dto"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
)

// UserAdmin is the account administration behind /users.
type UserAdmin interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	List(ctx context.Context, page repository.Page) (repository.PageResult[domain.User], error)
	ListByStatus(ctx context.Context, status domain.UserStatus, page repository.Page) (repository.PageResult[domain.User], error)
	Approve(ctx context.Context, userID string, roleIDs []string, actor string) (*domain.User, error)
	Reject(ctx context.Context, userID, reason, actor string) (*domain.User, error)
	Suspend(ctx context.Context, userID, reason, actor string) (*domain.User, error)
	Reactivate(ctx context.Context, userID, actor string) (*domain.User, error)
	SoftDelete(ctx context.Context, userID, actor string) (*domain.User, error)
	AssignRole(ctx context.Context, userID, roleID, actor string) (*domain.UserRole, error)
	RevokeRole(ctx context.Context, userID, roleID, actor string) error
}

// UsersHandler exposes account administration.
type UsersHandler struct {
	users     UserAdmin
	validator *validation.Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserAdmin, v *validation.Validator) *UsersHandler {
	return &UsersHandler{users: users, validator: v}
}

// List GET /users?status=&page=&size=.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var (
		result repository.PageResult[domain.User]
		err    error
	)
	if status := c.Query("status"); status != "" {
		result, err = h.users.ListByStatus(c.UserContext(), domain.UserStatus(status), pageQuery(c))
	} else {
		result, err = h.users.List(c.UserContext(), pageQuery(c))
	}
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, pageOf(result, dto.NewUserResponses(result.Items)))
}

// Get GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// Approve POST /users/:id/approve.
func (h *UsersHandler) Approve(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.ApproveUserRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	user, err := h.users.Approve(c.UserContext(), c.Params("id"), req.RoleIDs, actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// Reject POST /users/:id/reject.
func (h *UsersHandler) Reject(c *fiber.Ctx) error {
	return h.withReason(c, h.users.Reject)
}

// Suspend POST /users/:id/suspend.
func (h *UsersHandler) Suspend(c *fiber.Ctx) error {
	return h.withReason(c, h.users.Suspend)
}

func (h *UsersHandler) withReason(c *fiber.Ctx, op func(ctx context.Context, id, reason, actor string) (*domain.User, error)) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	user, err := op(c.UserContext(), c.Params("id"), req.Reason, actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// Reactivate POST /users/:id/reactivate.
func (h *UsersHandler) Reactivate(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Reactivate(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// Delete DELETE /users/:id soft-deletes the account.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	user, err := h.users.SoftDelete(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserResponse(user))
}

// AssignRole PUT /users/:id/roles/:roleId.
func (h *UsersHandler) AssignRole(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	grant, err := h.users.AssignRole(c.UserContext(), c.Params("id"), c.Params("roleId"), actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewUserRoleResponse(grant))
}

// RevokeRole DELETE /users/:id/roles/:roleId.
func (h *UsersHandler) RevokeRole(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	if err := h.users.RevokeRole(c.UserContext(), c.Params("id"), c.Params("roleId"), actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
