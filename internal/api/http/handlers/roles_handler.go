package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/jobcard-service/internal/api/dto"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/service"
)

// RoleCatalog lists and creates roles.
type RoleCatalog interface {
	CreateRole(ctx context.Context, name, description string) (*domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
}

// RolesHandler lists and creates roles.
type RolesHandler struct {
	roles     RoleCatalog
	validator *validation.Validator
}

// NewRolesHandler constructs handler.
func NewRolesHandler(roles RoleCatalog, v *validation.Validator) *RolesHandler {
	return &RolesHandler{roles: roles, validator: v}
}

// List GET /roles.
func (h *RolesHandler) List(c *fiber.Ctx) error {
	roles, err := h.roles.ListRoles(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewRoleResponses(roles))
}

// Create POST /roles.
func (h *RolesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateRoleRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	role, err := h.roles.CreateRole(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewRoleResponse(role))
}

// TemplateStore reads and creates job card templates.
type TemplateStore interface {
	Create(ctx context.Context, input service.TemplateInput, actor string) (*domain.JobCardTemplate, error)
	Get(ctx context.Context, id string) (*domain.JobCardTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]domain.JobCardTemplate, error)
}

// TemplatesHandler manages job card templates.
type TemplatesHandler struct {
	templates TemplateStore
	validator *validation.Validator
}

// NewTemplatesHandler constructs handler.
func NewTemplatesHandler(templates TemplateStore, v *validation.Validator) *TemplatesHandler {
	return &TemplatesHandler{templates: templates, validator: v}
}

// List GET /templates?all=true includes inactive templates.
func (h *TemplatesHandler) List(c *fiber.Ctx) error {
	items, err := h.templates.List(c.UserContext(), !c.QueryBool("all"))
	if err != nil {
		return err
	}
	out := make([]dto.TemplateResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewTemplateResponse(&items[i]))
	}
	return data(c, fiber.StatusOK, out)
}

// Get GET /templates/:id.
func (h *TemplatesHandler) Get(c *fiber.Ctx) error {
	tpl, err := h.templates.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewTemplateResponse(tpl))
}

// Create POST /templates.
func (h *TemplatesHandler) Create(c *fiber.Ctx) error {
	actor, err := principalID(c)
	if err != nil {
		return err
	}
	var req dto.CreateTemplateRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	tpl, err := h.templates.Create(c.UserContext(), service.TemplateInput{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Category:    req.Category,
	}, actor)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewTemplateResponse(tpl))
}
