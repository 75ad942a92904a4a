package dto

import (
	"time"

	"github.com/spec-kit/jobcard-service/internal/domain"
)

// CreateRoleRequest payload.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
}

// RoleResponse describes a role.
type RoleResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Status      domain.RoleStatus `json:"status"`
}

// NewRoleResponses maps roles.
func NewRoleResponses(roles []domain.Role) []RoleResponse {
	out := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, NewRoleResponse(&r))
	}
	return out
}

// NewRoleResponse maps one role.
func NewRoleResponse(r *domain.Role) RoleResponse {
	return RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description, Status: r.Status}
}

// CreateTemplateRequest payload.
type CreateTemplateRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=50"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// TemplateResponse describes a job card template.
type TemplateResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Version     int       `json:"version"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewTemplateResponse maps a template.
func NewTemplateResponse(t *domain.JobCardTemplate) TemplateResponse {
	return TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Code:        t.Code,
		Description: t.Description,
		Category:    t.Category,
		Version:     t.Version,
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
	}
}
