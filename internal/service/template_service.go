package service

import (
	"context"
	"strings"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// TemplateInput describes a new job card template.
type TemplateInput struct {
	Name        string
	Code        string
	Description string
	Category    string
}

// TemplateService manages job card templates.
type TemplateService struct {
	templates repository.TemplateRepository
}

// NewTemplateService creates the service.
func NewTemplateService(templates repository.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

// Create stores an active template at version 1.
func (s *TemplateService) Create(ctx context.Context, input TemplateInput, actor string) (*domain.JobCardTemplate, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(input.Name)
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if name == "" {
		fields["name"] = "Template name is required"
	}
	if code == "" {
		fields["code"] = "Template code is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	tpl := &domain.JobCardTemplate{
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Version:     1,
		IsActive:    true,
		CreatedBy:   actor,
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, apperrors.MapError(err)
	}
	return tpl, nil
}

// Get returns one template.
func (s *TemplateService) Get(ctx context.Context, id string) (*domain.JobCardTemplate, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Template", map[string]any{"templateId": id})
	}
	return tpl, nil
}

// List returns templates ordered by name.
func (s *TemplateService) List(ctx context.Context, activeOnly bool) ([]domain.JobCardTemplate, error) {
	items, err := s.templates.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}
