package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/service"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

type fakeRoleCatalog struct {
	roles []domain.Role
}

func (f *fakeRoleCatalog) CreateRole(_ context.Context, name, description string) (*domain.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return nil, apperrors.NewDuplicateField(apperrors.CodeResourceAlreadyExists, "name", "Role with this name already exists")
		}
	}
	role := domain.Role{ID: "role-" + name, Name: name, Description: description, Status: domain.RoleStatusActive}
	f.roles = append(f.roles, role)
	return &role, nil
}

func (f *fakeRoleCatalog) ListRoles(context.Context) ([]domain.Role, error) {
	return f.roles, nil
}

type fakeTemplates struct {
	items      []domain.JobCardTemplate
	activeOnly []bool
}

func (f *fakeTemplates) Create(_ context.Context, input service.TemplateInput, actor string) (*domain.JobCardTemplate, error) {
	tpl := domain.JobCardTemplate{ID: "tpl-" + input.Code, Name: input.Name, Code: input.Code, Category: input.Category, Version: 1, IsActive: true, CreatedBy: actor}
	f.items = append(f.items, tpl)
	return &tpl, nil
}

func (f *fakeTemplates) Get(_ context.Context, id string) (*domain.JobCardTemplate, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, apperrors.NewNotFound("template", nil)
}

func (f *fakeTemplates) List(_ context.Context, activeOnly bool) ([]domain.JobCardTemplate, error) {
	f.activeOnly = append(f.activeOnly, activeOnly)
	var out []domain.JobCardTemplate
	for _, t := range f.items {
		if t.IsActive || !activeOnly {
			out = append(out, t)
		}
	}
	return out, nil
}

func newCatalogApp(roles *fakeRoleCatalog, templates *fakeTemplates) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Use(withPrincipal("admin-1", domain.RoleAdmin))
	v := validation.New()
	rh := NewRolesHandler(roles, v)
	app.Get("/api/v1/roles", rh.List)
	app.Post("/api/v1/roles", rh.Create)
	th := NewTemplatesHandler(templates, v)
	app.Get("/api/v1/templates", th.List)
	app.Get("/api/v1/templates/:id", th.Get)
	app.Post("/api/v1/templates", th.Create)
	return app
}

func TestRolesListAndCreate(t *testing.T) {
	roles := &fakeRoleCatalog{roles: []domain.Role{{ID: "role-ADMIN", Name: domain.RoleAdmin, Status: domain.RoleStatusActive}}}
	app := newCatalogApp(roles, &fakeTemplates{})

	resp := send(t, app, fiber.MethodPost, "/api/v1/roles", `{"name":"PLANNER","description":"Plans maintenance"}`)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	assert.Contains(t, resp.body, `"name":"PLANNER"`)

	resp = send(t, app, fiber.MethodPost, "/api/v1/roles", `{"name":"PLANNER"}`)
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = send(t, app, fiber.MethodPost, "/api/v1/roles", `{"description":"nameless"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = get(t, app, "/api/v1/roles")
	require.Equal(t, fiber.StatusOK, resp.status)
	var body struct {
		Data []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.body), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, domain.RoleAdmin, body.Data[0].Name)
	assert.Equal(t, "PLANNER", body.Data[1].Name)
	assert.Equal(t, "ACTIVE", body.Data[1].Status)
}

func TestTemplatesListHonoursAllFlag(t *testing.T) {
	templates := &fakeTemplates{items: []domain.JobCardTemplate{
		{ID: "tpl-PM", Name: "Preventive maintenance", Code: "PM", Version: 1, IsActive: true},
		{ID: "tpl-OLD", Name: "Retired", Code: "OLD", Version: 3, IsActive: false},
	}}
	app := newCatalogApp(&fakeRoleCatalog{}, templates)

	resp := get(t, app, "/api/v1/templates")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"code":"PM"`)
	assert.NotContains(t, resp.body, `"code":"OLD"`)

	resp = get(t, app, "/api/v1/templates?all=true")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"code":"OLD"`)
	assert.Equal(t, []bool{true, false}, templates.activeOnly)

	resp = send(t, app, fiber.MethodPost, "/api/v1/templates", `{"name":"Calibration","code":"CAL"}`)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	resp = get(t, app, "/api/v1/templates/tpl-CAL")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"name":"Calibration"`)
}
