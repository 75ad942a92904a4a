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
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

type fakeUserAdmin struct {
	users      map[string]*domain.User
	listed     int
	byStatus   []domain.UserStatus
	approvedAs map[string][]string
	revoked    []string
}

func newFakeUserAdmin(users ...*domain.User) *fakeUserAdmin {
	f := &fakeUserAdmin{users: map[string]*domain.User{}, approvedAs: map[string][]string{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserAdmin) GetByID(_ context.Context, userID string) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	return u, nil
}

func (f *fakeUserAdmin) List(_ context.Context, page repository.Page) (repository.PageResult[domain.User], error) {
	f.listed++
	items := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		items = append(items, *u)
	}
	return repository.NewPageResult(items, page, int64(len(items))), nil
}

func (f *fakeUserAdmin) ListByStatus(_ context.Context, status domain.UserStatus, page repository.Page) (repository.PageResult[domain.User], error) {
	f.byStatus = append(f.byStatus, status)
	var items []domain.User
	for _, u := range f.users {
		if u.Status == status {
			items = append(items, *u)
		}
	}
	return repository.NewPageResult(items, page, int64(len(items))), nil
}

func (f *fakeUserAdmin) Approve(ctx context.Context, userID string, roleIDs []string, _ string) (*domain.User, error) {
	u, err := f.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.approvedAs[userID] = roleIDs
	u.Status = domain.UserStatusActive
	return u, nil
}

func (f *fakeUserAdmin) transition(ctx context.Context, userID string, to domain.UserStatus) (*domain.User, error) {
	u, err := f.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Status = to
	return u, nil
}

func (f *fakeUserAdmin) Reject(ctx context.Context, userID, _, _ string) (*domain.User, error) {
	return f.transition(ctx, userID, domain.UserStatusRejected)
}

func (f *fakeUserAdmin) Suspend(ctx context.Context, userID, _, _ string) (*domain.User, error) {
	return f.transition(ctx, userID, domain.UserStatusSuspended)
}

func (f *fakeUserAdmin) Reactivate(ctx context.Context, userID, _ string) (*domain.User, error) {
	return f.transition(ctx, userID, domain.UserStatusActive)
}

func (f *fakeUserAdmin) SoftDelete(ctx context.Context, userID, _ string) (*domain.User, error) {
	return f.transition(ctx, userID, domain.UserStatusDeleted)
}

func (f *fakeUserAdmin) AssignRole(ctx context.Context, userID, roleID, actor string) (*domain.UserRole, error) {
	if _, err := f.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return &domain.UserRole{ID: "grant-1", UserID: userID, RoleID: roleID, RoleName: domain.RoleTechnician, AssignedBy: &actor, Status: domain.UserRoleStatusActive}, nil
}

func (f *fakeUserAdmin) RevokeRole(ctx context.Context, userID, roleID, _ string) error {
	if _, err := f.GetByID(ctx, userID); err != nil {
		return err
	}
	f.revoked = append(f.revoked, userID+"/"+roleID)
	return nil
}

func newUsersApp(users *fakeUserAdmin) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	app.Use(withPrincipal("admin-1", domain.RoleAdmin))
	h := NewUsersHandler(users, validation.New())
	app.Get("/api/v1/users", h.List)
	app.Get("/api/v1/users/:id", h.Get)
	app.Post("/api/v1/users/:id/approve", h.Approve)
	app.Post("/api/v1/users/:id/suspend", h.Suspend)
	app.Delete("/api/v1/users/:id", h.Delete)
	app.Put("/api/v1/users/:id/roles/:roleId", h.AssignRole)
	app.Delete("/api/v1/users/:id/roles/:roleId", h.RevokeRole)
	return app
}

func pendingAndActiveUsers() []*domain.User {
	return []*domain.User{
		{ID: "u-1", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", Status: domain.UserStatusPendingApproval},
		{ID: "u-2", Email: "raj@example.com", FirstName: "Raj", LastName: "Iyer", Status: domain.UserStatusActive},
	}
}

type userPage struct {
	Data struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
		TotalElements int64 `json:"totalElements"`
	} `json:"data"`
}

func TestListUsersByStatus(t *testing.T) {
	users := newFakeUserAdmin(pendingAndActiveUsers()...)
	app := newUsersApp(users)

	resp := get(t, app, "/api/v1/users?status=PENDING_APPROVAL")
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	var page userPage
	require.NoError(t, json.Unmarshal([]byte(resp.body), &page))
	require.Len(t, page.Data.Items, 1)
	assert.Equal(t, "u-1", page.Data.Items[0].ID)
	assert.Equal(t, "PENDING_APPROVAL", page.Data.Items[0].Status)
	assert.Equal(t, []domain.UserStatus{domain.UserStatusPendingApproval}, users.byStatus)
	assert.Zero(t, users.listed)

	resp = get(t, app, "/api/v1/users")
	require.Equal(t, fiber.StatusOK, resp.status)
	page = userPage{}
	require.NoError(t, json.Unmarshal([]byte(resp.body), &page))
	assert.EqualValues(t, 2, page.Data.TotalElements)
	assert.Equal(t, 1, users.listed)
}

func TestApproveRequiresRoles(t *testing.T) {
	users := newFakeUserAdmin(pendingAndActiveUsers()...)
	app := newUsersApp(users)

	resp := send(t, app, fiber.MethodPost, "/api/v1/users/u-1/approve", `{"roleIds":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, domain.UserStatusPendingApproval, users.users["u-1"].Status)

	resp = send(t, app, fiber.MethodPost, "/api/v1/users/u-1/approve", `{"roleIds":["role-tech"]}`)
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Contains(t, resp.body, `"status":"ACTIVE"`)
	assert.Equal(t, []string{"role-tech"}, users.approvedAs["u-1"])
}

func TestSuspendRequiresReason(t *testing.T) {
	users := newFakeUserAdmin(pendingAndActiveUsers()...)
	app := newUsersApp(users)

	resp := send(t, app, fiber.MethodPost, "/api/v1/users/u-2/suspend", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = send(t, app, fiber.MethodPost, "/api/v1/users/u-2/suspend", `{"reason":"policy breach"}`)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"status":"SUSPENDED"`)
}

func TestDeleteUserReturnsDeletedAccount(t *testing.T) {
	users := newFakeUserAdmin(pendingAndActiveUsers()...)
	app := newUsersApp(users)

	resp := send(t, app, fiber.MethodDelete, "/api/v1/users/u-2", "")
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"status":"DELETED"`)

	resp = send(t, app, fiber.MethodDelete, "/api/v1/users/u-9", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, apperrors.CodeUserNotFound, decodeError(t, resp).Error.Code)
}

func TestRoleGrantRoutes(t *testing.T) {
	users := newFakeUserAdmin(pendingAndActiveUsers()...)
	app := newUsersApp(users)

	resp := send(t, app, fiber.MethodPut, "/api/v1/users/u-2/roles/role-tech", "")
	require.Equal(t, fiber.StatusOK, resp.status, resp.body)
	assert.Contains(t, resp.body, `"roleId":"role-tech"`)
	assert.Contains(t, resp.body, `"assignedBy":"admin-1"`)

	resp = send(t, app, fiber.MethodDelete, "/api/v1/users/u-2/roles/role-tech", "")
	assert.Equal(t, fiber.StatusNoContent, resp.status)
	assert.Empty(t, resp.body)
	assert.Equal(t, []string{"u-2/role-tech"}, users.revoked)

	resp = send(t, app, fiber.MethodDelete, "/api/v1/users/u-9/roles/role-tech", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Len(t, users.revoked, 1)
}
