package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

type userFixture struct {
	svc       *UserService
	users     *fakeUserRepo
	roles     *fakeRoleRepo
	userRoles *fakeUserRoleRepo
	events    *eventRecorder
}

func newUserFixture(users ...*domain.User) *userFixture {
	roles := newFakeRoleRepo(
		&domain.Role{ID: "role-admin", Name: domain.RoleAdmin, Status: domain.RoleStatusActive},
		&domain.Role{ID: "role-tech", Name: domain.RoleTechnician, Status: domain.RoleStatusActive},
		&domain.Role{ID: "role-old", Name: "LEGACY", Status: domain.RoleStatusInactive},
	)
	f := &userFixture{
		users:     newFakeUserRepo(users...),
		roles:     roles,
		userRoles: &fakeUserRoleRepo{roles: roles},
		events:    newEventRecorder(),
	}
	f.svc = NewUserService(UserDependencies{
		UserRepo:     f.users,
		RoleRepo:     f.roles,
		UserRoleRepo: f.userRoles,
		Dispatcher:   f.events,
		Clock:        fixedClock,
	})
	return f
}

func pendingUser(id string) *domain.User {
	return &domain.User{ID: id, Email: id + "@example.com", FirstName: "Ravi", Status: domain.UserStatusPendingApproval}
}

func TestApproveGrantsRolesAndActivates(t *testing.T) {
	f := newUserFixture(pendingUser("u1"))

	user, err := f.svc.Approve(context.Background(), "u1", []string{"role-tech", "role-tech", " "}, "admin-1")
	require.NoError(t, err)

	assert.Equal(t, domain.UserStatusActive, user.Status)
	assert.Equal(t, []string{domain.RoleTechnician}, user.Roles)
	require.Len(t, f.userRoles.grants, 1)
	assert.Equal(t, "admin-1", *f.userRoles.grants[0].AssignedBy)
	assert.Equal(t, fixedNow, f.userRoles.grants[0].AssignedAt)

	assert.Equal(t, []events.EventType{events.EventUserApproved, events.EventUserStatusChanged}, f.events.types())
	ev, ok := f.events.last(events.EventUserStatusChanged)
	require.True(t, ok)
	payload := ev.Payload.(events.UserStatusChangedPayload)
	assert.Equal(t, domain.UserStatusPendingApproval, payload.OldStatus)
	assert.Equal(t, domain.UserStatusActive, payload.NewStatus)
	assert.Equal(t, fixedNow, ev.Timestamp)
	assert.NotEmpty(t, ev.ID)
}

func TestApproveRejectsInactiveRole(t *testing.T) {
	f := newUserFixture(pendingUser("u1"))

	_, err := f.svc.Approve(context.Background(), "u1", []string{"role-tech", "role-old"}, "admin-1")
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "Role is not active", de.Message)
	assert.Equal(t, "LEGACY", de.Details["role"])
	assert.Empty(t, f.userRoles.grants)
	assert.Equal(t, domain.UserStatusPendingApproval, f.users.users["u1"].Status)
	assert.Empty(t, f.events.types())
}

func TestApproveValidation(t *testing.T) {
	active := pendingUser("u2")
	active.Status = domain.UserStatusActive
	f := newUserFixture(pendingUser("u1"), active)

	_, err := f.svc.Approve(context.Background(), "u1", nil, "admin")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.Approve(context.Background(), "u1", []string{"role-tech", "missing"}, "admin")
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "One or more roles not found", de.Message)
	assert.Equal(t, apperrors.CodeBusinessRule, de.Code)

	_, err = f.svc.Approve(context.Background(), "u2", []string{"role-tech"}, "admin")
	assert.Equal(t, apperrors.CodeInvalidUserStatus, apperrors.ToDomainError(err).Code)

	_, err = f.svc.Approve(context.Background(), "nobody", []string{"role-tech"}, "admin")
	assert.Equal(t, apperrors.CodeUserNotFound, apperrors.ToDomainError(err).Code)

	assert.Empty(t, f.userRoles.grants)
	assert.Empty(t, f.events.types())
}

func TestRejectRecordsReason(t *testing.T) {
	f := newUserFixture(pendingUser("u1"))

	_, err := f.svc.Reject(context.Background(), "u1", "  ", "admin")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	user, err := f.svc.Reject(context.Background(), "u1", "Unknown contractor", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusRejected, user.Status)
	require.Len(t, f.users.rejections, 1)
	assert.Equal(t, domain.UserStatusPendingApproval, f.users.rejections[0].OriginalStatus)
	assert.Equal(t, "Unknown contractor", f.users.rejections[0].Reason)

	ev, ok := f.events.last(events.EventUserRejected)
	require.True(t, ok)
	assert.Equal(t, "Unknown contractor", ev.Payload.(events.UserRejectedPayload).Reason)

	_, err = f.svc.Reject(context.Background(), "u1", "again", "admin")
	assert.Equal(t, apperrors.KindBusiness, apperrors.KindOf(err))
}

func TestSuspendReactivateDelete(t *testing.T) {
	active := pendingUser("u1")
	active.Status = domain.UserStatusActive
	f := newUserFixture(active)
	ctx := context.Background()

	_, err := f.svc.Reactivate(ctx, "u1", "admin")
	assert.Equal(t, apperrors.CodeInvalidUserStatus, apperrors.ToDomainError(err).Code)

	user, err := f.svc.Suspend(ctx, "u1", "policy breach", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusSuspended, user.Status)

	_, err = f.svc.Suspend(ctx, "u1", "again", "admin")
	assert.Error(t, err)

	user, err = f.svc.Reactivate(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, user.Status)

	_, err = f.svc.SoftDelete(ctx, "u1", "u1")
	assert.Equal(t, apperrors.CodeOperationNotAllowed, apperrors.ToDomainError(err).Code)

	user, err = f.svc.SoftDelete(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusDeleted, user.Status)

	assert.Equal(t, []events.EventType{
		events.EventUserStatusChanged,
		events.EventUserStatusChanged,
		events.EventUserStatusChanged,
	}, f.events.types())
}

func TestAssignAndRevokeRole(t *testing.T) {
	active := pendingUser("u1")
	active.Status = domain.UserStatusActive
	f := newUserFixture(active)
	ctx := context.Background()

	grant, err := f.svc.AssignRole(ctx, "u1", "role-tech", "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, grant.RoleName)

	_, err = f.svc.AssignRole(ctx, "u1", "role-tech", "admin")
	assert.Equal(t, "User already has this role assigned", apperrors.ToDomainError(err).Message)

	_, err = f.svc.AssignRole(ctx, "u1", "role-old", "admin")
	assert.Equal(t, "Role is not active", apperrors.ToDomainError(err).Message)

	_, err = f.svc.AssignRole(ctx, "u1", "role-missing", "admin")
	assert.True(t, apperrors.IsNotFound(err))

	user, err := f.svc.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleTechnician}, user.Roles)

	require.NoError(t, f.svc.RevokeRole(ctx, "u1", "role-tech", "admin"))
	assert.Equal(t, domain.UserRoleStatusRevoked, f.userRoles.grants[0].Status)

	err = f.svc.RevokeRole(ctx, "u1", "role-tech", "admin")
	assert.Equal(t, "User does not have this role assigned", apperrors.ToDomainError(err).Message)

	assert.Equal(t, []events.EventType{events.EventUserRoleAssigned, events.EventUserRoleRevoked}, f.events.types())
}

func TestListByStatusRejectsUnknownStatus(t *testing.T) {
	f := newUserFixture(pendingUser("u1"), pendingUser("u2"))

	_, err := f.svc.ListByStatus(context.Background(), domain.UserStatus("BOGUS"), repository.NewPage(0, 10))
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	res, err := f.svc.ListByStatus(context.Background(), domain.UserStatusPendingApproval, repository.NewPage(0, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.TotalElements)
	assert.True(t, res.First)
	assert.True(t, res.Last)
}

func TestRoleService(t *testing.T) {
	f := newUserFixture()
	f.userRoles.grants = []*domain.UserRole{
		{ID: "g1", UserID: "u1", RoleID: "role-tech", Status: domain.UserRoleStatusActive},
		{ID: "g2", UserID: "u1", RoleID: "role-admin", Status: domain.UserRoleStatusRevoked},
	}
	policy, err := auth.LoadPolicy("")
	require.NoError(t, err)
	svc := NewRoleService(RoleDependencies{RoleRepo: f.roles, UserRoleRepo: f.userRoles, Policy: policy})
	ctx := context.Background()

	ok, err := svc.HasRole(ctx, "u1", "technician")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAnyRole(ctx, "u1", domain.RoleAdmin, domain.RoleSupervisor)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasPermission(ctx, "u1", auth.ResourceJobCard, auth.ActionUpdate)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(ctx, "u1", auth.ResourceUserManagement, auth.ActionRead)
	require.NoError(t, err)
	assert.False(t, ok)

	highest, err := svc.HighestRole(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTechnician, highest)
	assert.Equal(t, domain.RoleNone, HighestRole(nil))
	assert.Equal(t, domain.RoleAdmin, HighestRole([]string{"VIEWER", "ADMIN"}))

	role, err := svc.CreateRole(ctx, " planner ", "Plans work")
	require.NoError(t, err)
	assert.Equal(t, "PLANNER", role.Name)

	_, err = svc.CreateRole(ctx, "Planner", "")
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Contains(t, de.FieldErrors, "name")
}

func TestLoginStatusMessages(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	require.NoError(t, err)

	cases := []struct {
		status domain.UserStatus
		code   string
		msg    string
	}{
		{domain.UserStatusPendingVerification, apperrors.CodeInvalidUserStatus, "Email not verified. Please check your email for verification code."},
		{domain.UserStatusPendingApproval, apperrors.CodeInvalidUserStatus, "Your account is pending administrator approval."},
		{domain.UserStatusSuspended, apperrors.CodeUserSuspended, "Your account has been suspended. Please contact support."},
		{domain.UserStatusInactive, apperrors.CodeUserInactive, "Your account is inactive. Please contact support."},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			users := newFakeUserRepo(&domain.User{ID: "u1", Email: "a@example.com", PasswordHash: string(hash), Status: tc.status})
			svc := NewAuthService(AuthDependencies{
				UserRepo:     users,
				UserRoleRepo: &fakeUserRoleRepo{roles: newFakeRoleRepo()},
				Tokens:       auth.NewTokenManager("secret", time.Hour),
			})
			_, err := svc.Login(context.Background(), "a@example.com", "Str0ng!Pass")
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.msg, de.Message)
			assert.Empty(t, users.logins)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	require.NoError(t, err)
	roles := newFakeRoleRepo(&domain.Role{ID: "role-tech", Name: domain.RoleTechnician, Status: domain.RoleStatusActive})
	users := newFakeUserRepo(&domain.User{ID: "u1", Email: "a@example.com", PasswordHash: string(hash), Status: domain.UserStatusActive})
	userRoles := &fakeUserRoleRepo{roles: roles, grants: []*domain.UserRole{{ID: "g1", UserID: "u1", RoleID: "role-tech", Status: domain.UserRoleStatusActive}}}
	tokens := auth.NewTokenManager("secret", time.Hour)
	svc := NewAuthService(AuthDependencies{UserRepo: users, UserRoleRepo: userRoles, Tokens: tokens})

	_, err = svc.Login(context.Background(), "a@example.com", "wrong")
	assert.Equal(t, "Invalid email or password", apperrors.ToDomainError(err).Message)

	_, err = svc.Login(context.Background(), "missing@example.com", "Str0ng!Pass")
	assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))

	res, err := svc.Login(context.Background(), " A@Example.com", "Str0ng!Pass")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleTechnician}, res.User.Roles)
	assert.Equal(t, []string{"u1"}, users.logins)

	claims, err := tokens.ParseToken(res.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, []string{domain.RoleTechnician}, claims.Roles)
}

func TestRoleServiceAccessLoadsRolesOnce(t *testing.T) {
	f := newUserFixture()
	f.userRoles.grants = []*domain.UserRole{
		{ID: "g1", UserID: "u1", RoleID: "role-tech", Status: domain.UserRoleStatusActive},
	}
	policy, err := auth.LoadPolicy("")
	require.NoError(t, err)
	svc := NewRoleService(RoleDependencies{RoleRepo: f.roles, UserRoleRepo: f.userRoles, Policy: policy})

	access, err := svc.Access(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.userRoles.lookups)
	assert.Equal(t, []string{domain.RoleTechnician}, access.Roles)
	assert.Equal(t, domain.RoleTechnician, access.HighestRole)
	assert.False(t, access.Admin)
	assert.False(t, access.CanManageUsers)
	assert.Contains(t, access.Permissions, "JOB_CARD:DELETE")
	assert.Contains(t, access.Permissions, "EQUIPMENT:READ")
	assert.NotContains(t, access.Permissions, "EQUIPMENT:UPDATE")
	assert.NotContains(t, access.Permissions, "USER_MANAGEMENT:READ")

	_, err = svc.HasRole(context.Background(), "u1", domain.RoleTechnician)
	require.NoError(t, err)
	assert.Equal(t, 2, f.userRoles.lookups)
}
