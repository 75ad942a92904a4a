package service

import (
	"context"
	"strings"

	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// RoleService answers role and permission questions.
type RoleService struct {
	roles     repository.RoleRepository
	userRoles repository.UserRoleRepository
	policy    *auth.Policy
}

// RoleDependencies bundles collaborators for RoleService.
type RoleDependencies struct {
	RoleRepo     repository.RoleRepository
	UserRoleRepo repository.UserRoleRepository
	Policy       *auth.Policy
}

// NewRoleService creates the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	return &RoleService{roles: deps.RoleRepo, userRoles: deps.UserRoleRepo, policy: deps.Policy}
}

// Access summarizes what a user may do.
type Access struct {
	Roles          []string
	HighestRole    string
	Admin          bool
	CanManageUsers bool
	Permissions    []string
}

type roleNamesKey struct{}

type loadedRoleNames struct {
	userID string
	names  []string
}

// RoleNames lists the active role names held by userID.
func (s *RoleService) RoleNames(ctx context.Context, userID string) ([]string, error) {
	if loaded, ok := ctx.Value(roleNamesKey{}).(loadedRoleNames); ok && loaded.userID == userID {
		return loaded.names, nil
	}
	names, err := s.userRoles.ListActiveRoleNames(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return names, nil
}

// HasRole reports whether userID holds role.
func (s *RoleService) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return s.HasAnyRole(ctx, userID, role)
}

// HasAnyRole reports whether userID holds at least one of roles.
func (s *RoleService) HasAnyRole(ctx context.Context, userID string, roles ...string) (bool, error) {
	names, err := s.RoleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, held := range names {
		for _, want := range roles {
			if strings.EqualFold(held, want) {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission evaluates the role policy for resource and action.
func (s *RoleService) HasPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	names, err := s.RoleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	return s.policy.Allows(names, resource, action), nil
}

// HighestRole returns the most privileged role userID holds, or NO_ROLE.
func (s *RoleService) HighestRole(ctx context.Context, userID string) (string, error) {
	names, err := s.RoleNames(ctx, userID)
	if err != nil {
		return "", err
	}
	return HighestRole(names), nil
}

// HighestRole picks the most privileged of names following domain.RoleHierarchy.
func HighestRole(names []string) string {
	for _, candidate := range domain.RoleHierarchy {
		for _, held := range names {
			if strings.EqualFold(held, candidate) {
				return candidate
			}
		}
	}
	return domain.RoleNone
}

// Access loads the roles of userID once and evaluates them against the policy.
// Permissions are "RESOURCE:ACTION" pairs.
func (s *RoleService) Access(ctx context.Context, userID string) (*Access, error) {
	names, err := s.RoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, roleNamesKey{}, loadedRoleNames{userID: userID, names: names})

	access := &Access{Roles: names, Permissions: []string{}}
	if access.HighestRole, err = s.HighestRole(ctx, userID); err != nil {
		return nil, err
	}
	if access.Admin, err = s.HasRole(ctx, userID, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if access.CanManageUsers, err = s.HasAnyRole(ctx, userID, domain.RoleAdmin, domain.RoleSupervisor); err != nil {
		return nil, err
	}
	for _, resource := range auth.Resources {
		for _, action := range auth.Actions {
			allowed, err := s.HasPermission(ctx, userID, resource, action)
			if err != nil {
				return nil, err
			}
			if allowed {
				access.Permissions = append(access.Permissions, resource+":"+action)
			}
		}
	}
	return access, nil
}

// CreateRole adds a new active role.
func (s *RoleService) CreateRole(ctx context.Context, name, description string) (*domain.Role, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, apperrors.NewFieldErrors(map[string]string{"name": "Role name is required"})
	}
	if _, err := s.roles.GetByName(ctx, name); err == nil {
		return nil, apperrors.NewDuplicateField(apperrors.CodeResourceAlreadyExists, "name", "Role with this name already exists")
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	role := &domain.Role{Name: name, Description: strings.TrimSpace(description), Status: domain.RoleStatusActive}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	return role, nil
}

// ListRoles returns all roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return roles, nil
}
