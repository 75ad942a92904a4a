package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// UserService handles administrator actions on user accounts.
type UserService struct {
	users     repository.UserRepository
	roles     repository.RoleRepository
	userRoles repository.UserRoleRepository
	tx        repository.Transactor
	events    eventPublisher
	logger    *zap.Logger
	now       Clock
}

// UserDependencies bundles collaborators for UserService.
type UserDependencies struct {
	UserRepo     repository.UserRepository
	RoleRepo     repository.RoleRepository
	UserRoleRepo repository.UserRoleRepository
	Tx           repository.Transactor
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Clock        Clock
}

// NewUserService creates the service.
func NewUserService(deps UserDependencies) *UserService {
	pub := newEventPublisher(deps.Dispatcher, deps.Logger, deps.Clock)
	return &UserService{
		users:     deps.UserRepo,
		roles:     deps.RoleRepo,
		userRoles: deps.UserRoleRepo,
		tx:        transactor(deps.Tx),
		events:    pub,
		logger:    pub.logger,
		now:       pub.now,
	}
}

// GetByID returns the user with its active role names.
func (s *UserService) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	names, err := s.userRoles.ListActiveRoleNames(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user.Roles = names
	return user, nil
}

// List pages through every non-deleted user.
func (s *UserService) List(ctx context.Context, page repository.Page) (repository.PageResult[domain.User], error) {
	items, total, err := s.users.List(ctx, page)
	if err != nil {
		return repository.PageResult[domain.User]{}, apperrors.MapError(err)
	}
	return repository.NewPageResult(items, page, total), nil
}

// ListByStatus pages through users in status.
func (s *UserService) ListByStatus(ctx context.Context, status domain.UserStatus, page repository.Page) (repository.PageResult[domain.User], error) {
	if !status.Valid() {
		return repository.PageResult[domain.User]{}, apperrors.NewFieldErrors(map[string]string{"status": "Unknown user status"})
	}
	items, total, err := s.users.ListByStatus(ctx, status, page)
	if err != nil {
		return repository.PageResult[domain.User]{}, apperrors.MapError(err)
	}
	return repository.NewPageResult(items, page, total), nil
}

// Approve activates a PENDING_APPROVAL account and grants its initial roles.
func (s *UserService) Approve(ctx context.Context, userID string, roleIDs []string, actor string) (*domain.User, error) {
	roleIDs = dedupe(roleIDs)
	if len(roleIDs) == 0 {
		return nil, apperrors.NewFieldErrors(map[string]string{"roleIds": "At least one role must be selected"})
	}

	var approved *domain.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if user.Status != domain.UserStatusPendingApproval {
			return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "User is not in pending approval status", map[string]any{"status": user.Status})
		}

		roles, err := s.roles.ListByIDs(ctx, roleIDs)
		if err != nil {
			return err
		}
		if len(roles) != len(roleIDs) {
			return apperrors.NewBusinessError("", "One or more roles not found", map[string]any{"roleIds": roleIDs})
		}

		for _, role := range roles {
			if err := requireActiveRole(&role); err != nil {
				return err
			}
		}

		now := s.now()
		names := make([]string, 0, len(roles))
		for _, role := range roles {
			grant := &domain.UserRole{
				UserID:     user.ID,
				RoleID:     role.ID,
				AssignedBy: optional(actor),
				AssignedAt: now,
				Status:     domain.UserRoleStatusActive,
			}
			if err := s.userRoles.Assign(ctx, grant); err != nil {
				return err
			}
			names = append(names, role.Name)
		}

		old := user.Status
		user.Status = domain.UserStatusActive
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		user.Roles = names

		s.events.publish(ctx, events.Event{
			Type:      events.EventUserApproved,
			SubjectID: user.ID,
			Actor:     actor,
			Payload:   events.UserApprovedPayload{Email: user.Email, RoleNames: names},
		})
		s.events.publish(ctx, statusChangedEvent(user, old, actor, "approved"))
		approved = user
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user approved", zap.String("user_id", userID), zap.String("approved_by", actor))
	return approved, nil
}

// Reject closes a pending registration and records why.
func (s *UserService) Reject(ctx context.Context, userID, reason, actor string) (*domain.User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewFieldErrors(map[string]string{"reason": "Rejection reason is required"})
	}

	var rejected *domain.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if !user.Status.IsPending() {
			return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "Only pending registrations can be rejected", map[string]any{"status": user.Status})
		}

		old := user.Status
		if err := s.users.RecordRejection(ctx, &domain.UserRejection{
			UserID:         user.ID,
			RejectedBy:     actor,
			Reason:         reason,
			OriginalStatus: old,
			RejectedAt:     s.now(),
		}); err != nil {
			return err
		}
		user.Status = domain.UserStatusRejected
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}

		s.events.publish(ctx, events.Event{
			Type:      events.EventUserRejected,
			SubjectID: user.ID,
			Actor:     actor,
			Payload:   events.UserRejectedPayload{Email: user.Email, Reason: reason},
		})
		s.events.publish(ctx, statusChangedEvent(user, old, actor, reason))
		rejected = user
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rejected, nil
}

// Suspend blocks sign-in for an account.
func (s *UserService) Suspend(ctx context.Context, userID, reason, actor string) (*domain.User, error) {
	return s.changeStatus(ctx, userID, domain.UserStatusSuspended, reason, actor, func(u *domain.User) error {
		if u.Status == domain.UserStatusSuspended {
			return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "User is already suspended", nil)
		}
		return nil
	})
}

// Reactivate restores a SUSPENDED or INACTIVE account.
func (s *UserService) Reactivate(ctx context.Context, userID, actor string) (*domain.User, error) {
	return s.changeStatus(ctx, userID, domain.UserStatusActive, "reactivated", actor, func(u *domain.User) error {
		if u.Status != domain.UserStatusSuspended && u.Status != domain.UserStatusInactive {
			return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "User is not in suspended or inactive status", map[string]any{"status": u.Status})
		}
		return nil
	})
}

// SoftDelete marks an account DELETED; the row is kept.
func (s *UserService) SoftDelete(ctx context.Context, userID, actor string) (*domain.User, error) {
	return s.changeStatus(ctx, userID, domain.UserStatusDeleted, "deleted", actor, func(u *domain.User) error {
		if u.Status == domain.UserStatusDeleted {
			return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "User is already deleted", nil)
		}
		if u.ID == actor {
			return apperrors.NewBusinessError(apperrors.CodeOperationNotAllowed, "You cannot delete your own account", nil)
		}
		return nil
	})
}

func (s *UserService) changeStatus(ctx context.Context, userID string, next domain.UserStatus, reason, actor string, guard func(*domain.User) error) (*domain.User, error) {
	var changed *domain.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		if err := guard(user); err != nil {
			return err
		}
		old := user.Status
		user.Status = next
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		s.events.publish(ctx, statusChangedEvent(user, old, actor, reason))
		changed = user
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user status changed",
		zap.String("user_id", userID),
		zap.String("status", string(next)),
		zap.String("changed_by", actor))
	return changed, nil
}

func requireActiveRole(role *domain.Role) error {
	if role.Status != domain.RoleStatusActive {
		return apperrors.NewBusinessError("", "Role is not active", map[string]any{"roleId": role.ID, "role": role.Name})
	}
	return nil
}

// AssignRole grants roleID to userID.
func (s *UserService) AssignRole(ctx context.Context, userID, roleID, actor string) (*domain.UserRole, error) {
	var grant *domain.UserRole
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, role, err := s.loadUserAndRole(ctx, userID, roleID)
		if err != nil {
			return err
		}
		if err := requireActiveRole(role); err != nil {
			return err
		}
		if _, err := s.userRoles.FindActive(ctx, user.ID, role.ID); err == nil {
			return apperrors.NewBusinessError("", "User already has this role assigned", map[string]any{"role": role.Name})
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		grant = &domain.UserRole{
			UserID:     user.ID,
			RoleID:     role.ID,
			RoleName:   role.Name,
			AssignedBy: optional(actor),
			AssignedAt: s.now(),
			Status:     domain.UserRoleStatusActive,
		}
		if err := s.userRoles.Assign(ctx, grant); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventUserRoleAssigned,
			SubjectID: user.ID,
			Actor:     actor,
			Payload:   events.UserRoleChangedPayload{RoleID: role.ID, RoleName: role.Name},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return grant, nil
}

// RevokeRole withdraws an active grant.
func (s *UserService) RevokeRole(ctx context.Context, userID, roleID, actor string) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, role, err := s.loadUserAndRole(ctx, userID, roleID)
		if err != nil {
			return err
		}
		grant, err := s.userRoles.FindActive(ctx, user.ID, role.ID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewBusinessError("", "User does not have this role assigned", map[string]any{"role": role.Name})
			}
			return err
		}
		if err := s.userRoles.UpdateStatus(ctx, grant.ID, domain.UserRoleStatusRevoked); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventUserRoleRevoked,
			SubjectID: user.ID,
			Actor:     actor,
			Payload:   events.UserRoleChangedPayload{RoleID: role.ID, RoleName: role.Name},
		})
		return nil
	})
	return apperrors.MapError(err)
}

func (s *UserService) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "User", map[string]any{"userId": userID})
	}
	return user, nil
}

func (s *UserService) loadUserAndRole(ctx context.Context, userID, roleID string) (*domain.User, *domain.Role, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, nil, lookupError(err, "Role", map[string]any{"roleId": roleID})
	}
	return user, role, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
