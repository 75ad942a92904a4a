package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

const msgInvalidCredentials = "Invalid email or password"

// LoginResult is returned on successful sign-in.
type LoginResult struct {
	User  *domain.User
	Token *domain.Token
}

// AuthService authenticates users and issues access tokens.
type AuthService struct {
	users     repository.UserRepository
	userRoles repository.UserRoleRepository
	tokens    *auth.TokenManager
	logger    *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	UserRoleRepo repository.UserRoleRepository
	Tokens       *auth.TokenManager
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     deps.UserRepo,
		userRoles: deps.UserRoleRepo,
		tokens:    deps.Tokens,
		logger:    logger,
	}
}

// Login verifies credentials and account status, then issues a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password hash comparison failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}
	if err := loginStatusError(user.Status); err != nil {
		s.logger.Info("login refused", zap.String("user_id", user.ID), zap.String("status", string(user.Status)))
		return nil, err
	}

	roles, err := s.userRoles.ListActiveRoleNames(ctx, user.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user.Roles = roles

	token, err := s.tokens.GenerateToken(user, roles)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return &LoginResult{User: user, Token: token}, nil
}

func loginStatusError(status domain.UserStatus) error {
	switch status {
	case domain.UserStatusActive:
		return nil
	case domain.UserStatusPendingVerification:
		return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "Email not verified. Please check your email for verification code.", nil)
	case domain.UserStatusPendingApproval:
		return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "Your account is pending administrator approval.", nil)
	case domain.UserStatusSuspended:
		return apperrors.NewBusinessError(apperrors.CodeUserSuspended, "Your account has been suspended. Please contact support.", nil)
	case domain.UserStatusInactive:
		return apperrors.NewBusinessError(apperrors.CodeUserInactive, "Your account is inactive. Please contact support.", nil)
	case domain.UserStatusSyncFailure:
		return apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, "Account status error. Please contact support.", nil)
	default:
		return apperrors.NewUnauthorized(msgInvalidCredentials)
	}
}
