package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/config"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/repository"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

// Registration error messages shown next to the offending field.
const (
	MsgEmailExists      = "User with this email already exists"
	MsgEmployeeIDExists = "User with this employee ID already exists"
	msgNotVerifiable    = "User email is already verified or account is not in verification pending status"
)

// RegistrationInput is a validated sign-up form.
type RegistrationInput struct {
	Email       string
	FirstName   string
	LastName    string
	Password    string
	PhoneNumber string
	EmployeeID  string
	Department  string
}

// RegistrationResult summarises a successful sign-up.
type RegistrationResult struct {
	UserID                    string            `json:"userId"`
	Email                     string            `json:"email"`
	Status                    domain.UserStatus `json:"status"`
	RegisteredAt              time.Time         `json:"registeredAt"`
	EmailVerificationRequired bool              `json:"emailVerificationRequired"`
	AdminApprovalRequired     bool              `json:"adminApprovalRequired"`
}

// VerificationNotifier delivers verification codes to users.
type VerificationNotifier interface {
	SendVerificationCode(ctx context.Context, user *domain.User, code string, expiresAt time.Time) error
}

type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) SendVerificationCode(ctx context.Context, user *domain.User, code string, expiresAt time.Time) error {
	observability.LoggerFromContext(ctx, n.logger).Debug("verification code issued",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt))
	return nil
}

// RegistrationService runs sign-up and email verification.
type RegistrationService struct {
	users         repository.UserRepository
	verifications repository.VerificationRepository
	tx            repository.Transactor
	notifier      VerificationNotifier
	events        eventPublisher
	logger        *zap.Logger
	now           Clock
	newCode       func() string

	bcryptCost          int
	verificationEnabled bool
	verificationTTL     time.Duration
}

// RegistrationDependencies bundles collaborators for RegistrationService.
type RegistrationDependencies struct {
	UserRepo         repository.UserRepository
	VerificationRepo repository.VerificationRepository
	Tx               repository.Transactor
	Notifier         VerificationNotifier
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Clock            Clock
	CodeGenerator    func() string
}

// NewRegistrationService builds the service.
func NewRegistrationService(cfg config.AuthConfig, deps RegistrationDependencies) *RegistrationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := newEventPublisher(deps.Dispatcher, logger, deps.Clock)
	s := &RegistrationService{
		users:               deps.UserRepo,
		verifications:       deps.VerificationRepo,
		tx:                  transactor(deps.Tx),
		notifier:            deps.Notifier,
		events:              pub,
		logger:              logger,
		now:                 pub.now,
		newCode:             deps.CodeGenerator,
		bcryptCost:          cfg.BcryptCost,
		verificationEnabled: cfg.VerificationEnabled,
		verificationTTL:     cfg.VerificationTTL(),
	}
	if s.notifier == nil {
		s.notifier = logNotifier{logger: logger}
	}
	if s.newCode == nil {
		s.newCode = newVerificationCode
	}
	return s
}

// Register creates a new account. With verification enabled the account
// waits for an email code and then for administrator approval.
func (s *RegistrationService) Register(ctx context.Context, input RegistrationInput) (*RegistrationResult, error) {
	email := normalizeEmail(input.Email)
	employeeID := strings.TrimSpace(input.EmployeeID)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if exists {
		s.logger.Warn("registration attempt for existing email", zap.String("email", email))
		return nil, apperrors.NewDuplicateField(apperrors.CodeUserAlreadyExists, "email", MsgEmailExists)
	}
	if employeeID != "" {
		exists, err := s.users.ExistsByEmployeeID(ctx, employeeID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if exists {
			s.logger.Warn("registration attempt for existing employee id", zap.String("employee_id", employeeID))
			return nil, apperrors.NewDuplicateField(apperrors.CodeUserAlreadyExists, "employeeId", MsgEmployeeIDExists)
		}
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ExternalSubject: "local-" + uuid.NewString(),
		Email:           email,
		FirstName:       strings.TrimSpace(input.FirstName),
		LastName:        strings.TrimSpace(input.LastName),
		PasswordHash:    hash,
		PhoneNumber:     NormalizePhoneNumber(input.PhoneNumber),
		Department:      strings.TrimSpace(input.Department),
		Status:          domain.UserStatusActive,
	}
	if employeeID != "" {
		user.EmployeeID = &employeeID
	}
	if s.verificationEnabled {
		user.Status = domain.UserStatusPendingVerification
	}

	var issued *domain.EmailVerification
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if s.verificationEnabled {
			v, err := s.issueCode(ctx, user)
			if err != nil {
				return err
			}
			issued = v
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventUserRegistered,
			SubjectID: user.ID,
			Actor:     user.ID,
			Payload: events.UserRegisteredPayload{
				Email:                     user.Email,
				Status:                    user.Status,
				EmailVerificationRequired: s.verificationEnabled,
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if issued != nil {
		s.deliver(ctx, user, issued)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("status", string(user.Status)))

	return &RegistrationResult{
		UserID:                    user.ID,
		Email:                     user.Email,
		Status:                    user.Status,
		RegisteredAt:              user.CreatedAt,
		EmailVerificationRequired: s.verificationEnabled,
		AdminApprovalRequired:     s.verificationEnabled,
	}, nil
}

// VerifyEmail redeems a verification code and moves the account to PENDING_APPROVAL.
func (s *RegistrationService) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	user, err := s.pendingVerificationUser(ctx, email)
	if err != nil {
		return nil, err
	}

	latest, err := s.verifications.GetLatestForUser(ctx, user.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewBusinessError(apperrors.CodeBusinessRule, "No verification code has been issued. Please request a new one.", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if latest.Code != strings.TrimSpace(code) {
		return nil, apperrors.NewFieldErrors(map[string]string{"verificationCode": "Invalid verification code"})
	}
	if !latest.Usable(s.now()) {
		return nil, apperrors.NewFieldErrors(map[string]string{"verificationCode": "Verification code has expired. Please request a new one."})
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.verifications.MarkUsed(ctx, latest.ID); err != nil {
			return err
		}
		old := user.Status
		user.Status = domain.UserStatusPendingApproval
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		s.events.publish(ctx, events.Event{
			Type:      events.EventUserEmailVerified,
			SubjectID: user.ID,
			Actor:     user.ID,
			Payload:   events.UserEmailVerifiedPayload{Email: user.Email},
		})
		s.events.publish(ctx, statusChangedEvent(user, old, user.ID, "email verified"))
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ResendVerificationCode issues a fresh code for an unverified account.
func (s *RegistrationService) ResendVerificationCode(ctx context.Context, email string) error {
	user, err := s.pendingVerificationUser(ctx, email)
	if err != nil {
		return err
	}
	v, err := s.issueCode(ctx, user)
	if err != nil {
		return apperrors.MapError(err)
	}
	s.deliver(ctx, user, v)
	return nil
}

func (s *RegistrationService) pendingVerificationUser(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, "User", map[string]any{"email": email})
	}
	if user.Status != domain.UserStatusPendingVerification {
		return nil, apperrors.NewBusinessError(apperrors.CodeInvalidUserStatus, msgNotVerifiable, nil)
	}
	return user, nil
}

func (s *RegistrationService) issueCode(ctx context.Context, user *domain.User) (*domain.EmailVerification, error) {
	v := &domain.EmailVerification{
		UserID:    user.ID,
		Code:      s.newCode(),
		ExpiresAt: s.now().Add(s.verificationTTL),
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *RegistrationService) deliver(ctx context.Context, user *domain.User, v *domain.EmailVerification) {
	if err := s.notifier.SendVerificationCode(ctx, user, v.Code, v.ExpiresAt); err != nil {
		s.logger.Warn("verification code delivery failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func statusChangedEvent(user *domain.User, old domain.UserStatus, actor, reason string) events.Event {
	return events.Event{
		Type:      events.EventUserStatusChanged,
		SubjectID: user.ID,
		Actor:     actor,
		Payload: events.UserStatusChangedPayload{
			Email:     user.Email,
			OldStatus: old,
			NewStatus: user.Status,
			Reason:    reason,
		},
	}
}

// newVerificationCode returns six random digits.
func newVerificationCode() string {
	id := uuid.New()
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(id[:4])%1_000_000)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var phoneNoise = regexp.MustCompile(`[^\d+]`)

// NormalizePhoneNumber strips formatting and ensures an international prefix.
// Ten-digit numbers are treated as Indian mobile numbers.
func NormalizePhoneNumber(phone string) string {
	cleaned := phoneNoise.ReplaceAllString(strings.TrimSpace(phone), "")
	if cleaned == "" || strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	switch {
	case strings.HasPrefix(cleaned, "91") && len(cleaned) == 12:
		return "+" + cleaned
	case len(cleaned) == 10:
		return "+91" + cleaned
	default:
		return "+" + cleaned
	}
}
