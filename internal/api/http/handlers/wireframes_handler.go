package handlers

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/jobcard-service/internal/api/dto"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/domain"
	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/service"
	"github.com/spec-kit/jobcard-service/internal/web"
	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

const (
	titleIndex    = "Protomil - User Registration"
	titleRegister = "User Registration - Protomil"
	titleVerify   = "Email Verification - Protomil"
	titleVerified = "Email Verified - Protomil"

	msgContactSupport = "If the problem persists, please contact support."
	msgRegistered     = "Registration successful! Please check your email for verification code."
	msgCodeResent     = "Verification code sent successfully! Please check your email."
)

// Registrar is the registration flow behind the wireframe pages.
type Registrar interface {
	Register(ctx context.Context, input service.RegistrationInput) (*service.RegistrationResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*domain.User, error)
	ResendVerificationCode(ctx context.Context, email string) error
}

// WireframesHandler serves the server-rendered registration pages.
type WireframesHandler struct {
	registrar Registrar
	validator *validation.Validator
	logger    *zap.Logger
}

// NewWireframesHandler constructs handler.
func NewWireframesHandler(registrar Registrar, v *validation.Validator, logger *zap.Logger) *WireframesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WireframesHandler{registrar: registrar, validator: v, logger: logger}
}

type registerView struct {
	PageTitle             string
	TraceID               string
	Form                  dto.RegistrationRequest
	FieldErrors           map[string]string
	HasErrors             bool
	ErrorMessage          string
	ErrorDetails          string
	Suggestions           []string
	RegistrationSuccess   bool
	UserEmail             string
	AdminApprovalRequired bool
}

type verifyView struct {
	PageTitle           string
	TraceID             string
	Email               string
	Message             string
	FieldErrors         map[string]string
	HasErrors           bool
	ErrorMessage        string
	VerificationSuccess bool
}

// Index GET /wireframes/.
func (h *WireframesHandler) Index(c *fiber.Ctx) error {
	return c.Render(web.ViewIndex, fiber.Map{
		"PageTitle": titleIndex,
		"TraceID":   observability.TraceID(c),
	}, web.Layout)
}

// RegisterForm GET /wireframes/register.
func (h *WireframesHandler) RegisterForm(c *fiber.Ctx) error {
	return h.renderRegister(c, h.newRegisterView(c, dto.RegistrationRequest{}))
}

// Register POST /wireframes/register.
func (h *WireframesHandler) Register(c *fiber.Ctx) error {
	var form dto.RegistrationRequest
	if err := c.BodyParser(&form); err != nil {
		view := h.newRegisterView(c, form)
		view.HasErrors = true
		view.ErrorMessage = "The form could not be read. Please try again."
		return h.renderRegister(c, view)
	}
	form.Email = strings.TrimSpace(form.Email)
	h.logger.Info("processing registration", zap.String("email", form.Email))

	view := h.newRegisterView(c, form)
	if fields := h.validator.Fields(&form); len(fields) > 0 {
		view.HasErrors = true
		view.FieldErrors = fields
		return h.renderRegister(c, view)
	}

	result, err := h.registrar.Register(c.UserContext(), service.RegistrationInput{
		Email:       form.Email,
		FirstName:   form.FirstName,
		LastName:    form.LastName,
		Password:    form.Password,
		PhoneNumber: form.PhoneNumber,
		EmployeeID:  form.EmployeeID,
		Department:  form.Department,
	})
	if err != nil {
		h.applyError(&view, err)
		return h.renderRegister(c, view)
	}

	if result.EmailVerificationRequired {
		target := "/wireframes/verify-email?" + url.Values{"email": {result.Email}, "registered": {"true"}}.Encode()
		if isHTMX(c) {
			c.Set("HX-Redirect", target)
			return c.SendStatus(fiber.StatusOK)
		}
		return c.Redirect(target, fiber.StatusSeeOther)
	}

	view.RegistrationSuccess = true
	view.UserEmail = result.Email
	view.AdminApprovalRequired = result.AdminApprovalRequired
	return h.renderRegister(c, view)
}

// applyError fills the form with a validation, business or unexpected failure.
func (h *WireframesHandler) applyError(view *registerView, err error) {
	de := apperrors.ToDomainError(err)
	view.HasErrors = true
	switch de.Kind {
	case apperrors.KindInternal, apperrors.KindExternal:
		h.logger.Error("unexpected registration failure",
			zap.String("trace_id", view.TraceID),
			zap.Error(err),
		)
		view.ErrorMessage = apperrors.GenericMessage
		view.ErrorDetails = msgContactSupport
	default:
		h.logger.Warn("registration rejected", zap.String("code", de.Code), zap.String("reason", de.Message))
		view.ErrorMessage = de.Message
		view.Suggestions = apperrors.Suggestions(de)
		for field, msg := range de.FieldErrors {
			view.FieldErrors[field] = msg
		}
	}
}

func (h *WireframesHandler) newRegisterView(c *fiber.Ctx, form dto.RegistrationRequest) registerView {
	form.Password = ""
	return registerView{
		PageTitle:   titleRegister,
		TraceID:     observability.TraceID(c),
		Form:        form,
		FieldErrors: map[string]string{},
	}
}

func (h *WireframesHandler) renderRegister(c *fiber.Ctx, view registerView) error {
	if isHTMX(c) {
		return c.Render(web.FragmentRegister, view)
	}
	return c.Render(web.ViewRegister, view, web.Layout)
}

// VerifyForm GET /wireframes/verify-email.
func (h *WireframesHandler) VerifyForm(c *fiber.Ctx) error {
	view := h.newVerifyView(c, c.Query("email"))
	if view.Email == "" {
		view.HasErrors = true
		view.ErrorMessage = "Email parameter is missing. Please start the registration process again."
	} else if c.QueryBool("registered") {
		view.Message = msgRegistered
	}
	return h.renderVerify(c, view)
}

// VerifyEmail POST /wireframes/verify-email.
func (h *WireframesHandler) VerifyEmail(c *fiber.Ctx) error {
	var form dto.VerifyEmailRequest
	_ = c.BodyParser(&form)
	view := h.newVerifyView(c, form.Email)

	switch {
	case view.Email == "":
		view.HasErrors = true
		view.ErrorMessage = "Email is required for verification"
		return h.renderVerify(c, view)
	case strings.TrimSpace(form.VerificationCode) == "":
		view.HasErrors = true
		view.ErrorMessage = "Verification code is required"
		view.FieldErrors["verificationCode"] = view.ErrorMessage
		return h.renderVerify(c, view)
	}

	if _, err := h.registrar.VerifyEmail(c.UserContext(), view.Email, form.VerificationCode); err != nil {
		h.applyVerifyError(&view, err)
		return h.renderVerify(c, view)
	}
	h.logger.Info("email verified", zap.String("email", view.Email))
	view.VerificationSuccess = true
	view.PageTitle = titleVerified
	return h.renderVerify(c, view)
}

// ResendVerification POST /wireframes/resend-verification.
func (h *WireframesHandler) ResendVerification(c *fiber.Ctx) error {
	var form struct {
		Email string `form:"email" json:"email"`
	}
	_ = c.BodyParser(&form)
	view := h.newVerifyView(c, form.Email)
	if view.Email == "" {
		view.HasErrors = true
		view.ErrorMessage = "Email is required"
		return h.renderVerify(c, view)
	}
	if err := h.registrar.ResendVerificationCode(c.UserContext(), view.Email); err != nil {
		h.applyVerifyError(&view, err)
		return h.renderVerify(c, view)
	}
	view.Message = msgCodeResent
	return h.renderVerify(c, view)
}

func (h *WireframesHandler) applyVerifyError(view *verifyView, err error) {
	de := apperrors.ToDomainError(err)
	view.HasErrors = true
	switch de.Kind {
	case apperrors.KindInternal, apperrors.KindExternal:
		h.logger.Error("unexpected verification failure", zap.String("email", view.Email), zap.Error(err))
		view.ErrorMessage = apperrors.GenericMessage
	case apperrors.KindValidation:
		for field, msg := range de.FieldErrors {
			view.FieldErrors[field] = msg
			view.ErrorMessage = msg
		}
		if view.ErrorMessage == "" {
			view.ErrorMessage = de.Message
		}
	default:
		h.logger.Warn("verification rejected", zap.String("email", view.Email), zap.String("reason", de.Message))
		view.ErrorMessage = de.Message
	}
}

func (h *WireframesHandler) newVerifyView(c *fiber.Ctx, email string) verifyView {
	return verifyView{
		PageTitle:   titleVerify,
		TraceID:     observability.TraceID(c),
		Email:       strings.TrimSpace(email),
		FieldErrors: map[string]string{},
	}
}

func (h *WireframesHandler) renderVerify(c *fiber.Ctx, view verifyView) error {
	if isHTMX(c) {
		return c.Render(web.FragmentVerify, view)
	}
	return c.Render(web.ViewVerifyEmail, view, web.Layout)
}

func isHTMX(c *fiber.Ctx) bool {
	return c.Get("HX-Request") == "true"
}
