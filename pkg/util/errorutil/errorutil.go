package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes shared with clients.
const (
	CodeAuthenticationFailed   = "AUTH_001"
	CodeAccessDenied           = "AUTH_002"
	CodeTokenExpired           = "AUTH_003"
	CodeTokenInvalid           = "AUTH_004"
	CodeValidation             = "VAL_001"
	CodeMalformedRequest       = "VAL_003"
	CodeResourceNotFound       = "RES_001"
	CodeResourceAlreadyExists  = "RES_002"
	CodeBusinessRule           = "BIZ_001"
	CodeInvalidTransition      = "BIZ_002"
	CodeOperationNotAllowed    = "BIZ_003"
	CodeConcurrentModification = "DATA_002"
	CodeForeignKeyViolation    = "DATA_003"
	CodeExternalService        = "EXT_001"
	CodeInternal               = "SYS_001"
	CodeServiceUnavailable     = "SYS_002"
	CodeEndpointNotFound       = "HTTP_003"
	CodeUserNotFound           = "USER_001"
	CodeUserAlreadyExists      = "USER_002"
	CodeUserInactive           = "USER_003"
	CodeUserSuspended          = "USER_004"
	CodeInvalidUserStatus      = "USER_005"
	CodeJobCardNotFound        = "JOB_001"
	CodeJobCardAlreadyAssigned = "JOB_002"
	CodeJobCardInvalidStatus   = "JOB_003"
)

// GenericMessage is shown whenever internals must not leak.
const GenericMessage = "An unexpected error occurred. Please try again."

// Kind groups errors by how they are presented.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindBusiness   Kind = "BUSINESS"
	KindNotFound   Kind = "NOT_FOUND"
	KindAuth       Kind = "AUTH"
	KindForbidden  Kind = "FORBIDDEN"
	KindConflict   Kind = "CONFLICT"
	KindExternal   Kind = "EXTERNAL"
	KindInternal   Kind = "INTERNAL"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code        string
	Message     string
	HTTPStatus  int
	Kind        Kind
	Details     map[string]any
	FieldErrors map[string]string
	Err         error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, kind Kind, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Kind: kind, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, KindValidation, details)
}

// NewFieldErrors reports per-field validation failures.
func NewFieldErrors(fields map[string]string) error {
	de := NewDomainError(CodeValidation, "Please correct the highlighted fields", http.StatusBadRequest, KindValidation, nil)
	de.FieldErrors = fields
	return de
}

// NewBusinessError reports a violated business rule. An empty code falls back to BIZ_001.
func NewBusinessError(code, message string, details map[string]any) error {
	if code == "" {
		code = CodeBusinessRule
	}
	return NewDomainError(code, message, http.StatusUnprocessableEntity, KindBusiness, details)
}

// NewDuplicateField reports a uniqueness rule broken by a single input field.
func NewDuplicateField(code, field, message string) error {
	de := NewDomainError(code, message, http.StatusConflict, KindBusiness, map[string]any{"field": field})
	de.FieldErrors = map[string]string{field: message}
	return de
}

var notFoundCodes = map[string]string{
	"user":     CodeUserNotFound,
	"job card": CodeJobCardNotFound,
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	code, ok := notFoundCodes[strings.ToLower(resource)]
	if !ok {
		code = CodeResourceNotFound
	}
	return &DomainError{
		Code:       code,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Kind:       KindNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeAuthenticationFailed, message, http.StatusUnauthorized, KindAuth, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeAccessDenied, message, http.StatusForbidden, KindForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeResourceAlreadyExists, message, http.StatusConflict, KindConflict, details)
}

// NewConcurrencyConflict reports a stale optimistic-lock version.
func NewConcurrencyConflict(resource string, id string) error {
	return NewDomainError(CodeConcurrentModification,
		fmt.Sprintf("%s was modified by another request, reload and try again", resource),
		http.StatusConflict, KindConflict, map[string]any{"id": id})
}

// NewInvalidTransition reports a disallowed status change.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Invalid status transition from %s to %s", from, to),
		http.StatusUnprocessableEntity, KindBusiness,
		map[string]any{"from": from, "to": to})
}

// NewExternal wraps a failure of an external collaborator.
func NewExternal(service string, err error) error {
	return &DomainError{
		Code:       CodeExternalService,
		Message:    fmt.Sprintf("%s is unavailable", service),
		HTTPStatus: http.StatusBadGateway,
		Kind:       KindExternal,
		Details:    map[string]any{"service": service},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    GenericMessage,
		HTTPStatus: http.StatusInternalServerError,
		Kind:       KindInternal,
		Err:        err,
	}
}

// constraintFields maps unique constraints to the input field they guard.
var constraintFields = map[string]string{
	"users_email_key":             "email",
	"users_email_lower_idx":       "email",
	"users_employee_id_key":       "employeeId",
	"roles_name_key":              "name",
	"job_cards_job_number_key":    "jobNumber",
	"job_card_templates_code_key": "code",
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			field, known := constraintFields[pgErr.ConstraintName]
			if !known {
				field = pgErr.ConstraintName
			}
			de := NewConflict(fmt.Sprintf("A record with this %s already exists", field), map[string]any{"field": field}).(*DomainError)
			if known {
				de.FieldErrors = map[string]string{field: de.Message}
			}
			de.Err = err
			return de
		case "23503":
			return &DomainError{
				Code:       CodeForeignKeyViolation,
				Message:    "Referenced record does not exist",
				HTTPStatus: http.StatusUnprocessableEntity,
				Kind:       KindBusiness,
				Details:    map[string]any{"constraint": pgErr.ConstraintName},
				Err:        err,
			}
		case "22P02":
			// malformed identifier, nothing can match it
			de := NewNotFound("resource", nil).(*DomainError)
			de.Err = err
			return de
		}
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeServiceUnavailable,
			Message:    "The request took too long. Please try again.",
			HTTPStatus: http.StatusGatewayTimeout,
			Kind:       KindInternal,
			Err:        err,
		}
	}
	return NewInternalError(err).(*DomainError)
}

func fromFiberError(fe *fiber.Error) *DomainError {
	de := &DomainError{HTTPStatus: fe.Code, Message: fe.Message, Err: fe}
	switch {
	case fe.Code == fiber.StatusNotFound:
		de.Code, de.Kind = CodeEndpointNotFound, KindNotFound
	case fe.Code == fiber.StatusUnauthorized:
		de.Code, de.Kind = CodeAuthenticationFailed, KindAuth
	case fe.Code == fiber.StatusForbidden:
		de.Code, de.Kind = CodeAccessDenied, KindForbidden
	case fe.Code == fiber.StatusTooManyRequests:
		de.Code, de.Kind = CodeOperationNotAllowed, KindBusiness
	case fe.Code < 500:
		de.Code, de.Kind = CodeMalformedRequest, KindValidation
	default:
		de.Code, de.Kind, de.Message = CodeInternal, KindInternal, GenericMessage
	}
	return de
}

// MapError is ToDomainError returning a plain error; nil stays nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// KindOf returns the presentation kind of err.
func KindOf(err error) Kind {
	if de := ToDomainError(err); de != nil {
		return de.Kind
	}
	return ""
}

// IsNotFound reports whether err maps to a missing resource.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Suggestions returns next steps to show alongside err.
func Suggestions(err error) []string {
	de := ToDomainError(err)
	if de == nil {
		return nil
	}
	if strings.Contains(de.Message, "already exists") {
		return []string{
			"Try logging in if you already have an account",
			"Use a different email address",
			"Contact support if you believe this is an error",
		}
	}
	switch de.Kind {
	case KindAuth:
		return []string{"Check your email and password", "Sign in again if your session expired"}
	case KindNotFound:
		return []string{"Check the address and try again", "Return to the home page"}
	case KindInternal, KindExternal:
		return []string{"Try again in a few moments", "Contact support if the problem persists"}
	}
	return nil
}
