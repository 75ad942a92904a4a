package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughWrapped(t *testing.T) {
	orig := NewBusinessError("", "cannot do that", nil)
	de := ToDomainError(fmt.Errorf("wrap: %w", orig))
	require.NotNil(t, de)
	assert.Equal(t, CodeBusinessRule, de.Code)
	assert.Equal(t, KindBusiness, de.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, de.HTTPStatus)
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	de := ToDomainError(fmt.Errorf("get: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeResourceNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.True(t, IsNotFound(pgx.ErrNoRows))
}

func TestToDomainErrorMapsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	de := ToDomainError(pgErr)
	assert.Equal(t, CodeResourceAlreadyExists, de.Code)
	assert.Equal(t, "email", de.Details["field"])
	assert.Contains(t, de.Message, "already exists")
}

func TestToDomainErrorMapsCaseInsensitiveEmailIndex(t *testing.T) {
	de := ToDomainError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, "email", de.Details["field"])
	assert.Contains(t, de.FieldErrors["email"], "already exists")

	unknown := ToDomainError(&pgconn.PgError{Code: "23505", ConstraintName: "some_other_idx"})
	assert.Equal(t, "some_other_idx", unknown.Details["field"])
	assert.Empty(t, unknown.FieldErrors)
}

func TestToDomainErrorMapsMalformedIdentifier(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}
	de := ToDomainError(fmt.Errorf("get user: %w", pgErr))
	assert.Equal(t, CodeResourceNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, KindNotFound, de.Kind)
	assert.True(t, IsNotFound(pgErr))
	assert.ErrorIs(t, de, pgErr)
}

func TestToDomainErrorMapsFiberErrors(t *testing.T) {
	assert.Equal(t, CodeEndpointNotFound, ToDomainError(fiber.ErrNotFound).Code)
	assert.Equal(t, KindValidation, ToDomainError(fiber.ErrBadRequest).Kind)

	de := ToDomainError(fiber.ErrServiceUnavailable)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, GenericMessage, de.Message)
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, GenericMessage, de.Message)
	assert.Nil(t, ToDomainError(nil))

	assert.Equal(t, http.StatusGatewayTimeout, ToDomainError(context.DeadlineExceeded).HTTPStatus)
}

func TestNotFoundCodesByResource(t *testing.T) {
	assert.Equal(t, CodeUserNotFound, ToDomainError(NewNotFound("user", nil)).Code)
	assert.Equal(t, CodeJobCardNotFound, ToDomainError(NewNotFound("job card", nil)).Code)
	assert.Equal(t, CodeResourceNotFound, ToDomainError(NewNotFound("template", nil)).Code)
}

func TestDuplicateFieldNamesField(t *testing.T) {
	de := ToDomainError(NewDuplicateField(CodeUserAlreadyExists, "email", "User with this email already exists"))
	assert.Equal(t, "email", de.Details["field"])
	assert.Equal(t, "User with this email already exists", de.FieldErrors["email"])
	assert.Equal(t, KindBusiness, de.Kind)
}

func TestSuggestions(t *testing.T) {
	got := Suggestions(NewBusinessError(CodeUserAlreadyExists, "User with this email already exists", nil))
	assert.Equal(t, []string{
		"Try logging in if you already have an account",
		"Use a different email address",
		"Contact support if you believe this is an error",
	}, got)

	assert.Empty(t, Suggestions(NewBusinessError("", "Job card cannot be started", nil)))
	assert.NotEmpty(t, Suggestions(errors.New("boom")))
	assert.Nil(t, Suggestions(nil))
}
