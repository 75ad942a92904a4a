// Package validation checks request payloads and reports failures as a
// field name to message map.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/jobcard-service/pkg/util/errorutil"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]{8,}$`)
)

const passwordSpecials = "@$!%*?&"

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New registers the custom tags and resolves field names from form, then json tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	return &Validator{validate: v}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// StrongPassword requires a lowercase letter, an uppercase letter, a digit and
// one of @$!%*?&, drawn only from those classes, at least 8 long.
func StrongPassword(pw string) bool {
	if !passwordCharset.MatchString(pw) {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// Fields validates s and returns the first message per field, or nil.
func (v *Validator) Fields(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

// Struct validates s and returns a field-error DomainError on failure.
func (v *Validator) Struct(s any) error {
	if fields := v.Fields(s); len(fields) > 0 {
		return apperrors.NewFieldErrors(fields)
	}
	return nil
}

// message looks up a field-specific text, then a generic one per tag.
func message(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be valid"
	case "min", "max":
		return label + " has an invalid length"
	case "oneof":
		return label + " must be one of " + fe.Param()
	case "gt", "gte":
		return label + " must be positive"
	}
	return label + " is invalid"
}

var messages = map[string]string{
	"email.required":            "Email is required",
	"email.email":               "Email must be valid",
	"firstName.required":        "First name is required",
	"firstName.min":             "First name must be between 2 and 50 characters",
	"firstName.max":             "First name must be between 2 and 50 characters",
	"lastName.required":         "Last name is required",
	"lastName.min":              "Last name must be between 2 and 50 characters",
	"lastName.max":              "Last name must be between 2 and 50 characters",
	"password.required":         "Password is required",
	"password.min":              "Password must be between 8 and 128 characters",
	"password.max":              "Password must be between 8 and 128 characters",
	"password.strongpassword":   "Password must contain at least one uppercase letter, one lowercase letter, one number and one special character",
	"phoneNumber.required":      "Phone number is required",
	"phoneNumber.phone":         "Phone number must be valid",
	"verificationCode.required": "Verification code is required",
}

// humanize turns firstName into "First name".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
