package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/lead-dispatch/pkg/util/errorutil"
)

var validate = validator.New()

// IDTag constrains path identifiers.
const IDTag = "required,max=128,printascii"

// Validate checks struct tags and returns a VALIDATION_FAILED error listing
// offending fields.
func Validate(v any) error {
	return toValidationError(validate.Struct(v))
}

// ValidateID checks a single path identifier.
func ValidateID(name, value string) error {
	if err := validate.Var(value, IDTag); err != nil {
		return apperrors.NewValidationError("invalid "+name, map[string]any{name: value})
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid payload", details)
}
