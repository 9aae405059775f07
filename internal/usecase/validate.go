package usecase

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "faindi/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w\w+)+$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("faindi_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateInput runs struct tags and turns the first failure into a
// VALIDATION_ERROR with a readable message.
func validateInput(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.Validation("Invalid input data", err)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	var message string
	switch fe.Tag() {
	case "required":
		message = field + " is required"
	case "email", "faindi_email":
		message = field + " must be a valid email address"
	case "eqfield":
		message = "Password confirmation does not match"
	case "min":
		message = field + " must be at least " + fe.Param()
	case "max":
		message = field + " must be at most " + fe.Param()
	default:
		message = field + " is invalid"
	}
	return apperrors.Validation(message, err)
}
