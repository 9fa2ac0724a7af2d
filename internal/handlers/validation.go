package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParseValidationErrors converts validator errors to user-friendly format.
// Malformed JSON and type mismatches come back as a single body error.
func ParseValidationErrors(err error) []ValidationError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []ValidationError{{Field: "body", Message: err.Error()}}
	}

	result := make([]ValidationError, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		result = append(result, ValidationError{
			Field:   fieldError.Field(),
			Message: getErrorMessage(fieldError),
		})
	}
	return result
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		if fe.Kind().String() == "int" {
			return fe.Field() + " must be at least " + fe.Param()
		}
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind().String() == "int" {
			return fe.Field() + " must not exceed " + fe.Param()
		}
		return fe.Field() + " must not exceed " + fe.Param() + " characters"
	case "len":
		return fe.Field() + " must be exactly " + fe.Param() + " characters (HH:MM)"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "uuid":
		return fe.Field() + " must be a UUID"
	default:
		return fe.Field() + " is invalid"
	}
}
