package serverutils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError carries per-field messages keyed by the json field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func init() {
	validate.RegisterTagNameFunc(jsonTagName)
}

func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "min":
			fields[fe.Field()] = "must be at least " + fe.Param()
		case "max":
			fields[fe.Field()] = "must be at most " + fe.Param()
		default:
			fields[fe.Field()] = "is invalid (" + fe.Tag() + ")"
		}
	}
	return &ValidationError{Fields: fields}
}
