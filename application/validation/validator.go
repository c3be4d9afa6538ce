// Package validation checks plugin metadata with struct tag constraints.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tsuki-dev/tsuki-host/domain/entities"
	"github.com/tsuki-dev/tsuki-host/domain/ports"
)

// MetadataValidator implements MetadataValidator with go-playground/validator.
type MetadataValidator struct {
	validate *validator.Validate
}

// NewMetadataValidator creates a validator reporting fields by their
// document names.
func NewMetadataValidator() ports.MetadataValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &MetadataValidator{validate: v}
}

// Validate checks meta against its struct tags.
func (v *MetadataValidator) Validate(meta *entities.PluginMetadata) (*entities.ValidationResult, error) {
	result := &entities.ValidationResult{Valid: true}

	err := v.validate.Struct(meta)
	if err == nil {
		return result, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}

	result.Valid = false
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, entities.ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return result, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "semver":
		return fmt.Sprintf("%q is not a semantic version", fe.Value())
	case "oneof":
		return fmt.Sprintf("%q is not one of: %s", fe.Value(), fe.Param())
	}
	return fmt.Sprintf("failed %q constraint", fe.Tag())
}
