package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("koanf"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// ValidateProviderConfig checks `validate` struct tags on a provider config and
// reports every failing field in a single validation error.
func ValidateProviderConfig(providerID string, cfg any) error {
	err := configValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("%s: invalid config", providerID)).
			WithTextCode(GatewayErrorBadInput).
			WithCode(400)
	}
	details := make([]goerrors.FieldError, 0, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		details = append(details, goerrors.FieldError{
			Field:   fieldErr.Field(),
			Message: describeValidationTag(fieldErr),
		})
		names = append(names, fieldErr.Field())
	}
	return goerrors.NewValidation(
		fmt.Sprintf("%s: missing or invalid config fields: %s", providerID, strings.Join(names, ", ")),
		details...,
	).WithTextCode(GatewayErrorBadInput).WithCode(400)
}

func describeValidationTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid url"
	case "len":
		return "must have length " + fieldErr.Param()
	case "oneof":
		return "must be one of " + fieldErr.Param()
	default:
		return "failed " + fieldErr.Tag()
	}
}
