package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	GatewayErrorBadInput              = "GATEWAY_BAD_INPUT"
	GatewayErrorProviderNotFound      = "GATEWAY_PROVIDER_NOT_FOUND"
	GatewayErrorCapabilityUnsupported = "GATEWAY_CAPABILITY_UNSUPPORTED"
	GatewayErrorTransportFailed       = "GATEWAY_TRANSPORT_FAILED"
	GatewayErrorEnvelopeFailed        = "GATEWAY_ENVELOPE_FAILED"
	GatewayErrorUnauthorized          = "GATEWAY_UNAUTHORIZED"
	GatewayErrorForbidden             = "GATEWAY_FORBIDDEN"
	GatewayErrorNotFound              = "GATEWAY_NOT_FOUND"
	GatewayErrorRateLimited           = "GATEWAY_RATE_LIMITED"
	GatewayErrorOperationFailed       = "GATEWAY_OPERATION_FAILED"
	GatewayErrorInternal              = "GATEWAY_INTERNAL_ERROR"
)

func gatewayErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureGatewayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "gateway") && strings.Contains(msg, "not registered"):
		return newGatewayError(err.Error(), goerrors.CategoryNotFound, GatewayErrorProviderNotFound)
	case strings.Contains(msg, "transaction not found"):
		return newGatewayError(err.Error(), goerrors.CategoryNotFound, GatewayErrorNotFound)
	case strings.Contains(msg, "not supported"):
		return newGatewayError(err.Error(), goerrors.CategoryOperation, GatewayErrorCapabilityUnsupported)
	case strings.Contains(msg, "envelope"), strings.Contains(msg, "openpgp"):
		return newGatewayError(err.Error(), goerrors.CategoryInternal, GatewayErrorEnvelopeFailed)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return newGatewayError(err.Error(), goerrors.CategoryRateLimit, GatewayErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return newGatewayError(err.Error(), goerrors.CategoryBadInput, GatewayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureGatewayErrorEnvelope(mapped)
}

func newGatewayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureGatewayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureGatewayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = gatewayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultGatewayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultGatewayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return GatewayErrorBadInput
	case goerrors.CategoryNotFound:
		return GatewayErrorNotFound
	case goerrors.CategoryAuth:
		return GatewayErrorUnauthorized
	case goerrors.CategoryAuthz:
		return GatewayErrorForbidden
	case goerrors.CategoryRateLimit:
		return GatewayErrorRateLimited
	case goerrors.CategoryOperation:
		return GatewayErrorOperationFailed
	case goerrors.CategoryExternal:
		return GatewayErrorTransportFailed
	default:
		return GatewayErrorInternal
	}
}

func gatewayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsTransportFailure reports whether err came from a failed remote call rather
// than a business decline or a local problem.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryExternal ||
			richErr.TextCode == GatewayErrorTransportFailed
	}
	return false
}

// GatewayError builds an envelope in category. A zero code and an empty text
// code take the category defaults; Conflict callers usually override both.
func GatewayError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	return finishGatewayError(goerrors.New(message, category), code, textCode, metadata)
}

// WrapGatewayError is GatewayError with source kept as the cause.
func WrapGatewayError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) error {
	if source == nil {
		return GatewayError(message, category, code, textCode, metadata)
	}
	return finishGatewayError(goerrors.Wrap(source, category, message), code, textCode, metadata)
}

// FieldError reports a single invalid field of a message in scope.
func FieldError(scope, field, message string) error {
	err := goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{Field: field, Message: message}).
		WithSeverity(goerrors.SeverityError)
	return finishGatewayError(err, 0, "", nil)
}

func finishGatewayError(err *goerrors.Error, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if code > 0 {
		err = err.WithCode(code)
	}
	if textCode = strings.TrimSpace(textCode); textCode != "" {
		err = err.WithTextCode(textCode)
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return ensureGatewayErrorEnvelope(err)
}
