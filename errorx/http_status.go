package errorx

import (
	"fmt"
	"net/http"
)

// ErrorTypeFromHTTPStatus maps an HTTP status code to the closest ErrorType.
// Codes without a dedicated type are reported as ErrorTypeInternal.
func ErrorTypeFromHTTPStatus(code int) ErrorType {
	switch code {
	case http.StatusBadRequest:
		return ErrorTypeInvalidArgument
	case http.StatusUnauthorized:
		return ErrorTypeUnauthenticated
	case http.StatusForbidden:
		return ErrorTypePermissionDenied
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeAlreadyExists
	case http.StatusPreconditionFailed:
		return ErrorTypeFailedPrecondition
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrorTypeUnavailable
	default:
		return ErrorTypeInternal
	}
}

// FromHTTPStatus creates a CliniaError typed after the given HTTP status code.
func FromHTTPStatus(code int, format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeFromHTTPStatus(code),
		fmt.Sprintf(format, args...),
	)
}

// The following types are only ever built from an HTTP status.

func IsNotFoundError(e error) bool {
	return isType(e, ErrorTypeNotFound)
}

func IsAlreadyExistsError(e error) bool {
	return isType(e, ErrorTypeAlreadyExists)
}

func IsUnauthenticatedError(e error) bool {
	return isType(e, ErrorTypeUnauthenticated)
}

func IsPermissionDeniedError(e error) bool {
	return isType(e, ErrorTypePermissionDenied)
}
