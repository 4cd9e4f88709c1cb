package errorx

import "fmt"

// UnavailableErrorf creates a CliniaError with type ErrorTypeUnavailable and a formatted message
func UnavailableErrorf(format string, args ...any) *CliniaError {
	return newWithStack(
		ErrorTypeUnavailable,
		fmt.Sprintf(format, args...),
	)
}

func IsUnavailableError(e error) bool {
	return isType(e, ErrorTypeUnavailable)
}
