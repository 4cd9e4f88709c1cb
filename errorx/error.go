package errorx

import (
	"fmt"
	"io"
	"regexp"

	"github.com/pkg/errors"
)

type CliniaError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	OriginalError error `json:"-"` // Not returned to clients

	stack Callers
}

var (
	_ error         = (*CliniaError)(nil)
	_ fmt.Formatter = (*CliniaError)(nil)
)

var errorMessageRegexp = regexp.MustCompile(`\[(.*?)\] (.*)`)

func (e CliniaError) Error() string {
	if e.OriginalError != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Message, e.OriginalError.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

// Unwrap exposes the original error to errors.Is / errors.As.
func (e *CliniaError) Unwrap() error {
	return e.OriginalError
}

// WithOriginal returns a copy of the error carrying err as its cause.
func (e *CliniaError) WithOriginal(err error) *CliniaError {
	ce := *e
	ce.OriginalError = err
	return &ce
}

// StackTrace returns the callers captured when the error was created.
func (e *CliniaError) StackTrace() Callers {
	return e.stack
}

// Format implements the fmt.Formatter interface.
//
// The verbs:
//
//	%s	the error message
//	%v	same as %s, the plus flag appends the stack trace
//	%q	a double-quoted Go string with same contents as %s
func (e *CliniaError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, e.Error())
		if s.Flag('+') && len(e.stack) > 0 {
			io.WriteString(s, "\n")
			e.stack.writeTrace(s)
		}
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	default:
		io.WriteString(s, e.Error())
	}
}

func newWithStack(t ErrorType, msg string) *CliniaError {
	return &CliniaError{
		Type:    t,
		Message: msg,
		stack:   callers(2),
	}
}

// NewCliniaErrorFromMessage parses a message produced by CliniaError.Error back into an error.
func NewCliniaErrorFromMessage(msg string) (*CliniaError, error) {
	m := errorMessageRegexp.FindStringSubmatch(msg)
	if len(m) < 3 {
		return nil, fmt.Errorf("%q is not a valid error type", msg)
	}

	eT, err := ParseErrorType(m[1])
	if err != nil {
		return nil, err
	}

	return &CliniaError{
		Type:    eT,
		Message: m[2],
	}, nil
}

func IsCliniaError(e error) (*CliniaError, bool) {
	var ce *CliniaError
	if !errors.As(e, &ce) || ce == nil {
		return nil, false
	}

	if ce.Type == ErrorTypeUnspecified {
		return nil, false
	}

	return ce, true
}

func isType(e error, t ErrorType) bool {
	ce, ok := IsCliniaError(e)
	if !ok {
		return false
	}

	return ce.Type == t
}
