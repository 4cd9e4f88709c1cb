package pubsubx

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/clinia/emulator-console/errorx"
)

type FailureKind string

const (
	// FailureConfigUnset means an operation was attempted without an emulator; it never reaches the network.
	FailureConfigUnset FailureKind = "CONFIG_UNSET"
	// FailureTransport covers refused connections, DNS errors and timeouts.
	FailureTransport FailureKind = "TRANSPORT_FAILURE"
	// FailureRemoteRejection is any non-200 answer.
	FailureRemoteRejection FailureKind = "REMOTE_REJECTION"
	// FailureMalformedResponse is a 200 answer whose body could not be understood.
	FailureMalformedResponse FailureKind = "MALFORMED_RESPONSE"
)

const maxBodyInError = 256

// Failure is the single failure signal surfaced by the core. Kind is meant for
// diagnostics; callers do not recover differently per kind.
type Failure struct {
	Kind       FailureKind
	Operation  string
	StatusCode int
	Err        *errorx.CliniaError
}

var _ error = (*Failure)(nil)

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Operation, f.Kind, f.Err.Error())
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func NewConfigUnsetFailure(operation string) *Failure {
	return &Failure{
		Kind:      FailureConfigUnset,
		Operation: operation,
		Err:       errorx.FailedPreconditionErrorf("no pubsub emulator is configured"),
	}
}

func NewTransportFailure(operation string, err error) *Failure {
	return &Failure{
		Kind:      FailureTransport,
		Operation: operation,
		Err:       errorx.UnavailableErrorf("pubsub emulator could not be reached").WithOriginal(err),
	}
}

func NewRemoteRejection(operation string, statusCode int, body []byte) *Failure {
	msg := fmt.Sprintf("pubsub emulator answered with status %d", statusCode)
	if len(body) > 0 {
		msg += ": " + truncateBody(body)
	}
	return &Failure{
		Kind:       FailureRemoteRejection,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        errorx.FromHTTPStatus(statusCode, "%s", msg),
	}
}

func NewMalformedResponse(operation string, err error) *Failure {
	return &Failure{
		Kind:       FailureMalformedResponse,
		Operation:  operation,
		StatusCode: 200,
		Err:        errorx.InternalErrorf("pubsub emulator answered with an unexpected body").WithOriginal(err),
	}
}

// AsFailure returns the Failure carried by err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) && f != nil {
		return f, true
	}
	return nil, false
}

// FailureKindOf returns the kind of the Failure carried by err, if any.
func FailureKindOf(err error) (FailureKind, bool) {
	f, ok := AsFailure(err)
	if !ok {
		return "", false
	}
	return f.Kind, true
}

// truncateBody keeps at most maxBodyInError bytes, cut on a rune boundary.
// Invalid bytes are replaced rather than dropped.
func truncateBody(body []byte) string {
	if len(body) <= maxBodyInError {
		return strings.ToValidUTF8(string(body), string(utf8.RuneError))
	}

	cut := maxBodyInError
	for i := 0; i < utf8.UTFMax-1 && cut > 0 && !utf8.RuneStart(body[cut]); i++ {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), string(utf8.RuneError)) + "..."
}
