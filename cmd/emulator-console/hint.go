package main

import (
	"github.com/clinia/emulator-console/errorx"
)

// hint suggests what to look at after a failed command. It is empty when the
// error type says nothing more than the message already does.
func hint(err error) string {
	switch {
	case errorx.IsNotFoundError(err):
		return `the topic does not exist, "emulator-console topics" lists the existing ones`
	case errorx.IsAlreadyExistsError(err):
		return "the topic already exists"
	case errorx.IsUnauthenticatedError(err), errorx.IsPermissionDeniedError(err):
		return "the server refused the request, check that --host and --port point at a pubsub emulator"
	case errorx.IsUnavailableError(err):
		return "the emulator could not be reached, check that it runs or retry with --wait"
	case errorx.IsFailedPreconditionError(err):
		return "no pubsub emulator is configured, pass --project or set emulators.pubsub in a config file"
	default:
		return ""
	}
}
