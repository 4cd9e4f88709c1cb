package internaltracex

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	maxFrames     = 10
	maxStackBytes = 1024
)

// GetStackTrace returns the stack trace of the caller.
// skipLevels counts the frames to skip, GetStackTrace itself included: GetStackTrace(2)
// starts at the function calling GetStackTrace.
func GetStackTrace(skipLevels int) string {
	pc := make([]uintptr, maxFrames)
	n := runtime.Callers(skipLevels, pc)
	frames := runtime.CallersFrames(pc[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more || sb.Len() > maxStackBytes {
			break
		}
	}
	return sb.String()
}
