package httpx

import (
	"context"

	"github.com/google/uuid"
)

const RequestIDHeaderKey = "X-Request-Id"

type requestIDContextKey struct{}

// RequestIDContextKey is the context key under which WithRequestID stores the id.
// It can be handed to logrusx.NewRequestIdHook.
var RequestIDContextKey = requestIDContextKey{}

func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores a request id in the context. MakeHTTPRequest forwards it
// in the X-Request-Id header instead of generating a new one.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	rid, ok := ctx.Value(RequestIDContextKey).(string)
	return rid, ok && rid != ""
}
