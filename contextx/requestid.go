package contextx

import "context"

// RequestIDHeader is the header (and, lower-cased, the gRPC metadata key)
// used to propagate request IDs between services.
const RequestIDHeader = "X-Request-Id"

// WithRequestID returns a derived context that carries the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID stored in ctx.
// It returns an empty string when no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
