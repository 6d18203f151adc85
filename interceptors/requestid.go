package interceptors

import (
	"context"

	"github.com/Keksclan/goRawrListener/contextx"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// requestIDKey is the metadata key carrying the request ID. gRPC metadata
// keys are lower case.
const requestIDKey = "x-request-id"

// ensureRequestID returns ctx carrying a request ID and reports whether the
// ID was newly attached. Existing IDs come from the context or the incoming
// metadata; otherwise a UUID is minted.
func ensureRequestID(ctx context.Context) (context.Context, string, bool) {
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		return ctx, id, false
	}
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	return contextx.WithRequestID(ctx, id), id, true
}

// RequestIDUnary returns a unary server interceptor that ensures a request ID
// is present in the context and echoes it in the response header metadata.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, id, attached := ensureRequestID(ctx)
		if attached {
			// Fails only outside a real server transport.
			_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))
		}
		return handler(ctx, req)
	}
}

// RequestIDStream is the streaming counterpart of RequestIDUnary. The
// handler sees the enriched context through the wrapped stream.
func RequestIDStream() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, id, attached := ensureRequestID(ss.Context())
		if !attached {
			return handler(srv, ss)
		}
		_ = ss.SetHeader(metadata.Pairs(requestIDKey, id))
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}

// contextStream overrides Context() on a wrapped stream.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }
